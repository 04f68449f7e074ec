// Package spotify provides a media element backed by a Spotify Connect device.
package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/vplayer/internal/domain/track"
)

// Scopes are the OAuth scopes the element needs.
var Scopes = []string{
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
}

// Credentials represents Spotify API credentials.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// ElementConfig holds the backend settings of the Spotify element.
type ElementConfig struct {
	TrackURI       string `yaml:"track_uri" mapstructure:"track_uri" validate:"required"`
	DeviceID       string `yaml:"device_id" mapstructure:"device_id"`
	PollIntervalMs int    `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms" default:"1000" validate:"gte=200,lte=60000"`
}

// DecodeElementConfig decodes backend settings into an ElementConfig.
func DecodeElementConfig(settings map[string]any) (ElementConfig, error) {
	var config ElementConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return config, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return config, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return config, errors.Wrap(err, "validation failed")
	}
	return config, nil
}

// playerAPI is the subset of the Spotify Web API client the element uses.
type playerAPI interface {
	PlayOpt(ctx context.Context, opt *spotify.PlayOptions) error
	PauseOpt(ctx context.Context, opt *spotify.PlayOptions) error
	SeekOpt(ctx context.Context, position int, opt *spotify.PlayOptions) error
	PlayerState(ctx context.Context, opts ...spotify.RequestOption) (*spotify.PlayerState, error)
}

// newClient creates an authenticated Web API client from a refresh token.
func newClient(ctx context.Context, creds Credentials) (*spotify.Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := NewAuthenticator(creds, "")

	// Create token from refresh token
	token := &oauth2.Token{
		RefreshToken: creds.RefreshToken,
	}

	// Get HTTP client with auto-refresh capability
	httpClient := auth.Client(ctx, token)
	return spotify.New(httpClient), nil
}

// NewAuthenticator creates an authenticator requesting Scopes. An empty
// redirectURL keeps the library default.
func NewAuthenticator(creds Credentials, redirectURL string) *spotifyauth.Authenticator {
	opts := []spotifyauth.AuthenticatorOption{
		spotifyauth.WithClientID(creds.ClientID),
		spotifyauth.WithClientSecret(creds.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	}
	if redirectURL != "" {
		opts = append(opts, spotifyauth.WithRedirectURL(redirectURL))
	}
	return spotifyauth.New(opts...)
}

// Device is a Spotify Connect device visible to the account.
type Device struct {
	ID     string
	Name   string
	Type   string
	Active bool
}

// devicesAPI lists the account's Connect devices.
type devicesAPI interface {
	PlayerDevices(ctx context.Context) ([]spotify.PlayerDevice, error)
}

// ListDevices returns the Connect devices of the account the credentials
// belong to. A successful call also proves the refresh token works.
func ListDevices(ctx context.Context, creds Credentials) ([]Device, error) {
	client, err := newClient(ctx, creds)
	if err != nil {
		return nil, err
	}
	return listDevices(ctx, client)
}

func listDevices(ctx context.Context, api devicesAPI) ([]Device, error) {
	devices, err := api.PlayerDevices(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list devices")
	}

	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, Device{
			ID:     string(d.ID),
			Name:   d.Name,
			Type:   d.Type,
			Active: d.Active,
		})
	}
	return out, nil
}

// convertTrack converts a Spotify FullTrack to domain Track.
func convertTrack(t *spotify.FullTrack) *track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var albumArt string
	if len(t.Album.Images) > 0 {
		albumArt = t.Album.Images[0].URL
	}

	return &track.Track{
		ID:          string(t.ID),
		Name:        t.Name,
		Artists:     artists,
		Album:       t.Album.Name,
		AlbumArtURL: albumArt,
		Duration:    time.Duration(t.Duration) * time.Millisecond,
		URL:         trackURL(string(t.ID)),
	}
}

// trackURL returns the Spotify URL for a track.
func trackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// retry retries an operation with linear backoff.
func retry(ctx context.Context, maxRetries int, delay time.Duration, fn func() error) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry aborted")
			case <-time.After(delay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}
