// Package main provides the Spotify authorization tool for the Spotify backend.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"

	"github.com/osa030/vplayer/internal/infra/config"
	"github.com/osa030/vplayer/internal/infra/logger"
	"github.com/osa030/vplayer/internal/infra/spotify"
)

var (
	app          = kingpin.New("vplayer-auth", "Authorize the Spotify backend and print its config block")
	configPath   = app.Flag("config", "Config file to take credentials and backend settings from").String()
	clientID     = app.Flag("client-id", "Spotify Client ID (overrides config)").String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret (overrides config)").String()
	trackURI     = app.Flag("track", "Track URI or URL to play").String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
	timeout      = app.Flag("timeout", "How long to wait for the browser").Default("5m").Duration()
)

// configBlock is the part of the player config this tool fills in.
type configBlock struct {
	Spotify config.SpotifyConfig `yaml:"spotify"`
	Backend config.BackendConfig `yaml:"backend"`
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	if err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := loadConfig()
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	creds := spotify.Credentials{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		zlog.Fatal().Msg("Client ID and secret are required (--client-id/--client-secret, config or SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	authCtx, authCancel := context.WithTimeout(ctx, *timeout)
	defer authCancel()

	token, err := authorize(authCtx, creds, *port)
	if err != nil {
		zlog.Fatal().Msgf("Authorization failed: %v", err)
	}
	creds.RefreshToken = token.RefreshToken

	devices, err := spotify.ListDevices(ctx, creds)
	if err != nil {
		zlog.Fatal().Msgf("Refresh token check failed: %v", err)
	}
	printDevices(devices)

	block := buildConfigBlock(cfg, creds, *trackURI, devices)
	if _, ok := block.Backend.Settings["track_uri"]; !ok {
		zlog.Warn().Msg("No track given, set backend.settings.track_uri before starting the player")
	}

	out, err := yaml.Marshal(block)
	if err != nil {
		zlog.Fatal().Msgf("Failed to render config: %v", err)
	}

	fmt.Println("")
	fmt.Println("Add this to your player.yaml:")
	fmt.Println("")
	fmt.Print(string(out))
	fmt.Println("")
	fmt.Println("Or set the token as environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=%q\n", token.RefreshToken)
}

// loadConfig reads the config without validating it, since the refresh
// token it would require is what this tool produces. Flags override it.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Read(*configPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}

	if *clientID != "" {
		cfg.Spotify.ClientID = *clientID
	}
	if *clientSecret != "" {
		cfg.Spotify.ClientSecret = *clientSecret
	}
	return cfg, nil
}

// authorize runs the authorization code flow against a local callback
// server and returns the token once the browser comes back.
func authorize(ctx context.Context, creds spotify.Credentials, port int) (*oauth2.Token, error) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	auth := spotify.NewAuthenticator(creds, "http://"+addr+"/callback")
	state := uuid.New().String()

	type result struct {
		token *oauth2.Token
		err   error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if st := r.FormValue("state"); st != state {
			http.Error(w, "state mismatch", http.StatusForbidden)
			zlog.Warn().Msgf("Ignoring callback with unexpected state: %s", st)
			return
		}

		token, err := auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "failed to get token", http.StatusForbidden)
		} else {
			fmt.Fprintln(w, "vplayer is authorized. You can close this window.")
		}

		select {
		case results <- result{token: token, err: err}:
		default:
		}
	})

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start callback server")
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			zlog.Error().Err(err).Msg("Callback server stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Println("Open this URL to let vplayer control your Spotify devices:")
	fmt.Println("")
	fmt.Println(auth.AuthURL(state))
	fmt.Println("")

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for authorization")
	case res := <-results:
		if res.err != nil {
			return nil, errors.Wrap(res.err, "token exchange failed")
		}
		return res.token, nil
	}
}

func printDevices(devices []spotify.Device) {
	if len(devices) == 0 {
		fmt.Println("No Spotify Connect devices online. Open Spotify on the device to control.")
		return
	}
	fmt.Println("Devices:")
	for _, d := range devices {
		marker := " "
		if d.Active {
			marker = "*"
		}
		fmt.Printf("  %s %-24s %-12s %s\n", marker, d.Name, d.Type, d.ID)
	}
}

// buildConfigBlock merges the existing Spotify backend settings with the
// new token, the given track and, when no device is configured, the
// active device.
func buildConfigBlock(cfg *config.Config, creds spotify.Credentials, track string, devices []spotify.Device) configBlock {
	settings := make(map[string]any)
	if cfg.Backend.Type == config.BackendSpotify {
		for k, v := range cfg.Backend.Settings {
			settings[k] = v
		}
	}
	if track != "" {
		settings["track_uri"] = track
	}
	if _, ok := settings["device_id"]; !ok {
		for _, d := range devices {
			if d.Active {
				settings["device_id"] = d.ID
				break
			}
		}
	}

	return configBlock{
		Spotify: config.SpotifyConfig{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RefreshToken: creds.RefreshToken,
		},
		Backend: config.BackendConfig{
			Type:     config.BackendSpotify,
			Settings: settings,
		},
	}
}
