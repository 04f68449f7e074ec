// Package page binds page controls to a playback.Player.
package page

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vplayer/internal/app/playback"
)

// ErrMissingElements is returned by Wire when a control cannot be found.
var ErrMissingElements = errors.New("one or more page elements not found")

// DefaultSeekTo is the position the seek button jumps to, in seconds.
const DefaultSeekTo = 30

// ReadyText is shown on the status display once every control is found.
const ReadyText = "ready"

// Button is a clickable control.
type Button interface {
	OnClick(fn func())
}

// Display shows a line of text.
type Display interface {
	SetText(text string)
}

// Page looks up controls by identifier.
type Page interface {
	MediaElement(id string) (playback.MediaElement, bool)
	Button(id string) (Button, bool)
	Display(id string) (Display, bool)
}

// IDs names the controls Wire looks up.
type IDs struct {
	Media  string // Media element
	Play   string // Play button
	Pause  string // Pause button
	Seek   string // Seek button
	Status string // Status display
}

// DefaultIDs returns the standard control identifiers.
func DefaultIDs() IDs {
	return IDs{
		Media:  "videoElement",
		Play:   "playBtn",
		Pause:  "pauseBtn",
		Seek:   "seekBtn",
		Status: "playbackState",
	}
}

// Binding configures Wire.
type Binding struct {
	IDs       IDs
	SeekTo    float64                // Seek button target; 0 means DefaultSeekTo
	Observers []func(playback.State) // Called after the status display is updated
}

// Wire looks up the controls of b.IDs on p, creates a Player on the media
// element and binds the play, pause and seek buttons to it.
//
// When a control is missing nothing is bound, the failure is logged and
// ErrMissingElements is returned with the missing identifiers.
// The play button runs Player.Play on its own goroutine with ctx.
func Wire(ctx context.Context, p Page, b Binding) (*playback.Player, error) {
	ids := b.IDs
	var missing []string

	element, ok := p.MediaElement(ids.Media)
	zlog.Debug().Msgf("page: lookup %s: found=%t", ids.Media, ok)
	if !ok {
		missing = append(missing, ids.Media)
	}

	buttons := make(map[string]Button, 3)
	for _, id := range []string{ids.Play, ids.Pause, ids.Seek} {
		btn, ok := p.Button(id)
		zlog.Debug().Msgf("page: lookup %s: found=%t", id, ok)
		if !ok {
			missing = append(missing, id)
			continue
		}
		buttons[id] = btn
	}

	status, ok := p.Display(ids.Status)
	zlog.Debug().Msgf("page: lookup %s: found=%t", ids.Status, ok)
	if !ok {
		missing = append(missing, ids.Status)
	}

	if len(missing) > 0 {
		zlog.Error().Msgf("page: one or more page elements not found: %s", strings.Join(missing, ", "))
		return nil, errors.Wrapf(ErrMissingElements, "missing %s", strings.Join(missing, ", "))
	}

	status.SetText(ReadyText)

	observers := b.Observers
	player, err := playback.NewPlayer(playback.Options{
		Element: element,
		OnStateChange: func(s playback.State) {
			status.SetText(s.String())
			for _, fn := range observers {
				fn(s)
			}
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create player")
	}

	seekTo := b.SeekTo
	if seekTo == 0 {
		seekTo = DefaultSeekTo
	}

	buttons[ids.Play].OnClick(func() {
		go player.Play(ctx)
	})
	buttons[ids.Pause].OnClick(player.Pause)
	buttons[ids.Seek].OnClick(func() {
		player.Seek(seekTo)
	})

	zlog.Info().Msgf("page: controls bound: play=%s pause=%s seek=%s(%.0fs) status=%s",
		ids.Play, ids.Pause, ids.Seek, seekTo, ids.Status)

	return player, nil
}
