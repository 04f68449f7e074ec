// Package main provides the player entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/vplayer/internal/api/connect"
	"github.com/osa030/vplayer/internal/app/notification"
	"github.com/osa030/vplayer/internal/app/page"
	"github.com/osa030/vplayer/internal/app/playback"
	"github.com/osa030/vplayer/internal/infra/config"
	"github.com/osa030/vplayer/internal/infra/logger"
	"github.com/osa030/vplayer/internal/infra/media"
	"github.com/osa030/vplayer/internal/infra/spotify"
)

// nowPlayingDisplay shows the device's current track on the Spotify backend.
const nowPlayingDisplay = "nowPlaying"

var (
	app        = kingpin.New("vplayer", "media element player with terminal and remote controls")
	configPath = app.Flag("config", "Path to config file (default: built-in defaults)").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	// list-events command
	listEventsCmd = app.Command("list-events", "List native events and the states they map to, then exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the player (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listEventsCmd.FullCommand() {
		printEvents()
		return
	}

	// Initialize logger. stdout belongs to the terminal page.
	loggerConfig := logger.Config{
		Output: "stderr",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() { _ = logger.Close() }()

	// Load config
	var cfg *config.Config
	var err error
	if *configPath != "" {
		zlog.Info().Msgf("Loading config from %s", *configPath)
		cfg, err = config.Load(*configPath)
	} else {
		zlog.Info().Msg("No config file given, using defaults")
		cfg, err = config.Default()
	}
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run executes the main player logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	term := page.NewTerminal(os.Stdin, os.Stdout)

	// Create the host element
	element, err := newElement(ctx, cfg, term)
	if err != nil {
		return errors.Wrap(err, "failed to create media element")
	}

	term.AddMedia(cfg.Page.Media, element)
	term.AddButton(cfg.Page.Play, "play")
	term.AddButton(cfg.Page.Pause, "pause")
	term.AddButton(cfg.Page.Seek, "seek")
	term.AddDisplay(cfg.Page.Status)
	term.AddCommand("quit", cancel)

	// Wire page controls
	notifier := notification.NewManager()
	player, err := page.Wire(ctx, term, page.Binding{
		IDs: page.IDs{
			Media:  cfg.Page.Media,
			Play:   cfg.Page.Play,
			Pause:  cfg.Page.Pause,
			Seek:   cfg.Page.Seek,
			Status: cfg.Page.Status,
		},
		SeekTo: cfg.Player.SeekToSec,
		Observers: []func(playback.State){
			func(s playback.State) { notifier.Broadcast(s) },
		},
	})
	if err != nil {
		return err
	}
	defer player.Close()

	// Create RPC service
	controlService := apiconnect.NewControlService(player, notifier)
	handler := controlService.Handler(apiconnect.NewTokenInterceptor(cfg.Remote.Token))
	if cfg.Remote.Token == "" {
		zlog.Warn().Msg("remote.token is empty, remote commands are not authenticated")
	}

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting control server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Execute startup hook if configured
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	go func() {
		if err := term.Run(ctx); err != nil {
			zlog.Error().Err(err).Msg("Terminal input failed")
		}
		zlog.Debug().Msg("Terminal input closed")
	}()

	// Wait for shutdown signal, quit command or server error
	select {
	case <-ctx.Done():
		zlog.Info().Msg("Shutting down...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Close notifications first to terminate active streams
	notifier.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Player stopped")

	// Execute shutdown hook if configured
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// newElement creates the configured host element. Background work of the
// element stops with ctx.
func newElement(ctx context.Context, cfg *config.Config, term *page.Terminal) (playback.MediaElement, error) {
	switch cfg.Backend.Type {
	case config.BackendSpotify:
		elementCfg, err := spotify.DecodeElementConfig(cfg.Backend.Settings)
		if err != nil {
			return nil, err
		}
		element, err := spotify.NewElement(ctx, spotify.Credentials{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
		}, elementCfg)
		if err != nil {
			return nil, err
		}
		go func() {
			if err := element.Run(ctx); err != nil {
				zlog.Error().Err(err).Msg("Spotify poller stopped")
			}
		}()
		term.AddDisplay(nowPlayingDisplay)
		term.AddCommand("track", func() {
			display, _ := term.Display(nowPlayingDisplay)
			if t := element.NowPlaying(); t != nil {
				display.SetText(t.Title())
				return
			}
			display.SetText("nothing playing")
		})
		zlog.Info().Msgf("Using Spotify backend: track=%s", elementCfg.TrackURI)
		return element, nil

	default:
		simCfg, err := media.DecodeSimulatedConfig(cfg.Backend.Settings)
		if err != nil {
			return nil, err
		}
		element := media.NewSimulated(simCfg)
		go func() {
			<-ctx.Done()
			element.Close()
		}()
		term.AddCommand("fail", func() {
			element.Fail(errors.New("simulated media error"))
		})
		zlog.Info().Msgf("Using simulated backend: duration=%.0fs startup_delay=%dms fail_play=%t",
			simCfg.DurationSec, simCfg.StartupDelayMs, simCfg.FailPlay)
		return element, nil
	}
}

// printEvents prints the native event to state mapping.
func printEvents() {
	fmt.Println("Native Events:")
	for _, ev := range playback.Events() {
		fmt.Printf("  %-10s -> %s\n", ev, ev.State())
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
