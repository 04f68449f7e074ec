// Package main provides the remote control CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/vplayer/internal/api/connect"
	"github.com/osa030/vplayer/internal/app/notification"
	"github.com/osa030/vplayer/internal/app/playback"
)

var (
	app    = kingpin.New("vplayer-remote", "vplayer remote control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token (or set VPLAYER_REMOTE_TOKEN env)").Envar("VPLAYER_REMOTE_TOKEN").String()

	// play command
	playCmd = app.Command("play", "Start playback")

	// pause command
	pauseCmd = app.Command("pause", "Pause playback")

	// seek command
	seekCmd = app.Command("seek", "Seek to a position")
	seekSec = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()

	// state command
	stateCmd = app.Command("state", "Show the playback state").Alias("status")

	// subscribe command
	subscribeCmd = app.Command("subscribe", "Follow playback state changes")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)
	ctx := context.Background()

	// Execute command
	switch command {
	case playCmd.FullCommand():
		printState(client.Play(ctx))
	case pauseCmd.FullCommand():
		printState(client.Pause(ctx))
	case seekCmd.FullCommand():
		printState(client.Seek(ctx, *seekSec))
	case stateCmd.FullCommand():
		printState(client.GetState(ctx))
	case subscribeCmd.FullCommand():
		subscribe(ctx, client)
	}
}

func printState(state playback.State, err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("State: %s\n", formatState(state))
}

func formatState(state playback.State) string {
	switch state {
	case playback.StateIdle:
		return "⏹  Idle"
	case playback.StateLoading:
		return "⏳ Loading"
	case playback.StatePlaying:
		return "▶️  Playing"
	case playback.StatePaused:
		return "⏸  Paused"
	case playback.StateEnded:
		return "🔚 Ended"
	case playback.StateError:
		return "❌ Error"
	default:
		return "❓ Unknown"
	}
}

func subscribe(ctx context.Context, client *apiconnect.Client) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Subscribed to state changes. Press Ctrl+C to exit.")

	err := client.Subscribe(ctx, func(n notification.Notification) {
		fmt.Printf("[Sequence: %d] %s %s\n", n.SequenceNo, n.At.Local().Format("15:04:05"), formatState(n.State))
	})
	if err != nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nUnsubscribed.")
}
