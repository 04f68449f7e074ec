// Package connect provides the Connect RPC remote control service.
package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/vplayer/internal/app/notification"
	"github.com/osa030/vplayer/internal/app/playback"
)

// ServiceName is the fully-qualified control service name.
const ServiceName = "vplayer.v1.ControlService"

// Procedure paths.
const (
	PlayProcedure      = "/" + ServiceName + "/Play"
	PauseProcedure     = "/" + ServiceName + "/Pause"
	SeekProcedure      = "/" + ServiceName + "/Seek"
	GetStateProcedure  = "/" + ServiceName + "/GetState"
	SubscribeProcedure = "/" + ServiceName + "/Subscribe"
)

// Controller is the player surface exposed remotely.
type Controller interface {
	TryPlay(ctx context.Context) error
	Pause()
	Seek(sec float64)
	PlaybackState() playback.State
}

// Ensure *playback.Player implements Controller.
var _ Controller = (*playback.Player)(nil)

// ControlService implements the remote control RPCs.
type ControlService struct {
	player   Controller
	notifier *notification.Manager
}

// NewControlService creates a new ControlService.
func NewControlService(player Controller, notifier *notification.Manager) *ControlService {
	return &ControlService{
		player:   player,
		notifier: notifier,
	}
}

// Handler returns an http.Handler serving every procedure. Mutating
// procedures are wrapped with the given interceptors.
func (s *ControlService) Handler(mutating ...connect.Interceptor) http.Handler {
	guarded := connect.WithInterceptors(mutating...)

	mux := http.NewServeMux()
	mux.Handle(PlayProcedure, connect.NewUnaryHandler(PlayProcedure, s.Play, guarded))
	mux.Handle(PauseProcedure, connect.NewUnaryHandler(PauseProcedure, s.Pause, guarded))
	mux.Handle(SeekProcedure, connect.NewUnaryHandler(SeekProcedure, s.Seek, guarded))
	mux.Handle(GetStateProcedure, connect.NewUnaryHandler(GetStateProcedure, s.GetState))
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, s.Subscribe))
	return mux
}

// Play requests playback and reports a host rejection as CodeUnavailable.
func (s *ControlService) Play(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[wrapperspb.StringValue], error) {
	if err := s.player.TryPlay(ctx); err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}
	return s.stateResponse(), nil
}

// Pause requests a pause.
func (s *ControlService) Pause(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[wrapperspb.StringValue], error) {
	s.player.Pause()
	return s.stateResponse(), nil
}

// Seek moves the playback position.
func (s *ControlService) Seek(
	ctx context.Context,
	req *connect.Request[wrapperspb.DoubleValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	s.player.Seek(req.Msg.GetValue())
	return s.stateResponse(), nil
}

// GetState returns the current playback state.
func (s *ControlService) GetState(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[wrapperspb.StringValue], error) {
	return s.stateResponse(), nil
}

// Subscribe streams the current state followed by every state change.
func (s *ControlService) Subscribe(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	adapter := &notificationStreamAdapter{stream: stream}
	subscriptionID := s.notifier.Subscribe(adapter)
	defer s.notifier.Unsubscribe(subscriptionID)

	zlog.Debug().Msgf("connect: subscriber joined: subscribers=%d", s.notifier.SubscriberCount())

	// Registered before the current state is read, so a change in between
	// is broadcast to this stream after the initial state.
	if err := adapter.sendCurrent(func() notification.Notification {
		return s.notifier.Snapshot(s.player.PlaybackState())
	}); err != nil {
		return err
	}

	// Wait for context cancellation or manager shutdown
	select {
	case <-ctx.Done():
	case <-s.notifier.Done():
	}
	return nil
}

func (s *ControlService) stateResponse() *connect.Response[wrapperspb.StringValue] {
	return connect.NewResponse(wrapperspb.String(s.player.PlaybackState().String()))
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[structpb.Struct]
}

// sendCurrent sends the notification built by current while holding the
// send lock, so broadcasts queued meanwhile follow it.
func (a *notificationStreamAdapter) sendCurrent(current func() notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	msg, err := toStruct(current())
	if err != nil {
		return connect.NewError(connect.CodeInternal, err)
	}
	return a.stream.Send(msg)
}

func (a *notificationStreamAdapter) Send(n notification.Notification) error {
	msg, err := toStruct(n)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.stream.Send(msg); err != nil {
		zlog.Debug().Err(err).Msg("connect: notification send failed")
		return err
	}
	return nil
}

// toStruct encodes a notification as a protobuf Struct.
func toStruct(n notification.Notification) (*structpb.Struct, error) {
	msg, err := structpb.NewStruct(map[string]any{
		"sequence_no": float64(n.SequenceNo),
		"state":       n.State.String(),
		"time":        n.At.UTC().Format(timeLayout),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode notification")
	}
	return msg, nil
}
