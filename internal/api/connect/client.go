package connect

import (
	"context"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/vplayer/internal/app/notification"
	"github.com/osa030/vplayer/internal/app/playback"
)

// timeLayout is the notification time format on the wire.
const timeLayout = time.RFC3339Nano

// Client is a typed client for the control service.
type Client struct {
	token     string
	play      *connect.Client[emptypb.Empty, wrapperspb.StringValue]
	pause     *connect.Client[emptypb.Empty, wrapperspb.StringValue]
	seek      *connect.Client[wrapperspb.DoubleValue, wrapperspb.StringValue]
	getState  *connect.Client[emptypb.Empty, wrapperspb.StringValue]
	subscribe *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewClient creates a control client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		token:     token,
		play:      connect.NewClient[emptypb.Empty, wrapperspb.StringValue](httpClient, baseURL+PlayProcedure, opts...),
		pause:     connect.NewClient[emptypb.Empty, wrapperspb.StringValue](httpClient, baseURL+PauseProcedure, opts...),
		seek:      connect.NewClient[wrapperspb.DoubleValue, wrapperspb.StringValue](httpClient, baseURL+SeekProcedure, opts...),
		getState:  connect.NewClient[emptypb.Empty, wrapperspb.StringValue](httpClient, baseURL+GetStateProcedure, opts...),
		subscribe: connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+SubscribeProcedure, opts...),
	}
}

// Play requests playback and returns the state after the request.
func (c *Client) Play(ctx context.Context) (playback.State, error) {
	return callState(ctx, c.token, c.play, &emptypb.Empty{})
}

// Pause requests a pause and returns the state after the request.
func (c *Client) Pause(ctx context.Context) (playback.State, error) {
	return callState(ctx, c.token, c.pause, &emptypb.Empty{})
}

// Seek moves the position and returns the current state.
func (c *Client) Seek(ctx context.Context, sec float64) (playback.State, error) {
	return callState(ctx, c.token, c.seek, wrapperspb.Double(sec))
}

// GetState returns the current state.
func (c *Client) GetState(ctx context.Context) (playback.State, error) {
	return callState(ctx, c.token, c.getState, &emptypb.Empty{})
}

// Subscribe calls fn for every notification until the stream ends or ctx is done.
func (c *Client) Subscribe(ctx context.Context, fn func(notification.Notification)) error {
	stream, err := c.subscribe.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		n, err := fromStruct(stream.Msg())
		if err != nil {
			return err
		}
		fn(n)
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// callState makes a unary call whose response carries a state name.
func callState[Req any](
	ctx context.Context,
	token string,
	client *connect.Client[Req, wrapperspb.StringValue],
	msg *Req,
) (playback.State, error) {
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set(ControlTokenHeader, token)
	}
	resp, err := client.CallUnary(ctx, req)
	if err != nil {
		return playback.StateIdle, err
	}
	return playback.ParseState(resp.Msg.GetValue())
}

// fromStruct decodes a notification sent by the control service.
func fromStruct(msg *structpb.Struct) (notification.Notification, error) {
	fields := msg.GetFields()

	state, err := playback.ParseState(fields["state"].GetStringValue())
	if err != nil {
		return notification.Notification{}, err
	}

	at, err := time.Parse(timeLayout, fields["time"].GetStringValue())
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "failed to parse notification time")
	}

	return notification.Notification{
		SequenceNo: uint64(fields["sequence_no"].GetNumberValue()),
		State:      state,
		At:         at,
	}, nil
}
