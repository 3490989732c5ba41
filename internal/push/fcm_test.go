package push

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMessaging struct {
	mock.Mock
}

func (m *mockMessaging) Send(ctx context.Context, message *messaging.Message) (string, error) {
	args := m.Called(ctx, message)
	return args.String(0), args.Error(1)
}

func (m *mockMessaging) SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	args := m.Called(ctx, message)
	resp, _ := args.Get(0).(*messaging.BatchResponse)
	return resp, args.Error(1)
}

var errGone = errors.New("registration-token-not-registered")

func newTestGateway(client messagingClient) *FCMGateway {
	gw := newFCMGateway(client)
	gw.unregistered = func(err error) bool { return errors.Is(err, errGone) }
	return gw
}

func TestFCMGatewaySend(t *testing.T) {
	client := &mockMessaging{}
	client.On("Send", mock.Anything, mock.MatchedBy(func(m *messaging.Message) bool {
		return m.Token == "tok-1" && m.Notification.Title == "Hi" && m.Data["jobId"] == "j1"
	})).Return("projects/p/messages/1", nil).Once()

	id, err := newTestGateway(client).Send(context.Background(), "tok-1", Message{
		Title: "Hi", Body: "there", Data: map[string]string{"jobId": "j1"},
	})
	require.NoError(t, err)
	require.Equal(t, "projects/p/messages/1", id)
	client.AssertExpectations(t)
}

func TestFCMGatewaySendFlagsUnregistered(t *testing.T) {
	client := &mockMessaging{}
	client.On("Send", mock.Anything, mock.Anything).Return("", errGone).Once()

	_, err := newTestGateway(client).Send(context.Background(), "stale", Message{Title: "Hi"})
	require.ErrorIs(t, err, ErrUnregistered)
	require.ErrorIs(t, err, errGone)
}

func TestFCMGatewayMulticastMapsResponses(t *testing.T) {
	client := &mockMessaging{}
	client.On("SendEachForMulticast", mock.Anything, mock.Anything).Return(&messaging.BatchResponse{
		SuccessCount: 1,
		FailureCount: 2,
		Responses: []*messaging.SendResponse{
			{Success: true, MessageID: "m1"},
			{Error: errGone},
			{Error: errors.New("quota exceeded")},
		},
	}, nil).Once()

	resp, err := newTestGateway(client).SendMulticast(context.Background(), []string{"a", "b", "c"}, Message{Title: "t"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.SuccessCount)
	require.Equal(t, 2, resp.FailureCount)
	require.Equal(t, SendResponse{Token: "a", Success: true, MessageID: "m1"}, resp.Responses[0])
	require.True(t, resp.Responses[1].Unregistered)
	require.Equal(t, "b", resp.Responses[1].Token)
	require.False(t, resp.Responses[2].Unregistered)
	require.Equal(t, "quota exceeded", resp.Responses[2].Error)
}

func TestFCMGatewayMulticastLimits(t *testing.T) {
	client := &mockMessaging{}
	gw := newTestGateway(client)

	resp, err := gw.SendMulticast(context.Background(), nil, Message{})
	require.NoError(t, err)
	require.Zero(t, resp.SuccessCount)

	_, err = gw.SendMulticast(context.Background(), make([]string, MaxMulticastTokens+1), Message{})
	require.ErrorIs(t, err, ErrTooManyTokens)
	client.AssertNotCalled(t, "SendEachForMulticast", mock.Anything, mock.Anything)
}

func TestChunk(t *testing.T) {
	tokens := make([]string, 1201)
	chunks := Chunk(tokens, MaxMulticastTokens)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 500)
	require.Len(t, chunks[2], 201)
	require.Empty(t, Chunk(nil, 0))
}
