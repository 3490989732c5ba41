// Package pushtest provides a testify mock of push.Gateway.
package pushtest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/charlesng35/inspectd/internal/push"
)

// MockGateway records gateway calls.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Send(ctx context.Context, token string, msg push.Message) (string, error) {
	args := m.Called(ctx, token, msg)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) SendMulticast(ctx context.Context, tokens []string, msg push.Message) (*push.BatchResponse, error) {
	args := m.Called(ctx, tokens, msg)
	resp, _ := args.Get(0).(*push.BatchResponse)
	return resp, args.Error(1)
}

// AllDelivered builds a fully successful response for tokens.
func AllDelivered(tokens []string) *push.BatchResponse {
	resp := &push.BatchResponse{SuccessCount: len(tokens)}
	for _, token := range tokens {
		resp.Responses = append(resp.Responses, push.SendResponse{Token: token, Success: true, MessageID: "msg-" + token})
	}
	return resp
}

var _ push.Gateway = (*MockGateway)(nil)
