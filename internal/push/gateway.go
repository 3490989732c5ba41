// Package push delivers notifications to device tokens.
package push

import (
	"context"
	"errors"
)

// MaxMulticastTokens is the per-call token limit of SendMulticast.
const MaxMulticastTokens = 500

var (
	// ErrTooManyTokens is returned when a multicast exceeds MaxMulticastTokens.
	ErrTooManyTokens = errors.New("push: too many tokens for one multicast")
	// ErrUnregistered marks a Send failure caused by a token the provider no
	// longer recognises. Such tokens should be pruned.
	ErrUnregistered = errors.New("push: token unregistered")
)

// Message is the notification payload. Data values are always strings.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// SendResponse is the per-token outcome of a multicast.
type SendResponse struct {
	Token        string `json:"token"`
	Success      bool   `json:"success"`
	MessageID    string `json:"messageId,omitempty"`
	Error        string `json:"error,omitempty"`
	Unregistered bool   `json:"unregistered,omitempty"`
}

// BatchResponse aggregates a multicast. Responses follow the input token order.
type BatchResponse struct {
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
	Responses    []SendResponse `json:"responses"`
}

// Gateway is the push delivery service.
type Gateway interface {
	Send(ctx context.Context, token string, msg Message) (string, error)
	SendMulticast(ctx context.Context, tokens []string, msg Message) (*BatchResponse, error)
}

// Chunk splits tokens into slices of at most size entries.
func Chunk(tokens []string, size int) [][]string {
	if size <= 0 {
		size = MaxMulticastTokens
	}
	chunks := make([][]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := min(start+size, len(tokens))
		chunks = append(chunks, tokens[start:end])
	}
	return chunks
}
