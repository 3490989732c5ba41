package push

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/charlesng35/inspectd/pkg/logger"
)

// LogGateway accepts every message and only logs it. It stands in for FCM when
// push delivery is disabled, e.g. in development.
type LogGateway struct {
	log *zap.Logger
	seq atomic.Uint64
}

// NewLogGateway constructs a LogGateway. A nil logger uses the push module logger.
func NewLogGateway(log *zap.Logger) *LogGateway {
	if log == nil {
		log = logger.WithModule("push")
	}
	return &LogGateway{log: log}
}

func (g *LogGateway) Send(_ context.Context, token string, msg Message) (string, error) {
	id := g.nextID()
	g.log.Info("push message (delivery disabled)",
		zap.String("token", redact(token)),
		zap.String("title", msg.Title),
		zap.String("message_id", id),
	)
	return id, nil
}

func (g *LogGateway) SendMulticast(_ context.Context, tokens []string, msg Message) (*BatchResponse, error) {
	if len(tokens) > MaxMulticastTokens {
		return nil, ErrTooManyTokens
	}
	resp := &BatchResponse{SuccessCount: len(tokens), Responses: make([]SendResponse, len(tokens))}
	for i, token := range tokens {
		resp.Responses[i] = SendResponse{Token: token, Success: true, MessageID: g.nextID()}
	}
	g.log.Info("push multicast (delivery disabled)",
		zap.Int("tokens", len(tokens)),
		zap.String("title", msg.Title),
	)
	return resp, nil
}

func (g *LogGateway) nextID() string {
	return fmt.Sprintf("log-%d", g.seq.Add(1))
}

func redact(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "…" + token[len(token)-4:]
}

var _ Gateway = (*LogGateway)(nil)
