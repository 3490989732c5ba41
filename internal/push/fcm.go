package push

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Config selects the Firebase project used for delivery.
type Config struct {
	ProjectID       string
	CredentialsFile string
}

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMGateway sends through Firebase Cloud Messaging.
type FCMGateway struct {
	client       messagingClient
	unregistered func(error) bool
}

// NewFCMGateway initialises the Firebase app once. Without a credentials file
// the application default credentials are used.
func NewFCMGateway(ctx context.Context, cfg Config) (*FCMGateway, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("push: init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("push: init messaging client: %w", err)
	}
	return newFCMGateway(client), nil
}

func newFCMGateway(client messagingClient) *FCMGateway {
	return &FCMGateway{client: client, unregistered: messaging.IsUnregistered}
}

// Send delivers to one token and returns the message id.
func (g *FCMGateway) Send(ctx context.Context, token string, msg Message) (string, error) {
	id, err := g.client.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	})
	if err != nil {
		if g.unregistered(err) {
			return "", fmt.Errorf("push: send: %w: %w", ErrUnregistered, err)
		}
		return "", fmt.Errorf("push: send: %w", err)
	}
	return id, nil
}

// SendMulticast delivers one message to up to MaxMulticastTokens tokens.
func (g *FCMGateway) SendMulticast(ctx context.Context, tokens []string, msg Message) (*BatchResponse, error) {
	if len(tokens) == 0 {
		return &BatchResponse{}, nil
	}
	if len(tokens) > MaxMulticastTokens {
		return nil, ErrTooManyTokens
	}

	resp, err := g.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("push: multicast: %w", err)
	}
	if resp == nil {
		return nil, errors.New("push: multicast: empty response")
	}

	out := &BatchResponse{
		SuccessCount: resp.SuccessCount,
		FailureCount: resp.FailureCount,
		Responses:    make([]SendResponse, 0, len(resp.Responses)),
	}
	for i, r := range resp.Responses {
		item := SendResponse{}
		if i < len(tokens) {
			item.Token = tokens[i]
		}
		if r != nil {
			item.Success = r.Success
			item.MessageID = r.MessageID
			if r.Error != nil {
				item.Error = r.Error.Error()
				item.Unregistered = g.unregistered(r.Error)
			}
		}
		out.Responses = append(out.Responses, item)
	}
	return out, nil
}

var _ Gateway = (*FCMGateway)(nil)
