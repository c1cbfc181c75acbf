package notify

import (
	"context"
	"fmt"
	"time"

	"clienthub-backend/internal/model"

	"github.com/go-resty/resty/v2"
)

// WebhookNotifier forwards client-authored messages to an external endpoint.
// Delivery failures are the dispatcher's to log; they never reach the sender.
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &WebhookNotifier{
		client: client,
		url:    url,
	}
}

// Register subscribes the notifier for new-client-message events.
func (n *WebhookNotifier) Register(dispatcher Dispatcher) {
	if n.url == "" {
		return
	}
	dispatcher.Subscribe(EventMessageCreated, n.handleMessageCreated)
}

func (n *WebhookNotifier) handleMessageCreated(ctx context.Context, event Event) error {
	payload, ok := event.Payload.(MessageCreatedPayload)
	if !ok {
		return fmt.Errorf("webhook: unexpected payload type for event %s", event.ID)
	}
	if payload.SenderKind != model.ActorKindClient {
		return nil
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook: post event %s: %w", event.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: endpoint returned %d for event %s", resp.StatusCode(), event.ID)
	}
	return nil
}
