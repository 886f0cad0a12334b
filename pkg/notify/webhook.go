package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EventInvitationSent is the event type posted for invitations
const EventInvitationSent = "invitation.sent"

// WebhookEvent is the JSON body posted by WebhookNotifier
type WebhookEvent struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Invitation *Invitation `json:"invitation"`
	Subject    string      `json:"subject"`
}

// WebhookNotifier posts invitations to an HTTP endpoint, signed with HMAC-SHA256
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier. A nil client gets a 10s timeout.
func NewWebhookNotifier(url, secret string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, secret: secret, client: client}
}

// Name implements Notifier
func (n *WebhookNotifier) Name() string { return "webhook" }

// NotifyInvitation implements Notifier
func (n *WebhookNotifier) NotifyInvitation(ctx context.Context, inv *Invitation) error {
	msg, err := RenderInvitation(inv)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(WebhookEvent{
		Type:       EventInvitationSent,
		OccurredAt: time.Now().UTC(),
		Invitation: inv,
		Subject:    msg.Subject,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Inkwell-Event", EventInvitationSent)
	if n.secret != "" {
		req.Header.Set("X-Inkwell-Signature", Sign(payload, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the X-Inkwell-Signature value for payload
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a X-Inkwell-Signature value
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
