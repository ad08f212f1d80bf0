// Package slack posts operator alerts to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"mealvoice"
	"mealvoice/orchestrator"
)

const (
	defaultUsername = "mealvoice"
	defaultCooldown = 10 * time.Minute
)

type Client struct {
	webhookURL string
	username   string
	httpClient mealvoice.HTTPClient
}

func NewClient(webhookURL string, httpClient mealvoice.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		webhookURL: webhookURL,
		username:   defaultUsername,
		httpClient: httpClient,
	}
}

type webhookPayload struct {
	Channel   string `json:"channel,omitempty"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
	Text      string `json:"text"`
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(webhookPayload{
		Channel:   channel,
		Username:  c.username,
		IconEmoji: ":rotating_light:",
		Text:      message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("failed to post slack message: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// Alerter turns orchestrator failures into Slack messages. Repeats of the same
// status code inside the cooldown window are dropped.
type Alerter struct {
	client   mealvoice.SlackClient
	channel  string
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[int]time.Time
}

type AlerterOpts struct {
	Channel  string
	Cooldown time.Duration
	Now      func() time.Time
}

func NewAlerter(client mealvoice.SlackClient, opts AlerterOpts) *Alerter {
	if opts.Cooldown <= 0 {
		opts.Cooldown = defaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Alerter{
		client:   client,
		channel:  opts.Channel,
		cooldown: opts.Cooldown,
		now:      opts.Now,
		last:     make(map[int]time.Time),
	}
}

func (a *Alerter) Alert(ctx context.Context, failure orchestrator.Failure) error {
	if !a.due(failure.StatusCode) {
		slog.Debug("SLACK: Alert suppressed during cooldown", "status", failure.StatusCode)
		return nil
	}

	if err := a.client.PostMessage(ctx, a.channel, FormatFailure(failure)); err != nil {
		return err
	}
	slog.Info("SLACK: Alert sent", "channel", a.channel, "status", failure.StatusCode)
	return nil
}

func (a *Alerter) due(status int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if at, ok := a.last[status]; ok && now.Sub(at) < a.cooldown {
		return false
	}
	a.last[status] = now
	return true
}

func FormatFailure(f orchestrator.Failure) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":warning: Meal analysis request rejected (status %d)\n", f.StatusCode)
	fmt.Fprintf(&b, "*Reason:* %s\n", f.Reason)
	if f.Err != nil {
		fmt.Fprintf(&b, "*Error:* `%s`\n", f.Err)
	}
	fmt.Fprintf(&b, "*Transcript length:* %d characters", len(f.Transcript))
	return b.String()
}
