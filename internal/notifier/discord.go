package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	colorAlertsFired = 15277667 // #E91E63

	maxDiscordRetries     = 3
	maxEmbedDescription   = 4000
	defaultDiscordBackoff = time.Second
)

// DiscordClient posts run summaries to an operator webhook.
type DiscordClient struct {
	webhookURL  string
	client      *http.Client
	rateLimiter *rate.Limiter
	baseBackoff time.Duration
}

// NewDiscord paces requests at Discord's 5 per 2 seconds webhook limit.
func NewDiscord(webhookURL string) *DiscordClient {
	return &DiscordClient{
		webhookURL:  webhookURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 1),
		baseBackoff: defaultDiscordBackoff,
	}
}

type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type discordEmbed struct {
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Timestamp   string             `json:"timestamp,omitempty"`
	Color       int                `json:"color,omitempty"`
	Footer      discordEmbedFooter `json:"footer,omitempty"`
}

// SendSummary posts one embed listing lines. Without a webhook it does nothing.
func (c *DiscordClient) SendSummary(ctx context.Context, title string, lines []string) error {
	if c.webhookURL == "" {
		return nil
	}
	payload := discordWebhookPayload{Embeds: []discordEmbed{formatSummaryEmbed(title, lines, time.Now())}}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.post(ctx, body)
}

func formatSummaryEmbed(title string, lines []string, now time.Time) discordEmbed {
	var b strings.Builder
	shown := 0
	for _, line := range lines {
		entry := "• " + line + "\n"
		if b.Len()+len(entry) > maxEmbedDescription {
			break
		}
		b.WriteString(entry)
		shown++
	}

	embed := discordEmbed{
		Title:       title,
		Description: strings.TrimRight(b.String(), "\n"),
		Timestamp:   now.UTC().Format(time.RFC3339),
		Color:       colorAlertsFired,
	}
	if shown < len(lines) {
		embed.Footer.Text = fmt.Sprintf("and %d more", len(lines)-shown)
	}
	return embed
}

func (c *DiscordClient) post(ctx context.Context, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= maxDiscordRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if !sleepCtx(ctx, c.baseBackoff<<attempt) {
				return ctx.Err()
			}
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("discord status: %s, body: %s", resp.Status, string(respBody))

		backoff := retryBackoff(resp, attempt, c.baseBackoff)
		if backoff == 0 {
			return lastErr
		}
		slog.Warn("Discord webhook failed, retrying", "status", resp.StatusCode, "attempt", attempt+1, "backoff", backoff)
		if !sleepCtx(ctx, backoff) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("discord webhook failed after %d retries: %w", maxDiscordRetries, lastErr)
}

// retryBackoff returns how long to wait before retrying resp, or zero when
// the status is not retryable.
func retryBackoff(resp *http.Response, attempt int, base time.Duration) time.Duration {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
		return base << attempt
	case resp.StatusCode >= 500:
		return base << attempt
	default:
		return 0
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
