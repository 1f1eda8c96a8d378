// Package callmebot wraps the CallMeBot voice-call HTTP API. A delivery
// request is a single GET whose query parameters carry the target, the text to
// be spoken and the user's call preferences. Any transport error or non-2xx
// response is returned as a plain failure; retry policy lives in the engine.
package callmebot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/haowern98/Telebot/internal/domain"
)

const userAgent = "call-scheduler-bot/1.0"

// Config configures the gateway: one fixed endpoint and a bounded per-request
// timeout.
type Config struct {
	Endpoint      string
	Timeout       time.Duration
	MaxMessageLen int
}

// Client issues voice-call requests against the CallMeBot endpoint.
type Client struct {
	endpoint string
	maxLen   int
	httpc    *http.Client
	log      *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		maxLen:   cfg.MaxMessageLen,
		httpc:    &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}
}

// Deliver places one voice call. The contact is normalized to its canonical
// form and the message truncated to the configured maximum before the request
// goes out.
func (c *Client) Deliver(ctx context.Context, contact, message string, s domain.Settings) error {
	target := NormalizeContact(contact)

	q := url.Values{}
	q.Set("source", "web")
	q.Set("user", target)
	q.Set("text", c.CleanMessage(message))
	q.Set("lang", s.Language)
	q.Set("rpt", strconv.Itoa(s.Repeat))
	q.Set("timeout", strconv.Itoa(s.Timeout))
	if s.SendTextCopy {
		q.Set("cc", "yes")
	} else {
		q.Set("cc", "no")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("callmebot: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("callmebot: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("callmebot: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.log.Info("call placed",
		zap.String("target", redact(target)),
		zap.String("lang", s.Language),
	)
	return nil
}

// CleanMessage collapses whitespace and truncates to the configured maximum,
// appending a truncation marker when text was dropped. The limit is in
// characters; truncation never splits a rune.
func (c *Client) CleanMessage(message string) string {
	msg := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(msg) > c.maxLen {
		runes := []rune(msg)
		msg = string(runes[:c.maxLen-3]) + "..."
	}
	return msg
}

// redact keeps log lines from carrying full contact details.
func redact(target string) string {
	if len(target) <= 4 {
		return target
	}
	return target[:4] + "..."
}
