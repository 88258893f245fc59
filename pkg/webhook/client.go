// Package webhook posts scenario notifications to callback URLs.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kacperjurak/hyqcore/pkg/config"
	"github.com/kacperjurak/hyqcore/pkg/logging"
	"github.com/kacperjurak/hyqcore/pkg/metrics"
	"github.com/kacperjurak/hyqcore/pkg/models"
)

// Delivery results reported to metrics.
const (
	ResultSent        = "sent"
	ResultFailed      = "failed"
	ResultBreakerOpen = "breaker_open"
	ResultDropped     = "dropped"
)

// ErrStatus is wrapped when the receiver answers with a 4xx or 5xx code.
var ErrStatus = errors.New("webhook: unexpected status")

// Client sends webhooks with pooled connections, retries and a circuit
// breaker shared by all callback URLs.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[struct{}]
	maxRetries int
	backoff    time.Duration
	bufferPool sync.Pool
}

// NewClient creates a client from the webhook settings.
func NewClient(cfg config.WebhookConfig) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		DisableCompression:    true,
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	log := logging.With().Str("component", "webhook").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		maxRetries: cfg.MaxRetries,
		backoff:    250 * time.Millisecond,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 1024))
			},
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return c
}

// State reports the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Send posts the payload to item.URL. Failed attempts are retried with
// exponential backoff until the retries run out or the breaker opens.
func (c *Client) Send(ctx context.Context, item models.WebhookItem) error {
	payload := item.Payload
	payload.MaxDrawdown = sanitize(payload.MaxDrawdown)

	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	body := buf.Bytes()

	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				metrics.RecordWebhook(ResultFailed)
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		_, err = c.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, c.post(ctx, item.URL, body)
		})
		if err == nil {
			metrics.RecordWebhook(ResultSent)
			logging.Debug().Str("run_id", payload.RunID).Str("url", item.URL).Int("attempt", attempt+1).Msg("webhook sent")
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordWebhook(ResultBreakerOpen)
			return fmt.Errorf("webhook to %s skipped: %w", item.URL, err)
		}
		logging.Warn().Err(err).Str("run_id", payload.RunID).Int("attempt", attempt+1).Msg("webhook attempt failed")
	}
	metrics.RecordWebhook(ResultFailed)
	return fmt.Errorf("webhook to %s failed after %d attempts: %w", item.URL, c.maxRetries+1, err)
}

func (c *Client) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w %d", ErrStatus, resp.StatusCode)
	}
	return nil
}

// sanitize replaces values JSON cannot carry.
func sanitize(values []float64) []float64 {
	var out []float64
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if out == nil {
				out = append([]float64(nil), values...)
			}
			out[i] = 0
		}
	}
	if out == nil {
		return values
	}
	return out
}
