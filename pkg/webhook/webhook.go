// Package webhook provides HTTP webhook notification support for remedy events.
//
// Notifications are an audit side-channel: delivery is best-effort and never
// blocks or fails the mutation engine.
package webhook

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
	"sync"
	"time"
)

// EventType represents the type of remedy event that can trigger webhooks.
type EventType string

const (
	EventSessionStart     EventType = "session.start"
	EventSessionComplete  EventType = "session.complete"
	EventRecipeCommitted  EventType = "recipe.committed"
	EventRecipeRolledBack EventType = "recipe.rolled_back"
	EventRecipeFailed     EventType = "recipe.failed"
	EventRollbackComplete EventType = "rollback.complete"
	EventCleanupComplete  EventType = "cleanup.complete"
)

// Event represents a remedy event payload sent to webhooks.
type Event struct {
	Event      EventType      `json:"event"`
	Timestamp  string         `json:"timestamp"`
	RepoID     string         `json:"repo_id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	RecipeID   string         `json:"recipe_id,omitempty"`
	SnapshotID string         `json:"snapshot_id,omitempty"`
	Outcome    string         `json:"outcome,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// HookConfig represents a single webhook endpoint.
type HookConfig struct {
	URL    string      `json:"url"`
	Secret string      `json:"secret,omitempty"`
	Events []EventType `json:"events"`
}

// Config represents the webhook client configuration.
type Config struct {
	Hooks          []HookConfig  `json:"hooks"`
	Enabled        bool          `json:"enabled"`
	MaxRetries     int           `json:"max_retries"`
	RetryDelay     time.Duration `json:"retry_delay"`
	AsyncQueueSize int           `json:"async_queue_size"`
}

// DefaultConfig returns the default webhook configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		MaxRetries:     2,
		RetryDelay:     2 * time.Second,
		AsyncQueueSize: 64,
	}
}

// Client handles sending webhook notifications.
type Client struct {
	config *Config
	http   *http.Client
	queue  chan *job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

type job struct {
	event Event
	hook  HookConfig
}

// NewClient creates a new webhook client. A background worker drains the
// async queue until Close is called.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config: cfg,
		http:   &http.Client{Timeout: 15 * time.Second},
		queue:  make(chan *job, cfg.AsyncQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Enabled && len(cfg.Hooks) > 0 {
		c.start()
	}
	return c
}

func (c *Client) start() {
	c.once.Do(func() {
		c.wg.Add(1)
		go c.worker()
	})
}

func (c *Client) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			for len(c.queue) > 0 {
				c.deliver(<-c.queue)
			}
			return
		case j := <-c.queue:
			c.deliver(j)
		}
	}
}

// Send queues an event for every matching hook. When async is false the
// event is delivered before returning.
func (c *Client) Send(event Event, async bool) error {
	if !c.config.Enabled {
		return nil
	}

	var hooks []HookConfig
	for _, hook := range c.config.Hooks {
		if c.matchesEvent(hook, event.Event) {
			hooks = append(hooks, hook)
		}
	}
	if len(hooks) == 0 {
		return nil
	}

	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	if async {
		for _, hook := range hooks {
			select {
			case c.queue <- &job{event: event, hook: hook}:
			default:
				// Queue full; drop rather than block the engine.
			}
		}
		return nil
	}

	var lastErr error
	for _, hook := range hooks {
		if err := c.deliverWithRetry(&job{event: event, hook: hook}); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (c *Client) deliver(j *job) {
	// Errors are swallowed on the async path; webhooks are best-effort.
	_ = c.deliverWithRetry(j)
}

func (c *Client) deliverWithRetry(j *job) error {
	payload, err := json.Marshal(j.event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-c.ctx.Done():
				return c.ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		req, err := c.newRequest(j.hook, payload)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return lastErr
}

func (c *Client) newRequest(hook HookConfig, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Remedy-Webhook/1.0")
	if hook.Secret != "" {
		req.Header.Set("X-Remedy-Signature", Sign(payload, hook.Secret))
	}
	return req, nil
}

// Sign creates the HMAC-SHA256 signature of a payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) matchesEvent(hook HookConfig, event EventType) bool {
	if len(hook.Events) == 0 {
		return true
	}
	for _, e := range hook.Events {
		if e == event || e == "*" {
			return true
		}
	}
	return false
}

// Close drains the queue and shuts down the background worker.
func (c *Client) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}
