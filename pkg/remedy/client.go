package remedy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/remedy-project/remedy/internal/attest"
	"github.com/remedy-project/remedy/internal/compression"
	"github.com/remedy-project/remedy/internal/gc"
	"github.com/remedy-project/remedy/internal/repo"
	"github.com/remedy-project/remedy/internal/restore"
	"github.com/remedy-project/remedy/internal/session"
	"github.com/remedy-project/remedy/internal/snapshot"
	"github.com/remedy-project/remedy/internal/verify"
	"github.com/remedy-project/remedy/pkg/config"
	"github.com/remedy-project/remedy/pkg/logging"
	"github.com/remedy-project/remedy/pkg/model"
	"github.com/remedy-project/remedy/pkg/webhook"
)

// Client provides high-level remedy operations on one repository.
type Client struct {
	repo     *repo.Repo
	cfg      *config.Config
	store    *snapshot.Store
	verifier *verify.Verifier
	hooks    *webhook.Client
	logger   *logging.Logger
}

// InitOptions configures repository initialization.
type InitOptions struct {
	// Budget overrides the default risk budget in the generated config.
	Budget *model.RiskBudget
}

// SessionOptions configures one mutation session.
type SessionOptions struct {
	Items []session.Item
	// Budget overrides the configured budget for this session only.
	Budget *model.RiskBudget
	// Constraints apply to every recipe; the configured protected paths are
	// always appended.
	Constraints model.ExecutionConstraints
	// Tags are attached to the session's snapshots, pinning them against
	// retention cleanup.
	Tags []string
}

// CleanupOptions configures snapshot retention cleanup.
type CleanupOptions struct {
	// RetentionDays overrides the configured window when > 0.
	RetentionDays int
	DryRun        bool
}

// Init initializes a new remedy repository at path.
func Init(path string, opts InitOptions) (*Client, error) {
	r, err := repo.Init(path)
	if err != nil {
		return nil, fmt.Errorf("remedy init: %w", err)
	}

	cfg := config.Default()
	if opts.Budget != nil {
		cfg.Budget = *opts.Budget
	}
	if err := config.Save(r.StateDir(), cfg); err != nil {
		return nil, fmt.Errorf("remedy init: %w", err)
	}

	return newClient(r, cfg)
}

// Open opens an existing repository at or above path.
func Open(path string) (*Client, error) {
	r, err := repo.Discover(path)
	if err != nil {
		return nil, fmt.Errorf("remedy open: %w", err)
	}
	cfg, err := config.Load(r.StateDir())
	if err != nil {
		return nil, fmt.Errorf("remedy open: %w", err)
	}
	return newClient(r, cfg)
}

// OpenOrInit opens a repository, initializing one when absent.
func OpenOrInit(path string, opts InitOptions) (*Client, error) {
	stateDir := filepath.Join(path, repo.StateDirName)
	if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
		return Open(path)
	}
	return Init(path, opts)
}

func newClient(r *repo.Repo, cfg *config.Config) (*Client, error) {
	logger := logging.Global()
	logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))

	comp, err := compression.FromString(cfg.Compression)
	if err != nil {
		return nil, err
	}

	var hooks *webhook.Client
	if len(cfg.Webhooks) > 0 {
		hookCfg := webhook.DefaultConfig()
		for _, wc := range cfg.Webhooks {
			hookCfg.Hooks = append(hookCfg.Hooks, webhook.HookConfig{
				URL:    wc.URL,
				Secret: wc.Secret,
			})
		}
		hooks = webhook.NewClient(hookCfg)
	}

	return &Client{
		repo:     r,
		cfg:      cfg,
		store:    snapshot.NewStore(r, comp, logger),
		verifier: verify.NewVerifier(nil, logger),
		hooks:    hooks,
		logger:   logger,
	}, nil
}

// RegisterDetector makes a detector available to session verification.
func (c *Client) RegisterDetector(d model.Detector) {
	c.verifier.Register(d)
}

// RunSession executes a mutation session. Budget violations and per-recipe
// failures come back in the result; an error means the session never ran.
func (c *Client) RunSession(ctx context.Context, opts SessionOptions) (*model.SessionResult, error) {
	constraints := opts.Constraints
	constraints.ProtectedPaths = append(constraints.ProtectedPaths, c.cfg.ProtectedPaths...)

	o := session.NewOrchestrator(c.repo, session.Options{
		Budget:   c.cfg.Budget,
		Store:    c.store,
		Verifier: c.verifier,
		Hooks:    c.hooks,
		Logger:   c.logger,
	})
	return o.Run(ctx, session.Request{
		Items:       opts.Items,
		Budget:      opts.Budget,
		Constraints: constraints,
		Tags:        opts.Tags,
	})
}

// Rollback restores files from a snapshot selected by opts.
func (c *Client) Rollback(_ context.Context, opts model.RollbackOptions) (*model.RollbackResult, error) {
	restorer := restore.NewRestorer(c.repo.Root, c.store, c.logger)
	result, err := restorer.Rollback(opts)
	if err != nil {
		return nil, err
	}

	if c.hooks != nil && !opts.DryRun {
		c.emit(webhook.Event{
			Event:      webhook.EventRollbackComplete,
			SnapshotID: string(result.SnapshotID),
			Metadata: map[string]any{
				"files_restored": result.FilesRestored,
				"errors":         len(result.Errors),
			},
		})
	}
	return result, nil
}

// Snapshots lists snapshots, optionally filtered.
func (c *Client) Snapshots(_ context.Context, filter snapshot.FilterOptions) ([]model.IndexEntry, error) {
	return c.store.Find(filter)
}

// Snapshot loads one snapshot's full descriptor.
func (c *Client) Snapshot(_ context.Context, id model.SnapshotID) (*model.Descriptor, error) {
	return c.store.LoadDescriptor(id)
}

// Stats reports store-wide snapshot statistics.
func (c *Client) Stats(_ context.Context) (model.StoreStats, error) {
	return c.store.Stats()
}

// Cleanup prunes snapshots past the retention window. Tagged snapshots are
// never removed.
func (c *Client) Cleanup(_ context.Context, opts CleanupOptions) (*gc.Result, error) {
	days := c.cfg.Retention.Days
	if opts.RetentionDays > 0 {
		days = opts.RetentionDays
	}
	cleaner := gc.NewCleaner(c.store, days, c.logger)

	if opts.DryRun {
		return cleaner.Plan(time.Now())
	}
	result, err := cleaner.Cleanup(time.Now())
	if err != nil {
		return nil, err
	}

	if c.hooks != nil {
		c.emit(webhook.Event{
			Event:    webhook.EventCleanupComplete,
			Metadata: map[string]any{"deleted": result.Deleted},
		})
	}
	return result, nil
}

// VerifyAttestations walks the attestation log's hash chain and returns the
// number of verified entries.
func (c *Client) VerifyAttestations(_ context.Context) (int, error) {
	return attest.NewAppender(c.repo.AttestLogPath()).Verify()
}

// Attestations returns the full attestation log in order.
func (c *Client) Attestations(_ context.Context) ([]model.AttestationEntry, error) {
	return attest.NewAppender(c.repo.AttestLogPath()).ReadAll()
}

// RepoRoot returns the absolute repository root.
func (c *Client) RepoRoot() string {
	return c.repo.Root
}

// RepoID returns the unique repository identifier.
func (c *Client) RepoID() string {
	return c.repo.RepoID
}

// Config returns the loaded configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Close flushes the webhook queue. Safe to call on a client without hooks.
func (c *Client) Close() error {
	if c.hooks == nil {
		return nil
	}
	return c.hooks.Close()
}

func (c *Client) emit(event webhook.Event) {
	event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	event.RepoID = c.repo.RepoID
	if err := c.hooks.Send(event, true); err != nil {
		c.logger.Warn("webhook send failed", map[string]any{
			"event": string(event.Event),
			"error": err.Error(),
		})
	}
}
