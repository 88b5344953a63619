// Package cluster provides the compute cluster handle used by the pipeline.
//
// A Client is acquired with Connect and must be released with Close. While
// open it executes partition tasks on a bounded worker pool. Every open
// client is registered so leaks are observable through Active.
//
// Endpoints:
//
//	local://<name>?workers=N   in-process worker pool with N workers
//
// Any other scheme fails with errors.ErrUnsupportedEndpoint.
package cluster

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/rcaeda/config"
	"github.com/xtxerr/rcaeda/internal/errors"
	"github.com/xtxerr/rcaeda/internal/logging"
	"github.com/xtxerr/rcaeda/internal/validation"
)

var log = logging.Component("cluster")

// Endpoint is a parsed cluster address.
type Endpoint struct {
	Scheme  string
	Name    string
	Workers int
}

// String returns the endpoint in URL form.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s?workers=%d", e.Scheme, e.Name, e.Workers)
}

// ParseEndpoint parses a cluster address.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: %v: %w", raw, err, errors.ErrUnsupportedEndpoint)
	}
	if u.Scheme != "local" {
		return Endpoint{}, fmt.Errorf("endpoint %q: scheme %q: %w", raw, u.Scheme, errors.ErrUnsupportedEndpoint)
	}

	ep := Endpoint{Scheme: u.Scheme, Name: u.Host, Workers: config.DefaultClusterWorkers}
	if ep.Name == "" {
		ep.Name = "local"
	} else if err := validation.ValidateName(ep.Name, validation.ClusterNameRules()); err != nil {
		return Endpoint{}, fmt.Errorf("endpoint %q: %v: %w", raw, err, errors.ErrUnsupportedEndpoint)
	}
	if w := u.Query().Get("workers"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil || n <= 0 || n > config.MaxClusterWorkers {
			return Endpoint{}, fmt.Errorf("endpoint %q: workers must be 1-%d: %w",
				raw, config.MaxClusterWorkers, errors.ErrUnsupportedEndpoint)
		}
		ep.Workers = n
	}
	return ep, nil
}

// registry tracks open clients.
var registry = struct {
	mu      sync.Mutex
	clients map[string]*Client
}{clients: make(map[string]*Client)}

// Active returns the number of clients that have not been closed.
func Active() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.clients)
}

// Stats holds per-client execution counters.
type Stats struct {
	TasksRun    int64
	TasksFailed int64
	Batches     int64
}

// Client is an open handle to the compute cluster.
type Client struct {
	id       string
	endpoint Endpoint
	opened   time.Time
	closed   atomic.Bool

	tasksRun    atomic.Int64
	tasksFailed atomic.Int64
	batches     atomic.Int64
}

// Connect opens a client for the given endpoint.
func Connect(ctx context.Context, endpoint string) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connect %s: %v: %w", endpoint, err, errors.ErrConnectionFailed)
	}
	ep, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect: %w: %w", errors.ErrConnectionFailed, err)
	}

	c := &Client{
		id:       uuid.NewString(),
		endpoint: ep,
		opened:   time.Now(),
	}

	registry.mu.Lock()
	registry.clients[c.id] = c
	registry.mu.Unlock()

	log.Info("client connected", "client_id", c.id, "endpoint", ep.String(),
		"workers", ep.Workers, "gomaxprocs", runtime.GOMAXPROCS(0))
	return c, nil
}

// ID returns the client registration ID.
func (c *Client) ID() string { return c.id }

// Endpoint returns the endpoint the client is connected to.
func (c *Client) Endpoint() Endpoint { return c.endpoint }

// Workers returns the worker pool size.
func (c *Client) Workers() int { return c.endpoint.Workers }

// Run executes fn for i in [0, n) on the worker pool. It blocks until all
// tasks finish. The first failure cancels the context passed to the
// remaining tasks and is returned.
func (c *Client) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if c.closed.Load() {
		return errors.ErrClientClosed
	}
	c.batches.Add(1)
	if n == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.endpoint.Workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() (err error) {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("task %d: %w: %v", i, errors.ErrPanic, p)
					c.tasksFailed.Add(1)
				}
			}()
			err = fn(gctx, i)
			c.tasksRun.Add(1)
			if err != nil {
				c.tasksFailed.Add(1)
			}
			return err
		})
	}
	return g.Wait()
}

// Stats returns a snapshot of the execution counters.
func (c *Client) Stats() Stats {
	return Stats{
		TasksRun:    c.tasksRun.Load(),
		TasksFailed: c.tasksFailed.Load(),
		Batches:     c.batches.Load(),
	}
}

// Close releases the client. Closing twice is a no-op.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	registry.mu.Lock()
	delete(registry.clients, c.id)
	registry.mu.Unlock()

	st := c.Stats()
	log.Info("client closed", "client_id", c.id, "tasks", st.TasksRun,
		"failed", st.TasksFailed, "open_for", time.Since(c.opened).Round(time.Millisecond))
	return nil
}
