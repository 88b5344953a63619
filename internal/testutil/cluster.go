package testutil

import (
	"context"
	"sync/atomic"

	"github.com/xtxerr/rcaeda/internal/cluster"
)

// Connector opens real local cluster clients and counts connects and
// closes. When Err is set every connect fails with it.
type Connector struct {
	Err error

	connects atomic.Int32
	closes   atomic.Int32
}

// TrackedClient is a cluster client whose Close is counted.
type TrackedClient struct {
	*cluster.Client
	owner *Connector
	once  atomic.Bool
}

// Close implements the cluster handle contract.
func (c *TrackedClient) Close() error {
	if c.once.CompareAndSwap(false, true) {
		c.owner.closes.Add(1)
	}
	return c.Client.Close()
}

// Connect opens a client for endpoint.
func (c *Connector) Connect(ctx context.Context, endpoint string) (*TrackedClient, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	cl, err := cluster.Connect(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	c.connects.Add(1)
	return &TrackedClient{Client: cl, owner: c}, nil
}

// Connects returns the number of successful connects.
func (c *Connector) Connects() int { return int(c.connects.Load()) }

// Closes returns the number of clients closed.
func (c *Connector) Closes() int { return int(c.closes.Load()) }

// Open returns connects minus closes.
func (c *Connector) Open() int { return c.Connects() - c.Closes() }
