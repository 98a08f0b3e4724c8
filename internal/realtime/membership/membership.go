// Package membership keeps a hub connection enrolled in its logical
// broadcast groups (per booking, per tenant) and replays those enrollments
// after every reconnect, because the server forgets group membership the
// moment a socket drops.
package membership

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
)

// Conn is the slice of the hub connection the controller needs.
type Conn interface {
	Start(ctx context.Context) error
	Connected() bool
	Invoke(ctx context.Context, target string, args ...any) error
	OnReconnected(fn func())
}

// Controller manages memberships for one hub connection. Join/leave
// invocation names differ per hub (JoinBookingGroup, JoinRestaurantGroup,
// JoinRestaurantLocationGroup...), so they are injected.
type Controller struct {
	conn        Conn
	joinTarget  string
	leaveTarget string

	mu       sync.Mutex
	current  map[any]struct{}
	inflight map[any]chan error
}

func New(conn Conn, joinTarget, leaveTarget string) *Controller {
	c := &Controller{
		conn:        conn,
		joinTarget:  joinTarget,
		leaveTarget: leaveTarget,
		current:     make(map[any]struct{}),
		inflight:    make(map[any]chan error),
	}
	conn.OnReconnected(c.replay)
	return c
}

// Join ensures the connection is started, then enrolls in the group and
// records the key as current membership. Overlapping calls for the same key
// share one invocation; the server is idempotent on join, but a burst of
// duplicate registrations is still a storm we must not produce. Joining a
// second key does not leave the first — callers leave explicitly.
func (c *Controller) Join(ctx context.Context, key any) error {
	c.mu.Lock()
	if _, ok := c.current[key]; ok {
		c.mu.Unlock()
		return nil
	}
	if wait, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case err := <-wait:
			// Re-deliver for any further waiter.
			wait <- err
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan error, 1)
	c.inflight[key] = done
	c.mu.Unlock()

	err := c.join(ctx, key)

	c.mu.Lock()
	delete(c.inflight, key)
	if err == nil {
		c.current[key] = struct{}{}
	}
	c.mu.Unlock()

	done <- err
	return err
}

func (c *Controller) join(ctx context.Context, key any) error {
	if !c.conn.Connected() {
		if err := c.conn.Start(ctx); err != nil {
			return errors.Wrap(err, "start connection")
		}
	}
	if err := c.conn.Invoke(ctx, c.joinTarget, key); err != nil {
		return err
	}
	return nil
}

// Leave is a no-op when disconnected. Stored membership is cleared only on a
// successful leave; a rejected invocation leaves it in place so a reconnect
// still replays it.
func (c *Controller) Leave(ctx context.Context, key any) error {
	if !c.conn.Connected() {
		return nil
	}
	if err := c.conn.Invoke(ctx, c.leaveTarget, key); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.current, key)
	c.mu.Unlock()
	return nil
}

// Current returns the keys the controller believes are joined.
func (c *Controller) Current() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, 0, len(c.current))
	for k := range c.current {
		out = append(out, k)
	}
	return out
}

// replay re-issues joins for every stored membership after a reconnect.
func (c *Controller) replay() {
	for _, key := range c.Current() {
		if err := c.conn.Invoke(context.Background(), c.joinTarget, key); err != nil {
			slog.Error("rejoin group after reconnect", "target", c.joinTarget, "key", key, "error", err.Error())
		}
	}
}
