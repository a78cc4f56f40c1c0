package client

import (
	"context"
	"errors"
)

// ErrNothingToUndo is returned by Undo when the session stack is empty.
var ErrNothingToUndo = errors.New("nothing to undo")

// undoEntry is the recorded inverse of one successful mutation.
type undoEntry struct {
	label string
	apply func(ctx context.Context) error
}

// recordUndo pushes the inverse of a mutation that just succeeded. While
// an undo is replaying, its own mutations must not be re-recorded or the
// stack would never shrink.
func (c *Client) recordUndo(label string, apply func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.undoing {
		return
	}
	c.undos = append(c.undos, undoEntry{label: label, apply: apply})
}

// Undo reverses the most recent mutation this client performed. The entry
// is consumed even if the replay fails; retrying a half-applied inverse
// against moved state does more harm than dropping it.
func (c *Client) Undo(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if len(c.undos) == 0 {
		c.mu.Unlock()
		return "", ErrNothingToUndo
	}
	entry := c.undos[len(c.undos)-1]
	c.undos = c.undos[:len(c.undos)-1]
	c.undoing = true
	c.mu.Unlock()

	err := entry.apply(ctx)

	c.mu.Lock()
	c.undoing = false
	c.mu.Unlock()

	return entry.label, err
}

// UndoDepth reports how many mutations are available to undo.
func (c *Client) UndoDepth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.undos)
}
