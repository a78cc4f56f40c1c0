// Package client is the embeddable Starboard client. It holds a local copy
// of the board state, keeps it reconciled with the server through the
// notification stream, and offers the same mutations the HTTP API does,
// applied optimistically with session-scoped undo.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrClosed is returned by every method after Shutdown.
var ErrClosed = errors.New("client is closed")

// Config configures a Client.
type Config struct {
	// BaseURL is the server address, e.g. "http://localhost:3001".
	BaseURL string

	// HTTPTimeout bounds each request. Defaults to 30 seconds. The
	// notification stream is exempt; it stays open indefinitely.
	HTTPTimeout time.Duration

	// ReconnectDelay is the fixed pause between stream reconnect
	// attempts. Defaults to 3 seconds.
	ReconnectDelay time.Duration

	// MaxReconnects caps reconnect attempts. Zero retries forever.
	MaxReconnects int

	// OnUpdate, if set, is invoked for every notification applied to the
	// local state, including echoes of this client's own mutations. It
	// runs on the stream goroutine; keep it quick.
	OnUpdate func(Event)
}

// Client is the Starboard client.
type Client struct {
	config Config
	http   *http.Client

	mu      sync.RWMutex
	members map[string]Record
	closed  bool
	undoing bool
	undos   []undoEntry

	streamCancel context.CancelFunc
	streamDone   chan struct{}
}

// New creates a new Starboard client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("BaseURL is required")
	}

	// Set defaults
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 30 * time.Second
	}
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = 3 * time.Second
	}

	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.HTTPTimeout},
		members: make(map[string]Record),
	}, nil
}

// Initialize fetches the full state snapshot and starts following the
// notification stream. Call it once before using the client; a failed
// Initialize leaves the client ready to try again.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.streamDone != nil {
		c.mu.Unlock()
		return errors.New("client already initialized")
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	c.streamCancel = cancel
	c.streamDone = make(chan struct{})
	c.mu.Unlock()

	if err := c.refreshState(ctx); err != nil {
		cancel()
		c.mu.Lock()
		c.streamCancel = nil
		c.streamDone = nil
		c.mu.Unlock()
		return err
	}

	go c.followStream(streamCtx)
	return nil
}

// Shutdown stops the stream goroutine and rejects further calls.
func (c *Client) Shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, done := c.streamCancel, c.streamDone
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// Member returns the local copy of one member's record. Unknown members
// come back as the zero record, matching the server's behavior.
func (c *Client) Member(id string) Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.members[id].Clone()
}

// State returns a copy of the entire local state.
func (c *Client) State() map[string]Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Record, len(c.members))
	for id, rec := range c.members {
		out[id] = rec.Clone()
	}
	return out
}

// AdjustStars changes a member's balance by delta, floored at zero. The
// local copy updates immediately and rolls back if the server rejects.
func (c *Client) AdjustStars(ctx context.Context, id string, delta int) (StarsResult, error) {
	prev, err := c.beginMutation(id)
	if err != nil {
		return StarsResult{}, err
	}

	predicted := prev.Clone()
	predicted.Stars = max(0, predicted.Stars+delta)
	c.setMember(id, predicted)

	var resp StarsResult
	if err := c.post(ctx, "/api/stars", starsRequest{ID: id, Delta: delta}, &resp); err != nil {
		c.setMember(id, prev)
		return StarsResult{}, err
	}

	confirmed := predicted.Clone()
	confirmed.Stars = resp.Stars
	c.setMember(id, confirmed)

	c.recordUndo(fmt.Sprintf("stars %+d for %s", delta, id), func(ctx context.Context) error {
		_, err := c.AdjustStars(ctx, id, prev.Stars-resp.Stars)
		return err
	})
	return resp, nil
}

// SetIndex moves a member's task or reward carousel position.
func (c *Client) SetIndex(ctx context.Context, id string, which Which, index int) (IndexResult, error) {
	prev, err := c.beginMutation(id)
	if err != nil {
		return IndexResult{}, err
	}

	prevIndex := prev.TaskIndex
	if which == WhichReward {
		prevIndex = prev.RewardIndex
	}

	predicted := prev.Clone()
	if which == WhichReward {
		predicted.RewardIndex = index
	} else {
		predicted.TaskIndex = index
	}
	c.setMember(id, predicted)

	var resp IndexResult
	if err := c.post(ctx, "/api/index", indexRequest{ID: id, Which: which, Index: index}, &resp); err != nil {
		c.setMember(id, prev)
		return IndexResult{}, err
	}

	c.recordUndo(fmt.Sprintf("%s index for %s", which, id), func(ctx context.Context) error {
		_, err := c.SetIndex(ctx, id, which, prevIndex)
		return err
	})
	return resp, nil
}

// Redeem spends cost stars on the given reward. An empty rewardKey lets
// the server default to the member's current reward position.
func (c *Client) Redeem(ctx context.Context, id, rewardKey string, cost int) (RedeemResult, error) {
	return c.redeem(ctx, id, rewardKey, cost, "redeem")
}

// UndoRedeem reverses one redemption, refunding its cost.
func (c *Client) UndoRedeem(ctx context.Context, id, rewardKey string, cost int) (RedeemResult, error) {
	return c.redeem(ctx, id, rewardKey, cost, "undo")
}

func (c *Client) redeem(ctx context.Context, id, rewardKey string, cost int, action string) (RedeemResult, error) {
	prev, err := c.beginMutation(id)
	if err != nil {
		return RedeemResult{}, err
	}

	// Redemptions are not applied optimistically: the key may be
	// server-defaulted and the balance check belongs to the server.
	var resp RedeemResult
	req := redeemRequest{ID: id, RewardKey: rewardKey, Cost: cost, Action: action}
	if err := c.post(ctx, "/api/redeem", req, &resp); err != nil {
		return RedeemResult{}, err
	}

	confirmed := prev.Clone()
	confirmed.Stars = resp.Stars
	if resp.RedeemedCount > 0 {
		confirmed.Redemptions[resp.RewardKey] = resp.RedeemedCount
	} else {
		delete(confirmed.Redemptions, resp.RewardKey)
	}
	c.setMember(id, confirmed)

	inverse := "undo"
	if action == "undo" {
		inverse = "redeem"
	}
	c.recordUndo(fmt.Sprintf("%s %s for %s", action, resp.RewardKey, id), func(ctx context.Context) error {
		_, err := c.redeem(ctx, id, resp.RewardKey, cost, inverse)
		return err
	})
	return resp, nil
}

// CompleteUnit is the legacy single-step mutation: delta must be 1 or -1,
// and both the unit count and the balance move together within [0, 30].
func (c *Client) CompleteUnit(ctx context.Context, id string, delta int) (CompleteResult, error) {
	prev, err := c.beginMutation(id)
	if err != nil {
		return CompleteResult{}, err
	}

	var resp CompleteResult
	if err := c.post(ctx, "/api/complete", completeRequest{ID: id, Delta: delta}, &resp); err != nil {
		return CompleteResult{}, err
	}

	confirmed := prev.Clone()
	confirmed.Stars = resp.Stars
	c.setMember(id, confirmed)

	c.recordUndo(fmt.Sprintf("complete %+d for %s", delta, id), func(ctx context.Context) error {
		_, err := c.CompleteUnit(ctx, id, -delta)
		return err
	})
	return resp, nil
}

// beginMutation snapshots the member's current local record for predicting
// and rolling back.
func (c *Client) beginMutation(id string) (Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return Record{}, ErrClosed
	}
	return c.members[id].Clone(), nil
}

func (c *Client) setMember(id string, rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[id] = rec
}

// refreshState replaces the local state with a fresh server snapshot.
func (c *Client) refreshState(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/state", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching state: unexpected status %d", resp.StatusCode)
	}

	var doc struct {
		Members map[string]Record `json:"members"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}
	if doc.Members == nil {
		doc.Members = map[string]Record{}
	}

	c.mu.Lock()
	c.members = doc.Members
	c.mu.Unlock()
	return nil
}

// post sends a mutation and decodes the response, surfacing RFC 7807
// problem details as errors.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeProblem(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// APIError is a server rejection carried back to the caller.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server rejected request (%d): %s", e.Status, e.Detail)
}

func decodeProblem(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var p struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &p); err != nil || p.Detail == "" {
		return &APIError{Status: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
	}
	return &APIError{Status: resp.StatusCode, Detail: p.Detail}
}
