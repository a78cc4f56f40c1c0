package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// followStream keeps one notification stream open for the life of the
// client, reconnecting after a fixed delay whenever it drops. Events pushed
// while disconnected are gone for good, so a fresh snapshot must land
// before the stream reopens; a failed refresh counts as a failed reconnect
// attempt and is retried on the same schedule.
func (c *Client) followStream(ctx context.Context) {
	defer close(c.streamDone)

	attempts := 0
	for {
		err := c.readStream(ctx)
		if ctx.Err() != nil {
			return
		}

		for {
			attempts++
			if c.config.MaxReconnects > 0 && attempts > c.config.MaxReconnects {
				slog.Warn("notification stream gave up reconnecting",
					"attempts", attempts-1, "error", err)
				return
			}
			slog.Debug("notification stream dropped, reconnecting",
				"attempt", attempts, "delay", c.config.ReconnectDelay, "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(c.config.ReconnectDelay):
			}

			if err = c.refreshState(ctx); err == nil {
				break
			}
			slog.Debug("state refresh before reconnect failed", "error", err)
		}
		attempts = 0
	}
}

// readStream opens /api/events and applies events until the connection
// drops or ctx is cancelled.
func (c *Client) readStream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The streaming request must not inherit the mutation timeout.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue // event: lines, keepalive comments, blank separators
		}

		var ev Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			slog.Debug("skipping unparseable event", "error", err)
			continue
		}

		c.apply(ev)
		if c.config.OnUpdate != nil {
			c.config.OnUpdate(ev)
		}
	}
	return scanner.Err()
}

// apply folds one notification into the local state. Events echo this
// client's own mutations too; applying them again is harmless because
// every payload carries absolute values, not deltas.
func (c *Client) apply(ev Event) {
	if ev.Kind == EventConnected || ev.MemberID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec := c.members[ev.MemberID].Clone()

	switch ev.Kind {
	case EventCountUpdated:
		// Legacy event: count mirrors the balance.
		if ev.Stars == nil && ev.Count != nil {
			rec.Stars = *ev.Count
		}
	case EventStarsUpdated:
		if ev.Stars != nil {
			rec.Stars = *ev.Stars
		}
	case EventIndexUpdated:
		if ev.Index != nil {
			if ev.Which == WhichReward {
				rec.RewardIndex = *ev.Index
			} else {
				rec.TaskIndex = *ev.Index
			}
		}
	case EventRedeemUpdated:
		if ev.RewardKey != "" && ev.Count != nil {
			if *ev.Count > 0 {
				rec.Redemptions[ev.RewardKey] = *ev.Count
			} else {
				delete(rec.Redemptions, ev.RewardKey)
			}
		}
	default:
		return
	}

	c.members[ev.MemberID] = rec
}
