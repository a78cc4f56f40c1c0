package notify

import (
	"github.com/oklog/ulid/v2"

	"github.com/hearthside/starboard/internal/types"
)

// EventKind identifies one kind of state-change notification. The set is
// stable: new kinds may be added, existing kinds never change meaning, and
// count-updated is retained as the legacy alias for balance changes.
type EventKind string

const (
	KindConnected     EventKind = "connected"
	KindCountUpdated  EventKind = "count-updated"
	KindStarsUpdated  EventKind = "stars-updated"
	KindIndexUpdated  EventKind = "index-updated"
	KindRedeemUpdated EventKind = "redeem-updated"
)

// Event describes one accepted state change, pushed to every connected
// observer. Kind selects which payload fields are populated; the ULID id
// gives observers a total order and a deduplication handle.
type Event struct {
	ID       string      `json:"eventId"`
	Kind     EventKind   `json:"kind"`
	MemberID string      `json:"id,omitempty"`
	Count    *int        `json:"count,omitempty"`
	Stars    *int        `json:"stars,omitempty"`
	Which    types.Which `json:"which,omitempty"`
	Index    *int        `json:"index,omitempty"`
	Key      string      `json:"rewardKey,omitempty"`
}

func newEvent(kind EventKind) Event {
	return Event{ID: ulid.Make().String(), Kind: kind}
}

// Connected is pushed to a subscriber immediately after it joins.
func Connected() Event {
	return newEvent(KindConnected)
}

// CountUpdated is the legacy balance-change event.
func CountUpdated(memberID string, count int) Event {
	e := newEvent(KindCountUpdated)
	e.MemberID = memberID
	e.Count = &count
	return e
}

// StarsUpdated reports a member's new balance.
func StarsUpdated(memberID string, stars int) Event {
	e := newEvent(KindStarsUpdated)
	e.MemberID = memberID
	e.Stars = &stars
	return e
}

// IndexUpdated reports a member's new carousel position.
func IndexUpdated(memberID string, which types.Which, index int) Event {
	e := newEvent(KindIndexUpdated)
	e.MemberID = memberID
	e.Which = which
	e.Index = &index
	return e
}

// RedeemUpdated reports a member's new redemption count for one reward key.
func RedeemUpdated(memberID, rewardKey string, count int) Event {
	e := newEvent(KindRedeemUpdated)
	e.MemberID = memberID
	e.Key = rewardKey
	e.Count = &count
	return e
}
