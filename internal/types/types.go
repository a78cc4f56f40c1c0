package types

import (
	"encoding/json"
	"fmt"
)

// Which selects the carousel a position applies to.
type Which string

const (
	WhichTask   Which = "task"
	WhichReward Which = "reward"
)

// Valid reports whether w names a known carousel.
func (w Which) Valid() bool {
	return w == WhichTask || w == WhichReward
}

// RedeemAction represents the direction of a redemption mutation.
type RedeemAction string

const (
	ActionRedeem RedeemAction = "redeem"
	ActionUndo   RedeemAction = "undo"
)

// MemberRecord holds the persisted state for one family member.
type MemberRecord struct {
	Stars       int            `json:"stars"`
	TaskIndex   int            `json:"taskIndex"`
	RewardIndex int            `json:"rewardIndex"`
	Redemptions map[string]int `json:"redemptions"`
}

// UnmarshalJSON accepts both the current record shape and the legacy shape
// where a member's value was a bare integer star count.
func (m *MemberRecord) UnmarshalJSON(data []byte) error {
	var legacy int
	if err := json.Unmarshal(data, &legacy); err == nil {
		*m = MemberRecord{Stars: legacy, Redemptions: map[string]int{}}
		return nil
	}

	type record MemberRecord
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	if r.Redemptions == nil {
		r.Redemptions = map[string]int{}
	}
	*m = MemberRecord(r)
	return nil
}

// Clone returns a deep copy of the record.
func (m MemberRecord) Clone() MemberRecord {
	out := m
	out.Redemptions = make(map[string]int, len(m.Redemptions))
	for k, v := range m.Redemptions {
		out.Redemptions[k] = v
	}
	return out
}

// StateDocument is the entire unit of persistence: member id to record.
type StateDocument struct {
	Members map[string]MemberRecord `json:"members"`
}

// NewStateDocument returns an empty document.
func NewStateDocument() *StateDocument {
	return &StateDocument{Members: map[string]MemberRecord{}}
}

// Member returns the record for id, creating a zero-valued record in the
// document if none exists.
func (d *StateDocument) Member(id string) MemberRecord {
	if d.Members == nil {
		d.Members = map[string]MemberRecord{}
	}
	rec, ok := d.Members[id]
	if !ok {
		rec = MemberRecord{Redemptions: map[string]int{}}
		d.Members[id] = rec
	}
	if rec.Redemptions == nil {
		rec.Redemptions = map[string]int{}
		d.Members[id] = rec
	}
	return rec
}

// Clone returns a deep copy of the document.
func (d *StateDocument) Clone() *StateDocument {
	out := &StateDocument{Members: make(map[string]MemberRecord, len(d.Members))}
	for id, rec := range d.Members {
		out.Members[id] = rec.Clone()
	}
	return out
}

// RewardKey returns the redemption ledger key for a reward carousel index.
func RewardKey(index int) string {
	return fmt.Sprintf("reward:%d", index)
}

// ClampIndex clamps an advisory carousel index to a list of the given
// length. Indices are stored unclamped; consumers clamp against the list
// they actually hold, since configuration can change length underneath a
// stored position.
func ClampIndex(index, length int) int {
	if length <= 0 {
		return 0
	}
	if index < 0 {
		return 0
	}
	if index >= length {
		return length - 1
	}
	return index
}

// CompleteRequest is the legacy unit-complete payload.
type CompleteRequest struct {
	ID    *string  `json:"id"`
	Delta *float64 `json:"delta"`
}

// CompleteResponse carries both the legacy count and the current balance.
type CompleteResponse struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
	Stars int    `json:"stars"`
}

// StarsRequest adjusts a member's balance by a signed delta.
type StarsRequest struct {
	ID    *string  `json:"id"`
	Delta *float64 `json:"delta"`
}

// StarsResponse reports the balance after an adjustment.
type StarsResponse struct {
	ID    string `json:"id"`
	Stars int    `json:"stars"`
}

// IndexRequest moves a member's task or reward carousel position.
type IndexRequest struct {
	ID    *string  `json:"id"`
	Which *string  `json:"which"`
	Index *float64 `json:"index"`
}

// IndexResponse echoes the accepted carousel position.
type IndexResponse struct {
	ID    string `json:"id"`
	Which Which  `json:"which"`
	Index int    `json:"index"`
}

// RedeemRequest redeems or un-redeems a reward.
type RedeemRequest struct {
	ID        *string  `json:"id"`
	RewardKey string   `json:"rewardKey,omitempty"`
	Cost      *float64 `json:"cost"`
	Action    *string  `json:"action"`
}

// RedeemResponse reports the balance and redemption count after the mutation.
type RedeemResponse struct {
	ID            string `json:"id"`
	Stars         int    `json:"stars"`
	RewardKey     string `json:"rewardKey"`
	RedeemedCount int    `json:"redeemedCount"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Members     int    `json:"members"`
	Subscribers int    `json:"subscribers"`
}
