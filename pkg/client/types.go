package client

// Which selects the carousel a position applies to.
type Which string

const (
	WhichTask   Which = "task"
	WhichReward Which = "reward"
)

// Record is one member's view of the board state.
type Record struct {
	Stars       int            `json:"stars"`
	TaskIndex   int            `json:"taskIndex"`
	RewardIndex int            `json:"rewardIndex"`
	Redemptions map[string]int `json:"redemptions"`
}

// Clone returns a deep copy of the record. The copy always carries a
// non-nil redemption map.
func (r Record) Clone() Record {
	out := r
	out.Redemptions = make(map[string]int, len(r.Redemptions))
	for k, v := range r.Redemptions {
		out.Redemptions[k] = v
	}
	return out
}

// EventKind identifies one kind of state-change notification.
type EventKind string

const (
	EventConnected     EventKind = "connected"
	EventCountUpdated  EventKind = "count-updated"
	EventStarsUpdated  EventKind = "stars-updated"
	EventIndexUpdated  EventKind = "index-updated"
	EventRedeemUpdated EventKind = "redeem-updated"
)

// Event is one notification as it arrives off the stream. Kind selects
// which payload fields are set; absent numeric fields stay nil so a zero
// value is distinguishable from a missing one.
type Event struct {
	ID        string    `json:"eventId"`
	Kind      EventKind `json:"kind"`
	MemberID  string    `json:"id"`
	Count     *int      `json:"count"`
	Stars     *int      `json:"stars"`
	Which     Which     `json:"which"`
	Index     *int      `json:"index"`
	RewardKey string    `json:"rewardKey"`
}

// StarsResult reports the balance after an adjustment.
type StarsResult struct {
	ID    string `json:"id"`
	Stars int    `json:"stars"`
}

// IndexResult echoes the accepted carousel position.
type IndexResult struct {
	ID    string `json:"id"`
	Which Which  `json:"which"`
	Index int    `json:"index"`
}

// RedeemResult reports the balance and redemption count after a redeem or
// undo.
type RedeemResult struct {
	ID            string `json:"id"`
	Stars         int    `json:"stars"`
	RewardKey     string `json:"rewardKey"`
	RedeemedCount int    `json:"redeemedCount"`
}

// CompleteResult carries both the legacy count and the current balance.
type CompleteResult struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
	Stars int    `json:"stars"`
}

type starsRequest struct {
	ID    string `json:"id"`
	Delta int    `json:"delta"`
}

type indexRequest struct {
	ID    string `json:"id"`
	Which Which  `json:"which"`
	Index int    `json:"index"`
}

type redeemRequest struct {
	ID        string `json:"id"`
	RewardKey string `json:"rewardKey,omitempty"`
	Cost      int    `json:"cost"`
	Action    string `json:"action"`
}

type completeRequest struct {
	ID    string `json:"id"`
	Delta int    `json:"delta"`
}
