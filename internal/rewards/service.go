package rewards

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hearthside/starboard/internal/notify"
	"github.com/hearthside/starboard/internal/store"
	"github.com/hearthside/starboard/internal/types"
)

// legacyMaxCount is the balance ceiling enforced only by the legacy
// unit-complete operation. The general adjust operation has no upper bound.
const legacyMaxCount = 30

// Publisher pushes notification events to connected observers.
type Publisher interface {
	Publish(events ...notify.Event)
}

// Service is the authoritative state machine over the state document.
//
// Every mutation runs its full load, mutate, save, publish cycle under one
// mutex, so two concurrent mutations can never interleave between the load
// and the save. This closes the lost-update window that a bare
// load-mutate-save against the store would have.
type Service struct {
	mu        sync.Mutex
	store     store.Store
	publisher Publisher
}

// NewService creates a Service over the given store, publishing accepted
// mutations to publisher.
func NewService(s store.Store, p Publisher) *Service {
	return &Service{store: s, publisher: p}
}

// Snapshot returns the current full state document.
func (s *Service) Snapshot(ctx context.Context) (*types.StateDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load(ctx)
}

// AdjustStars changes a member's balance by delta, flooring at zero. The
// balance is unbounded above.
func (s *Service) AdjustStars(ctx context.Context, id string, delta int) (types.StarsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.StarsResponse{}, fmt.Errorf("loading state: %w", err)
	}

	rec := doc.Member(id)
	rec.Stars = max(0, rec.Stars+delta)
	doc.Members[id] = rec

	if err := s.store.Save(ctx, doc); err != nil {
		return types.StarsResponse{}, fmt.Errorf("saving state: %w", err)
	}

	s.publisher.Publish(notify.StarsUpdated(id, rec.Stars))
	slog.Debug("stars adjusted", "member", id, "delta", delta, "stars", rec.Stars)
	return types.StarsResponse{ID: id, Stars: rec.Stars}, nil
}

// SetIndex overwrites a member's task or reward carousel position. The
// index is stored as given; consumers clamp against their current list.
func (s *Service) SetIndex(ctx context.Context, id string, which types.Which, index int) (types.IndexResponse, error) {
	if !which.Valid() {
		return types.IndexResponse{}, ErrUnknownCarousel
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.IndexResponse{}, fmt.Errorf("loading state: %w", err)
	}

	rec := doc.Member(id)
	switch which {
	case types.WhichTask:
		rec.TaskIndex = index
	case types.WhichReward:
		rec.RewardIndex = index
	}
	doc.Members[id] = rec

	if err := s.store.Save(ctx, doc); err != nil {
		return types.IndexResponse{}, fmt.Errorf("saving state: %w", err)
	}

	s.publisher.Publish(notify.IndexUpdated(id, which, index))
	return types.IndexResponse{ID: id, Which: which, Index: index}, nil
}

// Redeem converts cost stars into one claimed unit of the given reward key.
// Fails with ErrInsufficientStars when the member cannot afford it; state
// is untouched and nothing is published on failure.
func (s *Service) Redeem(ctx context.Context, id, rewardKey string, cost int) (types.RedeemResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.RedeemResponse{}, fmt.Errorf("loading state: %w", err)
	}

	rec := doc.Member(id)
	if rec.Stars < cost {
		return types.RedeemResponse{}, ErrInsufficientStars
	}

	rec.Stars -= cost
	rec.Redemptions[rewardKey]++
	doc.Members[id] = rec

	if err := s.store.Save(ctx, doc); err != nil {
		return types.RedeemResponse{}, fmt.Errorf("saving state: %w", err)
	}

	count := rec.Redemptions[rewardKey]
	s.publisher.Publish(notify.RedeemUpdated(id, rewardKey, count))
	slog.Info("reward redeemed", "member", id, "rewardKey", rewardKey, "cost", cost)
	return types.RedeemResponse{ID: id, Stars: rec.Stars, RewardKey: rewardKey, RedeemedCount: count}, nil
}

// UndoRedeem reverses one prior redemption of the given reward key,
// refunding its cost. Fails with ErrNothingToUndo when no redemption is
// recorded for the key. A count that reaches zero is removed from the
// ledger entirely.
func (s *Service) UndoRedeem(ctx context.Context, id, rewardKey string, cost int) (types.RedeemResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.RedeemResponse{}, fmt.Errorf("loading state: %w", err)
	}

	rec := doc.Member(id)
	if rec.Redemptions[rewardKey] <= 0 {
		return types.RedeemResponse{}, ErrNothingToUndo
	}

	rec.Stars += cost
	rec.Redemptions[rewardKey]--
	count := rec.Redemptions[rewardKey]
	if count == 0 {
		delete(rec.Redemptions, rewardKey)
	}
	doc.Members[id] = rec

	if err := s.store.Save(ctx, doc); err != nil {
		return types.RedeemResponse{}, fmt.Errorf("saving state: %w", err)
	}

	s.publisher.Publish(notify.RedeemUpdated(id, rewardKey, count))
	slog.Info("redemption undone", "member", id, "rewardKey", rewardKey, "refund", cost)
	return types.RedeemResponse{ID: id, Stars: rec.Stars, RewardKey: rewardKey, RedeemedCount: count}, nil
}

// CompleteUnit is the legacy one-unit operation: delta must be +1 or -1 and
// the balance is clamped to [0, 30]. It remains callable for old dashboards
// and emits both the legacy count-updated event and the current
// stars-updated event.
func (s *Service) CompleteUnit(ctx context.Context, id string, delta int) (types.CompleteResponse, error) {
	if delta != 1 && delta != -1 {
		return types.CompleteResponse{}, ErrInvalidUnitDelta
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.CompleteResponse{}, fmt.Errorf("loading state: %w", err)
	}

	rec := doc.Member(id)
	rec.Stars = min(legacyMaxCount, max(0, rec.Stars+delta))
	doc.Members[id] = rec

	if err := s.store.Save(ctx, doc); err != nil {
		return types.CompleteResponse{}, fmt.Errorf("saving state: %w", err)
	}

	s.publisher.Publish(
		notify.CountUpdated(id, rec.Stars),
		notify.StarsUpdated(id, rec.Stars),
	)
	return types.CompleteResponse{ID: id, Count: rec.Stars, Stars: rec.Stars}, nil
}
