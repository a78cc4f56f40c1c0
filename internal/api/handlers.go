package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hearthside/starboard/internal/family"
	"github.com/hearthside/starboard/internal/notify"
	"github.com/hearthside/starboard/internal/types"
	"github.com/hearthside/starboard/internal/validation"
)

// Service is the mutation surface the handlers drive.
type Service interface {
	Snapshot(ctx context.Context) (*types.StateDocument, error)
	AdjustStars(ctx context.Context, id string, delta int) (types.StarsResponse, error)
	SetIndex(ctx context.Context, id string, which types.Which, index int) (types.IndexResponse, error)
	Redeem(ctx context.Context, id, rewardKey string, cost int) (types.RedeemResponse, error)
	UndoRedeem(ctx context.Context, id, rewardKey string, cost int) (types.RedeemResponse, error)
	CompleteUnit(ctx context.Context, id string, delta int) (types.CompleteResponse, error)
}

// Subscribers is the notification channel registry the stream handler uses.
type Subscribers interface {
	Subscribe() *notify.Subscriber
	Unsubscribe(sub *notify.Subscriber)
	Count() int
}

// Handler implements the API handlers
type Handler struct {
	service     Service
	subscribers Subscribers
	family      *family.Family
	version     string
	keepAlive   time.Duration
}

// NewHandler creates a new Handler.
func NewHandler(s Service, subs Subscribers, fam *family.Family, version string, keepAlive time.Duration) *Handler {
	return &Handler{
		service:     s,
		subscribers: subs,
		family:      fam,
		version:     version,
		keepAlive:   keepAlive,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Snapshot(r.Context())
	if err != nil {
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	resp := types.HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		Members:     len(doc.Members),
		Subscribers: h.subscribers.Count(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// State handles GET /api/state: the full document snapshot.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Snapshot(r.Context())
	if err != nil {
		MapServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// FamilyConfig handles GET /api/config: the configured members with their
// ordered task and reward lists.
func (h *Handler) FamilyConfig(w http.ResponseWriter, r *http.Request) {
	fam := h.family
	if fam == nil {
		fam = &family.Family{Members: []family.Member{}}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fam)
}

// Complete handles POST /api/complete, the legacy unit-complete operation.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req types.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var errs validation.Collector
	errs.Add(validation.RequireMemberID(req.ID))
	errs.Add(validation.ValidateUnitDelta(req.Delta))
	if errs.HasErrors() {
		WriteValidationProblem(w, r, "Expected { id: string, delta: 1 | -1 }", errs.Errors())
		return
	}

	resp, err := h.service.CompleteUnit(r.Context(), *req.ID, int(*req.Delta))
	if err != nil {
		MapServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Stars handles POST /api/stars: adjust a member's balance by a signed
// delta, floored at zero.
func (h *Handler) Stars(w http.ResponseWriter, r *http.Request) {
	var req types.StarsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var errs validation.Collector
	errs.Add(validation.RequireMemberID(req.ID))
	errs.Add(validation.ValidateDelta(req.Delta))
	if errs.HasErrors() {
		WriteValidationProblem(w, r, "Expected { id: string, delta: number }", errs.Errors())
		return
	}

	resp, err := h.service.AdjustStars(r.Context(), *req.ID, int(*req.Delta))
	if err != nil {
		MapServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Index handles POST /api/index: move a member's task or reward carousel
// position.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	var req types.IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var errs validation.Collector
	errs.Add(validation.RequireMemberID(req.ID))
	errs.Add(validation.ValidateWhich(req.Which))
	errs.Add(validation.ValidateIndex(req.Index))
	if errs.HasErrors() {
		WriteValidationProblem(w, r, `Expected { id: string, which: "task" | "reward", index: integer >= 0 }`, errs.Errors())
		return
	}

	resp, err := h.service.SetIndex(r.Context(), *req.ID, types.Which(*req.Which), int(*req.Index))
	if err != nil {
		MapServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Redeem handles POST /api/redeem: redeem a reward or undo a prior
// redemption. When rewardKey is omitted it defaults to the member's
// current reward carousel position.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req types.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var errs validation.Collector
	errs.Add(validation.RequireMemberID(req.ID))
	errs.Add(validation.ValidateCost(req.Cost))
	errs.Add(validation.ValidateAction(req.Action))
	errs.Add(validation.ValidateRewardKey(req.RewardKey))
	if errs.HasErrors() {
		WriteValidationProblem(w, r, `Expected { id: string, rewardKey?: string, cost: number >= 0, action: "redeem" | "undo" }`, errs.Errors())
		return
	}

	rewardKey := req.RewardKey
	if rewardKey == "" {
		doc, err := h.service.Snapshot(r.Context())
		if err != nil {
			MapServiceError(w, r, err)
			return
		}
		rewardKey = types.RewardKey(doc.Members[*req.ID].RewardIndex)
	}

	var (
		resp types.RedeemResponse
		err  error
	)
	switch types.RedeemAction(*req.Action) {
	case types.ActionRedeem:
		resp, err = h.service.Redeem(r.Context(), *req.ID, rewardKey, int(*req.Cost))
	case types.ActionUndo:
		resp, err = h.service.UndoRedeem(r.Context(), *req.ID, rewardKey, int(*req.Cost))
	}
	if err != nil {
		MapServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
