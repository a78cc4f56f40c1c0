package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hearthside/starboard/internal/family"
	"github.com/hearthside/starboard/internal/notify"
	"github.com/hearthside/starboard/internal/rewards"
	"github.com/hearthside/starboard/internal/types"
)

// --- Mock Implementations for Testing ---

// mockService implements the Service interface for testing
type mockService struct {
	snapshot    *types.StateDocument
	snapshotErr error

	starsResp    types.StarsResponse
	starsErr     error
	starsCalls   int
	lastID       string
	lastDelta    int
	indexResp    types.IndexResponse
	indexErr     error
	lastWhich    types.Which
	lastIndex    int
	redeemResp   types.RedeemResponse
	redeemErr    error
	undoResp     types.RedeemResponse
	undoErr      error
	lastKey      string
	lastCost     int
	completeResp types.CompleteResponse
	completeErr  error
}

func (m *mockService) Snapshot(ctx context.Context) (*types.StateDocument, error) {
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	if m.snapshot == nil {
		return types.NewStateDocument(), nil
	}
	return m.snapshot, nil
}

func (m *mockService) AdjustStars(ctx context.Context, id string, delta int) (types.StarsResponse, error) {
	m.starsCalls++
	m.lastID, m.lastDelta = id, delta
	return m.starsResp, m.starsErr
}

func (m *mockService) SetIndex(ctx context.Context, id string, which types.Which, index int) (types.IndexResponse, error) {
	m.lastID, m.lastWhich, m.lastIndex = id, which, index
	return m.indexResp, m.indexErr
}

func (m *mockService) Redeem(ctx context.Context, id, rewardKey string, cost int) (types.RedeemResponse, error) {
	m.lastID, m.lastKey, m.lastCost = id, rewardKey, cost
	return m.redeemResp, m.redeemErr
}

func (m *mockService) UndoRedeem(ctx context.Context, id, rewardKey string, cost int) (types.RedeemResponse, error) {
	m.lastID, m.lastKey, m.lastCost = id, rewardKey, cost
	return m.undoResp, m.undoErr
}

func (m *mockService) CompleteUnit(ctx context.Context, id string, delta int) (types.CompleteResponse, error) {
	m.lastID, m.lastDelta = id, delta
	return m.completeResp, m.completeErr
}

func newTestHandler(svc Service) *Handler {
	return NewHandler(svc, notify.NewBroadcaster(4), nil, "test", time.Second)
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// --- State Endpoint Tests ---

func TestState_ReturnsSnapshot(t *testing.T) {
	doc := types.NewStateDocument()
	doc.Members["zoe"] = types.MemberRecord{Stars: 5, Redemptions: map[string]int{}}
	handler := newTestHandler(&mockService{snapshot: doc})

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()
	handler.State(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp types.StateDocument
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Members["zoe"].Stars != 5 {
		t.Errorf("members = %+v", resp.Members)
	}
}

// --- Stars Endpoint Tests ---

func TestStars_AdjustsBalance(t *testing.T) {
	svc := &mockService{starsResp: types.StarsResponse{ID: "zoe", Stars: 5}}
	handler := newTestHandler(svc)

	w := postJSON(t, handler.Stars, "/api/stars", `{"id":"zoe","delta":5}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.lastID != "zoe" || svc.lastDelta != 5 {
		t.Errorf("service called with %q/%d", svc.lastID, svc.lastDelta)
	}

	var resp types.StarsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Stars != 5 {
		t.Errorf("stars = %d, want 5", resp.Stars)
	}
}

func TestStars_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing id", `{"delta":5}`},
		{"empty id", `{"id":"","delta":5}`},
		{"numeric id", `{"id":42,"delta":5}`},
		{"missing delta", `{"id":"zoe"}`},
		{"string delta", `{"id":"zoe","delta":"five"}`},
		{"fractional delta", `{"id":"zoe","delta":1.5}`},
		{"not json", `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{}
			handler := newTestHandler(svc)

			w := postJSON(t, handler.Stars, "/api/stars", tt.body)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if svc.starsCalls != 0 {
				t.Error("invalid request reached the service")
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("content-type = %q", ct)
			}
		})
	}
}

// --- Complete Endpoint Tests ---

func TestComplete_Legacy(t *testing.T) {
	svc := &mockService{completeResp: types.CompleteResponse{ID: "zoe", Count: 1, Stars: 1}}
	handler := newTestHandler(svc)

	w := postJSON(t, handler.Complete, "/api/complete", `{"id":"zoe","delta":1}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp types.CompleteResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 1 || resp.Stars != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestComplete_RejectsNonUnitDelta(t *testing.T) {
	handler := newTestHandler(&mockService{})

	for _, body := range []string{
		`{"id":"zoe","delta":2}`,
		`{"id":"zoe","delta":0}`,
		`{"id":"zoe","delta":-2}`,
		`{"id":"zoe"}`,
	} {
		w := postJSON(t, handler.Complete, "/api/complete", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

// --- Index Endpoint Tests ---

func TestIndex_SetsCarouselPosition(t *testing.T) {
	svc := &mockService{indexResp: types.IndexResponse{ID: "x", Which: types.WhichTask, Index: 2}}
	handler := newTestHandler(svc)

	w := postJSON(t, handler.Index, "/api/index", `{"id":"x","which":"task","index":2}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.lastWhich != types.WhichTask || svc.lastIndex != 2 {
		t.Errorf("service called with %q/%d", svc.lastWhich, svc.lastIndex)
	}
}

func TestIndex_ValidationFailures(t *testing.T) {
	handler := newTestHandler(&mockService{})

	for _, body := range []string{
		`{"id":"x","which":"chore","index":0}`,
		`{"id":"x","which":"task","index":-1}`,
		`{"id":"x","which":"task","index":1.5}`,
		`{"id":"x","index":0}`,
	} {
		w := postJSON(t, handler.Index, "/api/index", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

// --- Redeem Endpoint Tests ---

func TestRedeem_DispatchesByAction(t *testing.T) {
	svc := &mockService{
		redeemResp: types.RedeemResponse{ID: "zoe", Stars: 0, RewardKey: "reward:0", RedeemedCount: 1},
		undoResp:   types.RedeemResponse{ID: "zoe", Stars: 5, RewardKey: "reward:0", RedeemedCount: 0},
	}
	handler := newTestHandler(svc)

	w := postJSON(t, handler.Redeem, "/api/redeem", `{"id":"zoe","rewardKey":"reward:0","cost":5,"action":"redeem"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("redeem status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp types.RedeemResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.RedeemedCount != 1 {
		t.Errorf("redeem resp = %+v", resp)
	}

	w = postJSON(t, handler.Redeem, "/api/redeem", `{"id":"zoe","rewardKey":"reward:0","cost":5,"action":"undo"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("undo status = %d, body = %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.RedeemedCount != 0 || resp.Stars != 5 {
		t.Errorf("undo resp = %+v", resp)
	}
}

func TestRedeem_DefaultsKeyToCurrentRewardIndex(t *testing.T) {
	doc := types.NewStateDocument()
	doc.Members["zoe"] = types.MemberRecord{Stars: 30, RewardIndex: 2, Redemptions: map[string]int{}}
	svc := &mockService{
		snapshot:   doc,
		redeemResp: types.RedeemResponse{ID: "zoe", RewardKey: "reward:2", RedeemedCount: 1},
	}
	handler := newTestHandler(svc)

	w := postJSON(t, handler.Redeem, "/api/redeem", `{"id":"zoe","cost":30,"action":"redeem"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.lastKey != "reward:2" {
		t.Errorf("rewardKey = %q, want reward:2", svc.lastKey)
	}
}

func TestRedeem_BusinessRuleViolations(t *testing.T) {
	tests := []struct {
		name string
		svc  *mockService
		body string
	}{
		{
			"insufficient balance",
			&mockService{redeemErr: rewards.ErrInsufficientStars},
			`{"id":"zoe","rewardKey":"reward:0","cost":99,"action":"redeem"}`,
		},
		{
			"nothing to undo",
			&mockService{undoErr: rewards.ErrNothingToUndo},
			`{"id":"zoe","rewardKey":"reward:0","cost":5,"action":"undo"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(tt.svc)

			w := postJSON(t, handler.Redeem, "/api/redeem", tt.body)

			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", w.Code)
			}

			var p Problem
			json.Unmarshal(w.Body.Bytes(), &p)
			if p.Detail == "" {
				t.Error("problem detail empty, want explanation")
			}
		})
	}
}

func TestRedeem_ValidationFailures(t *testing.T) {
	handler := newTestHandler(&mockService{})

	for _, body := range []string{
		`{"id":"zoe","cost":-1,"action":"redeem"}`,
		`{"id":"zoe","cost":5,"action":"refund"}`,
		`{"id":"zoe","cost":5}`,
		`{"id":"zoe","rewardKey":"prize:0","cost":5,"action":"redeem"}`,
	} {
		w := postJSON(t, handler.Redeem, "/api/redeem", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

// --- Health / Config Endpoint Tests ---

func TestHealth_ReportsCounts(t *testing.T) {
	doc := types.NewStateDocument()
	doc.Members["zoe"] = types.MemberRecord{Redemptions: map[string]int{}}
	handler := newTestHandler(&mockService{snapshot: doc})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	handler.Health(w, req)

	var resp types.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "healthy" || resp.Members != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestFamilyConfig_NilFamilyServesEmpty(t *testing.T) {
	handler := newTestHandler(&mockService{})

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	w := httptest.NewRecorder()
	handler.FamilyConfig(w, req)

	var resp family.Family
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Members == nil || len(resp.Members) != 0 {
		t.Errorf("members = %+v, want empty list", resp.Members)
	}
}

// --- Middleware Tests ---

func TestCORSMiddleware_PreflightShortCircuits(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	mw := CORSMiddleware("http://localhost:5173")(next)

	req := httptest.NewRequest(http.MethodOptions, "/api/stars", nil)
	w := httptest.NewRecorder()
	mw.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if called {
		t.Error("preflight reached the handler")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin = %q", got)
	}
}
