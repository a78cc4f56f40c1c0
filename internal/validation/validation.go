package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hearthside/starboard/internal/types"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// RequireMemberID returns an error unless id is a present, non-empty string.
func RequireMemberID(id *string) *ValidationError {
	if id == nil || *id == "" {
		return &ValidationError{Field: "id", Message: "must be a non-empty string"}
	}
	return nil
}

// ValidateDelta returns an error unless delta is a present, finite integer.
// Balances are whole stars; fractional deltas are rejected rather than
// truncated.
func ValidateDelta(delta *float64) *ValidationError {
	if delta == nil {
		return &ValidationError{Field: "delta", Message: "is required"}
	}
	if math.IsNaN(*delta) || math.IsInf(*delta, 0) {
		return &ValidationError{Field: "delta", Message: "must be a finite number"}
	}
	if *delta != math.Trunc(*delta) {
		return &ValidationError{Field: "delta", Message: "must be an integer"}
	}
	return nil
}

// ValidateUnitDelta returns an error unless delta is exactly 1 or -1.
func ValidateUnitDelta(delta *float64) *ValidationError {
	if delta == nil || (*delta != 1 && *delta != -1) {
		return &ValidationError{Field: "delta", Message: "must be 1 or -1"}
	}
	return nil
}

// ValidateWhich returns an error unless which names a known carousel.
func ValidateWhich(which *string) *ValidationError {
	if which == nil || !types.Which(*which).Valid() {
		return &ValidationError{Field: "which", Message: `must be "task" or "reward"`}
	}
	return nil
}

// ValidateIndex returns an error unless index is a present, non-negative
// integer.
func ValidateIndex(index *float64) *ValidationError {
	if index == nil {
		return &ValidationError{Field: "index", Message: "is required"}
	}
	if *index != math.Trunc(*index) || *index < 0 {
		return &ValidationError{Field: "index", Message: "must be a non-negative integer"}
	}
	return nil
}

// ValidateCost returns an error unless cost is a present, non-negative,
// finite integer.
func ValidateCost(cost *float64) *ValidationError {
	if cost == nil {
		return &ValidationError{Field: "cost", Message: "is required"}
	}
	if math.IsNaN(*cost) || math.IsInf(*cost, 0) || *cost != math.Trunc(*cost) || *cost < 0 {
		return &ValidationError{Field: "cost", Message: "must be a non-negative integer"}
	}
	return nil
}

// ValidateAction returns an error unless action is "redeem" or "undo".
func ValidateAction(action *string) *ValidationError {
	if action == nil {
		return &ValidationError{Field: "action", Message: "is required"}
	}
	switch types.RedeemAction(*action) {
	case types.ActionRedeem, types.ActionUndo:
		return nil
	}
	return &ValidationError{Field: "action", Message: `must be "redeem" or "undo"`}
}

// ValidateRewardKey returns an error unless key is empty (caller supplies a
// default) or has the "reward:<n>" shape with a non-negative index.
func ValidateRewardKey(key string) *ValidationError {
	if key == "" {
		return nil
	}
	rest, ok := strings.CutPrefix(key, "reward:")
	if !ok {
		return &ValidationError{Field: "rewardKey", Message: fmt.Sprintf("malformed key %q", key)}
	}
	if n, err := strconv.Atoi(rest); err != nil || n < 0 {
		return &ValidationError{Field: "rewardKey", Message: fmt.Sprintf("malformed key %q", key)}
	}
	return nil
}
