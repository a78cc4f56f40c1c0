package rewards

import "errors"

var (
	// ErrInsufficientStars rejects a redemption the member cannot afford.
	ErrInsufficientStars = errors.New("not enough points")

	// ErrNothingToUndo rejects an undo with no prior redemption recorded.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrInvalidUnitDelta rejects a legacy unit-complete with a delta other
	// than +1 or -1.
	ErrInvalidUnitDelta = errors.New("delta must be 1 or -1")

	// ErrUnknownCarousel rejects an index update naming neither carousel.
	ErrUnknownCarousel = errors.New(`which must be "task" or "reward"`)
)
