package quadprop

// errors.go: sentinel errors shared across the engine.

import "errors"

var (
	// ErrInvalidArgument reports a contract violation by the caller
	// (nil collaborator, mismatched slice lengths, unknown variable).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDegenerateBilinear reports an attempt to add a bilinear term
	// whose two variables are the same; square terms belong to the
	// quadratic-variable term, not the bilinear list.
	ErrDegenerateBilinear = errors.New("degenerate bilinear term: identical variables")

	// ErrPositionRange reports a term position outside the container.
	// Positions are only valid until the next structural mutation of
	// the container they index into.
	ErrPositionRange = errors.New("term position out of range")
)
