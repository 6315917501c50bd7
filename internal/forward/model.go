// Package forward defines the boundary to the geophysical forward model.
// The engine only ever asks a model for named scalar quantities of a layout;
// the heavy physics lives behind the Model interface, with a built-in
// source-grid approximation so the engine runs without an external library.
package forward

import (
	"context"
	"fmt"

	"dasopt/internal/layout"
)

const (
	QuantityCoverage   = "coverage"
	QuantityResolution = "resolution"
	QuantityRedundancy = "redundancy"
)

// Model computes named sensing quantities for a layout. Implementations must
// be stateless after construction so distinct layouts can be evaluated
// concurrently, and should honor ctx cancellation in long computations.
type Model interface {
	Name() string
	Quantities() []string
	Evaluate(ctx context.Context, lay *layout.Layout, quantity string) (float64, error)
}

// UnknownQuantityError reports a quantity the model does not serve.
type UnknownQuantityError struct {
	Model    string
	Quantity string
}

func (e *UnknownQuantityError) Error() string {
	return fmt.Sprintf("model %s does not serve quantity %q", e.Model, e.Quantity)
}

// Serves reports whether the model lists the quantity.
func Serves(m Model, quantity string) bool {
	for _, q := range m.Quantities() {
		if q == quantity {
			return true
		}
	}
	return false
}
