package rules

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/stokalert/stokalert/internal/models"
)

func TestCompareProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	finite := gen.Float64Range(-1e9, 1e9)

	properties.Property("equal is reflexive", prop.ForAll(
		func(x float64) bool {
			return Compare(x, x, models.OperatorEqual)
		},
		finite,
	))

	properties.Property("equal rejects values outside tolerance", prop.ForAll(
		func(x float64) bool {
			return !Compare(x, x+0.02, models.OperatorEqual)
		},
		gen.Float64Range(-1e6, 1e6),
	))

	properties.Property("above and below are mutually exclusive", prop.ForAll(
		func(v, target float64) bool {
			return !(Compare(v, target, models.OperatorAbove) && Compare(v, target, models.OperatorBelow))
		},
		finite, finite,
	))

	properties.Property("strictly greater implies above", prop.ForAll(
		func(v, delta float64) bool {
			return Compare(v+delta, v, models.OperatorAbove)
		},
		gen.Float64Range(-1e6, 1e6), gen.Float64Range(0.001, 1e6),
	))

	properties.Property("strictly smaller implies below", prop.ForAll(
		func(v, delta float64) bool {
			return Compare(v-delta, v, models.OperatorBelow)
		},
		gen.Float64Range(-1e6, 1e6), gen.Float64Range(0.001, 1e6),
	))

	properties.TestingRun(t)
}
