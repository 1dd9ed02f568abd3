package endmember

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/forest-guardian/fractional-cover/internal/failure"
)

// Codes below this bound are looked up in a flat slice, larger or negative
// ones in a map.
const denseCodeLimit = 1 << 16

// Table maps land-cover class codes to the endmember triplet of their regime.
// It is immutable once built and safe to share between goroutines. The zero
// value is unconfigured and Resolve fails on it.
type Table struct {
	triplets   [2]Triplet
	dense      []bool
	sparse     map[int32]struct{}
	codes      []int32
	configured bool
}

// NewTable builds a table. forestCodes must not be empty.
func NewTable(forest, nonForest Triplet, forestCodes []int32) (*Table, error) {
	if len(forestCodes) == 0 {
		return nil, failure.NewConfigurationError("forest_codes", "forest code set is empty")
	}

	t := &Table{
		sparse:     make(map[int32]struct{}),
		configured: true,
	}
	t.triplets[Forest] = forest
	t.triplets[NonForest] = nonForest

	var maxDense int32 = -1
	for _, c := range forestCodes {
		if c >= 0 && c < denseCodeLimit && c > maxDense {
			maxDense = c
		}
	}
	if maxDense >= 0 {
		t.dense = make([]bool, maxDense+1)
	}
	for _, c := range forestCodes {
		if c >= 0 && c < denseCodeLimit {
			t.dense[c] = true
		} else {
			t.sparse[c] = struct{}{}
		}
	}

	t.codes = slices.Clone(forestCodes)
	slices.Sort(t.codes)
	t.codes = slices.Compact(t.codes)
	return t, nil
}

func (t *Table) Configured() bool { return t != nil && t.configured }

// RegimeOf reports whether code belongs to the forest set. It assumes a
// configured table.
func (t *Table) RegimeOf(code int32) Regime {
	if code >= 0 && int(code) < len(t.dense) {
		if t.dense[code] {
			return Forest
		}
		return NonForest
	}
	if _, ok := t.sparse[code]; ok {
		return Forest
	}
	return NonForest
}

// Triplet returns the endmembers of a regime.
func (t *Table) Triplet(r Regime) Triplet { return t.triplets[r] }

// Resolve returns the endmember triplet applicable to a class code.
func (t *Table) Resolve(code int32) (Triplet, error) {
	if !t.Configured() {
		return Triplet{}, &failure.ConfigurationError{
			Field: "endmember table", Reason: "queried before being configured", Err: failure.ErrNotConfigured,
		}
	}
	return t.triplets[t.RegimeOf(code)], nil
}

// ForestCodes returns the sorted, de-duplicated forest code set.
func (t *Table) ForestCodes() []int32 { return slices.Clone(t.codes) }

// ParseForestCodes parses a comma separated list such as "1, 2,5".
func ParseForestCodes(s string) ([]int32, error) {
	var codes []int32
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseInt(part, 10, 32)
		if err != nil {
			return nil, &failure.ConfigurationError{
				Field: "forest_codes", Reason: fmt.Sprintf("invalid class code %q", part), Err: err,
			}
		}
		codes = append(codes, int32(v))
	}
	if len(codes) == 0 {
		return nil, failure.NewConfigurationError("forest_codes", "forest code set is empty")
	}
	return codes, nil
}
