package batch

import (
	"fmt"
	"strconv"
)

// Ceiling is the exclusive upper bound for pack ids. Nothing at or above it
// exists on the remote source.
const Ceiling = 3000

// ValidationError reports a malformed batch range. It is always fatal and is
// raised before any network activity.
type ValidationError struct {
	Field  string // "min", "max" or "range"
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Range is a normalized, inclusive span of pack ids. Min <= Max always holds
// for a Range returned by NewRange.
type Range struct {
	Min int
	Max int
}

// NewRange validates and normalizes a range. Both ids must be positive, a
// reversed range is swapped, and Max must stay below Ceiling.
func NewRange(min, max int) (Range, error) {
	if min <= 0 {
		return Range{}, &ValidationError{Field: "min", Value: strconv.Itoa(min), Reason: "pack range cannot be 0 or negative"}
	}
	if max <= 0 {
		return Range{}, &ValidationError{Field: "max", Value: strconv.Itoa(max), Reason: "pack range cannot be 0 or negative"}
	}
	if min > max {
		min, max = max, min
	}
	if max >= Ceiling {
		return Range{}, &ValidationError{Field: "max", Value: strconv.Itoa(max), Reason: fmt.Sprintf("pack maximum range is too high (must be below %d)", Ceiling)}
	}
	return Range{Min: min, Max: max}, nil
}

// ParseRange parses the two CLI arguments as unsigned 16-bit ids and then
// applies NewRange.
func ParseRange(minArg, maxArg string) (Range, error) {
	min, err := parseID("min", minArg)
	if err != nil {
		return Range{}, err
	}
	max, err := parseID("max", maxArg)
	if err != nil {
		return Range{}, err
	}
	return NewRange(min, max)
}

func parseID(field, arg string) (int, error) {
	v, err := strconv.ParseUint(arg, 10, 16)
	if err != nil {
		return 0, &ValidationError{Field: field, Value: arg, Reason: "must be an unsigned integer up to 65535"}
	}
	return int(v), nil
}

// Len is the number of ids in the range.
func (r Range) Len() int {
	if r.Max < r.Min {
		return 0
	}
	return r.Max - r.Min + 1
}

// Contains reports whether id falls inside the range.
func (r Range) Contains(id int) bool {
	return id >= r.Min && id <= r.Max
}

// IDs returns every id in ascending order.
func (r Range) IDs() []int {
	ids := make([]int, 0, r.Len())
	for id := r.Min; id <= r.Max; id++ {
		ids = append(ids, id)
	}
	return ids
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Min, r.Max)
}
