// Package fieldop defines the server-side field operations that can be sent
// in a write payload in place of a plain value.
package fieldop

import (
	"fmt"
	"math"
	"reflect"
)

// Op is a field operation applied by the store instead of a plain value write.
type Op interface {
	// Kind returns the name of the operation.
	Kind() string
}

// ArrayUnion appends each value that is not already present in the array field.
type ArrayUnion struct {
	Values []any
}

// ArrayRemove removes every element equal to one of the values from the array field.
type ArrayRemove struct {
	Values []any
}

// Increment adds Amount to the numeric field. Amount is an int64 or a float64.
type Increment struct {
	Amount any
}

type deleteField struct{}

// Delete removes the field from the stored document.
var Delete Op = deleteField{}

func (ArrayUnion) Kind() string  { return "arrayUnion" }
func (ArrayRemove) Kind() string { return "arrayRemove" }
func (Increment) Kind() string   { return "increment" }
func (deleteField) Kind() string { return "delete" }

func (o ArrayUnion) String() string  { return fmt.Sprintf("ArrayUnion(%v)", o.Values) }
func (o ArrayRemove) String() string { return fmt.Sprintf("ArrayRemove(%v)", o.Values) }
func (o Increment) String() string   { return fmt.Sprintf("Increment(%v)", o.Amount) }
func (deleteField) String() string   { return "Delete" }

// NewIncrement returns an Increment op for the given numeric amount.
func NewIncrement(amount any) (Increment, error) {
	n, ok := Number(amount)
	if !ok {
		return Increment{}, fmt.Errorf("increment amount must be numeric, got %T", amount)
	}
	return Increment{Amount: n}, nil
}

// IsDelete returns true if the value is the Delete sentinel.
func IsDelete(value any) bool {
	_, ok := value.(deleteField)
	return ok
}

// Apply returns the result of applying op to the current field value.
//
// The exists flag reports whether the field was present. The returned bool is
// false when the field should be removed.
func Apply(current any, exists bool, op Op) (any, bool, error) {
	switch o := op.(type) {
	case deleteField:
		return nil, false, nil
	case ArrayUnion:
		out := arrayValue(current, exists)
		for _, v := range o.Values {
			if !contains(out, v) {
				out = append(out, v)
			}
		}
		return out, true, nil
	case ArrayRemove:
		in := arrayValue(current, exists)
		out := make([]any, 0, len(in))
		for _, v := range in {
			if !contains(o.Values, v) {
				out = append(out, v)
			}
		}
		return out, true, nil
	case Increment:
		amount, ok := Number(o.Amount)
		if !ok {
			return nil, false, fmt.Errorf("increment amount must be numeric, got %T", o.Amount)
		}
		base, ok := Number(current)
		if !exists || !ok {
			return amount, true, nil
		}
		return add(base, amount), true, nil
	default:
		return nil, false, fmt.Errorf("unsupported field operation %T", op)
	}
}

// Number converts any Go numeric value to an int64 or a float64.
//
// Unsigned values above math.MaxInt64 are not numbers in this model.
func Number(value any) (any, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return nil, false
	}
}

func add(a, b any) any {
	ai, aok := a.(int64)
	bi, bok := b.(int64)
	if aok && bok {
		return ai + bi
	}
	return toFloat(a) + toFloat(b)
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int64:
		return float64(t)
	case float64:
		return t
	}
	return 0
}

func arrayValue(current any, exists bool) []any {
	list, ok := current.([]any)
	if !exists || !ok {
		return []any{}
	}
	out := make([]any, len(list))
	copy(out, list)
	return out
}

func contains(values []any, value any) bool {
	for _, v := range values {
		if reflect.DeepEqual(v, value) {
			return true
		}
	}
	return false
}
