// Package constraint validates field names and nesting depth against the
// structural limits of the document store.
package constraint

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxNestingDepth is the number of nesting levels a field value may use.
	//
	// The value of a top-level field is at depth 0.
	MaxNestingDepth = 20
	// MaxFieldNameBytes is the maximum length of a UTF-8 encoded field name.
	MaxFieldNameBytes = 1500
)

// ErrConstraint is matched by every error returned from this package.
var ErrConstraint = errors.New("constraint violation")

// Error describes a field name or depth that breaks a structural limit.
type Error struct {
	// Name is the offending field name, if any.
	Name string
	// Path is the top-level field the value belongs to, if known.
	Path string
	// Depth is the nesting depth where the violation happened.
	Depth int
	// Reason is a short description of the violated rule.
	Reason string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("constraint violation: ")
	b.WriteString(e.Reason)
	if e.Name != "" {
		fmt.Fprintf(&b, " (field %q)", e.Name)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " at path %q", e.Path)
	}
	fmt.Fprintf(&b, " at depth %d", e.Depth)
	return b.String()
}

func (e *Error) Is(target error) bool {
	return target == ErrConstraint
}

// ValidateFieldName returns an error if the name cannot be used as a field name.
func ValidateFieldName(name string, depth int) error {
	switch {
	case name == "":
		return &Error{Depth: depth, Reason: "field name cannot be empty"}
	case isReserved(name):
		return &Error{Name: name, Depth: depth, Reason: "field name matches the reserved __name__ pattern"}
	case strings.TrimSpace(name) != name:
		return &Error{Name: name, Depth: depth, Reason: "field name has leading or trailing whitespace"}
	case len(name) > MaxFieldNameBytes:
		return &Error{Name: name, Depth: depth, Reason: fmt.Sprintf("field name exceeds %d bytes", MaxFieldNameBytes)}
	}
	return nil
}

// ValidateDepth returns an error if a value at the given depth exceeds MaxNestingDepth.
func ValidateDepth(depth int, path string) error {
	if depth >= MaxNestingDepth {
		return &Error{Path: path, Depth: depth, Reason: fmt.Sprintf("nesting depth limit of %d exceeded", MaxNestingDepth)}
	}
	return nil
}

func isReserved(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}
