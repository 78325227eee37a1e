package fieldtype

import (
	"context"

	"fieldline/internal/domain"
)

// Visitor is the marker every extension visitor satisfies. A visitor opts in
// to a shape by also implementing that shape's narrow interface; Accept
// checks the narrowest layer first and falls back to the enclosing one.
// New shapes add new interfaces without touching existing visitors.
type Visitor interface{}

// TypeVisitor is the catch-all layer, reached only when no narrower
// interface matched.
type TypeVisitor interface {
	VisitType(t Descriptor) any
}

// SingleShape is what single-valued field types expose to visitors.
type SingleShape interface {
	Descriptor
	StorageKind() StorageKind
}

// MultiShape is what multi-valued field types expose to visitors.
type MultiShape interface {
	Descriptor
	StorageKind() StorageKind
	// Ordered reports whether retrieved sets are sorted.
	Ordered() bool
	// ElementTexts renders an erased set value element by element.
	ElementTexts(value any) ([]string, bool)
	// RemoveElementText removes the element text parses to from every
	// record of field.
	RemoveElementText(ctx context.Context, field domain.Field, text string) (RecordSet, error)
}

// ComputedShape is what computed field types expose to visitors.
type ComputedShape interface {
	Descriptor
}

type SingleVisitor interface {
	VisitSingle(t SingleShape) any
}

type MultiVisitor interface {
	VisitMulti(t MultiShape) any
}

type ComputedVisitor interface {
	VisitComputed(t ComputedShape) any
}

// Dispatch applies v to t and asserts the result type.
func Dispatch[R any](t Descriptor, v Visitor) (R, bool) {
	var zero R
	res, ok := t.Accept(v)
	if !ok {
		return zero, false
	}
	r, ok := res.(R)
	if !ok {
		return zero, false
	}
	return r, true
}
