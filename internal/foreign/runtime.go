package foreign

import (
	"context"
	"fmt"
)

// Ref identifies an object held in the foreign runtime's local reference
// table. Refs are only meaningful to the Runtime that issued them. Every
// transient ref obtained during a bridge call must be released before the
// call returns; holding them longer grows the foreign reference table
// without bound when many scan ranges run concurrently.
type Ref uint64

// NilRef is the zero reference.
const NilRef Ref = 0

// Kind discriminates Value payloads.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindLong
	KindString
	KindBytes
	KindRef
)

// Value is the argument/result union for foreign calls.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Str   string
	Bytes []byte
	Ref   Ref
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// Bool wraps a boolean argument.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Int wraps a 32-bit integer argument.
func Int(i int) Value { return Value{Kind: KindInt, Int: int64(i)} }

// Long wraps a 64-bit integer argument.
func Long(i int64) Value { return Value{Kind: KindLong, Int: i} }

// String wraps a string argument passed by value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// BytesValue wraps a binary argument.
func BytesValue(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// RefValue wraps a reference argument.
func RefValue(r Ref) Value { return Value{Kind: KindRef, Ref: r} }

// IsNull reports whether the value carries no payload.
func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("bool(%t)", v.Bool)
	case KindInt, KindLong:
		return fmt.Sprintf("int(%d)", v.Int)
	case KindString:
		return fmt.Sprintf("string(%q)", v.Str)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.Bytes))
	case KindRef:
		return fmt.Sprintf("ref(%d)", v.Ref)
	}
	return "invalid"
}

// Runtime is the call surface into the foreign-managed runtime hosting the
// table-format scanner. Implementations mediate every cross-boundary
// operation: class resolution, object construction, method invocation, and
// local reference release. All calls are synchronous and may block on
// foreign-side I/O; callers own timeout policy via ctx.
type Runtime interface {
	// FindClass resolves a class by its slash-separated name.
	FindClass(ctx context.Context, name string) (Ref, error)

	// NewObject constructs an instance of the given class.
	NewObject(ctx context.Context, class Ref, args ...Value) (Ref, error)

	// CallMethod invokes a method on an object and returns its result.
	CallMethod(ctx context.Context, obj Ref, method string, args ...Value) (Value, error)

	// NewString interns a string in the foreign runtime and returns a ref.
	NewString(ctx context.Context, s string) (Ref, error)

	// ReleaseLocal drops a local reference. Best effort; release failures
	// are swallowed by implementations since there is nothing a caller can
	// do about them mid-call.
	ReleaseLocal(ctx context.Context, ref Ref)

	// Close tears down the connection to the foreign runtime.
	Close() error
}

// RefBag collects transient refs created during one bridge call so they
// can be released in bulk on every exit path, success or failure.
type RefBag struct {
	rt   Runtime
	refs []Ref
}

// NewRefBag creates an empty bag bound to a runtime.
func NewRefBag(rt Runtime) *RefBag {
	return &RefBag{rt: rt}
}

// Add records a ref for later release and returns it unchanged.
func (b *RefBag) Add(r Ref) Ref {
	if r != NilRef {
		b.refs = append(b.refs, r)
	}
	return r
}

// Forget drops a ref from the bag without releasing it. Used when a
// collected ref turns out to be the call's final result.
func (b *RefBag) Forget(r Ref) {
	for i, held := range b.refs {
		if held == r {
			b.refs = append(b.refs[:i], b.refs[i+1:]...)
			return
		}
	}
}

// ReleaseAll releases every collected ref and empties the bag.
func (b *RefBag) ReleaseAll(ctx context.Context) {
	for _, r := range b.refs {
		b.rt.ReleaseLocal(ctx, r)
	}
	b.refs = b.refs[:0]
}
