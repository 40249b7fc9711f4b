package nws

// Result is the outcome of a fetch: either a decoded value or nothing.
// Every failure mode (network, timeout, non-2xx status, bad JSON) collapses
// to an empty Result; the cause is only logged.
type Result[T any] struct {
	value T
	ok    bool
}

// Some wraps a fetched value.
func Some[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// None is the absent result.
func None[T any]() Result[T] {
	return Result[T]{}
}

// Get returns the value and whether it is present.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.ok
}

// Present reports whether the fetch produced a value.
func (r Result[T]) Present() bool {
	return r.ok
}
