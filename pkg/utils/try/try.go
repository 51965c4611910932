// Package try folds a (value, error) pair into a single value, for
// places where the error can only be fatal anyway.
package try

// something having method `Fatal`.
//
// In standard libraries: *testing.T, *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Either carries the two results of a fallible call until one of its
// unwrapping methods decides what to do with the error.
type Either[T any] struct {
	value T
	err   error
}

// To wraps the results of a fallible call, like:
//
//	f := try.To(os.Open(name)).OrFatal(t)
func To[T any](value T, err error) Either[T] {
	return Either[T]{value: value, err: err}
}

// Get returns the wrapped pair as is.
func (e Either[T]) Get() (T, error) {
	return e.value, e.err
}

// OrFatal returns the value, or calls ftl.Fatal(err) when the call errored.
// If ftl has a Helper method (*testing.T does), it is called first.
func (e Either[T]) OrFatal(ftl Fataler) T {
	if e.err != nil {
		if hlp, ok := ftl.(interface{ Helper() }); ok {
			hlp.Helper()
		}
		ftl.Fatal(e.err)
	}
	return e.value
}

// OrDefault returns the value, or d when the call errored.
func (e Either[T]) OrDefault(d T) T {
	if e.err != nil {
		return d
	}
	return e.value
}
