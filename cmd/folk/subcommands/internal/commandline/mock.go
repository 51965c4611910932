// Package commandline fakes flarc's command line for task tests, so a
// task can be called directly without going through flag parsing.
package commandline

import (
	"io"
	"strings"

	"github.com/youta-t/flarc"
)

// MockCommandline satisfies flarc.Commandline from plain struct fields.
// Unset streams are harmless: Stdin reads empty, Stdout and Stderr
// discard.
type MockCommandline[T any] struct {
	Fullname_ string

	Stdin_  io.Reader
	Stdout_ io.Writer
	Stderr_ io.Writer

	Flags_ T
	Args_  map[string][]string
}

var _ flarc.Commandline[struct{}] = MockCommandline[struct{}]{}

func (m MockCommandline[T]) Fullname() string {
	return m.Fullname_
}

func (m MockCommandline[T]) Stdin() io.Reader {
	if m.Stdin_ == nil {
		return strings.NewReader("")
	}
	return m.Stdin_
}

func (m MockCommandline[T]) Stdout() io.Writer {
	if m.Stdout_ == nil {
		return io.Discard
	}
	return m.Stdout_
}

func (m MockCommandline[T]) Stderr() io.Writer {
	if m.Stderr_ == nil {
		return io.Discard
	}
	return m.Stderr_
}

func (m MockCommandline[T]) Flags() T {
	return m.Flags_
}

func (m MockCommandline[T]) Args() map[string][]string {
	return m.Args_
}
