// Package logger builds the loggers folk commands report progress on.
package logger

import (
	"fmt"
	"io"
	"log"
)

// For returns a logger on w prefixed with the command name, the form
// every folk command logs in.
func For(w io.Writer, name string) *log.Logger {
	l := log.New(w, "", log.LstdFlags)
	l.SetPrefix(fmt.Sprintf("[%s] ", name))
	return l
}

// Null discards everything. Tests hand it to tasks under test.
func Null() *log.Logger {
	return log.New(io.Discard, "", log.LstdFlags)
}
