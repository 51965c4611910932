// Package args has flag value types for the folk command line.
package args

import "strings"

// Names is a repeatable string flag. Each occurrence on the command
// line appends one value; the order is kept.
//
// Use it as a pointer field of a flag struct, defaulted to &Names{}:
//
//	type Flag struct {
//		Only *args.Names `flag:"only" help:"pick one item. Repeatable."`
//	}
type Names []string

func (n *Names) String() string {
	if n == nil {
		return ""
	}
	return strings.Join(*n, ",")
}

func (n *Names) Set(value string) error {
	*n = append(*n, value)
	return nil
}

// Slice is the collected values as a plain []string.
// It is safe on a nil receiver, which stands for "no values".
func (n *Names) Slice() []string {
	if n == nil {
		return nil
	}
	return *n
}
