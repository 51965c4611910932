// Package progress renders the byte-counter line the ingest commands
// show while they stream files around.
package progress

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

const noBar pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{with string . "suffix"}} {{.}}{{end}}`

// Bar starts a counters-only progress line on w and returns a report
// callback in the shape the executors expect, plus a finisher.
//
// With plain, both are no-ops; scripts get clean stderr then.
func Bar(w io.Writer, plain bool) (report func(name string, delta int64), finish func()) {
	if plain {
		return func(string, int64) {}, func() {}
	}

	bar := noBar.New(-1)
	bar.SetWriter(w)
	bar.Set(pb.Bytes, true)
	bar.Start()

	return func(name string, delta int64) {
			bar.Set("prefix", ellipsis(name, 40)+":")
			bar.Add64(delta)
		}, func() {
			bar.Set("prefix", "done.")
			bar.Finish()
		}
}

func ellipsis(s string, length int) string {
	if len(s) <= length {
		return s
	}

	l := len(s)
	return "[...]" + s[l-length+5:]
}
