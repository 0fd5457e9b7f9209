package transfer

import (
	"fmt"
	"io"
)

// NewProgressPrinter returns a transfer observer that rewrites one terminal
// line as bytes move and finishes the line when the count reaches total.
func NewProgressPrinter(w io.Writer, verb string, total int64) func(int64) {
	return func(transferred int64) {
		fmt.Fprintf(w, "%s: %s/%s    \r", verb, HumanSize(transferred), HumanSize(total))
		if transferred >= total {
			fmt.Fprintln(w)
		}
	}
}

// NewProgressReader wraps r so every read reports the running byte count to
// fn.
func NewProgressReader(r io.Reader, fn func(int64)) io.Reader {
	return &countingReader{r: r, fn: fn}
}

type countingReader struct {
	r  io.Reader
	fn func(int64)
	n  int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	if n > 0 {
		c.n += int64(n)
		c.fn(c.n)
	}
	return n, err
}
