package main

import (
	"fmt"
	"io"
)

// printer writes formatted output and keeps the first write error. Later
// writes are skipped once one has failed.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
