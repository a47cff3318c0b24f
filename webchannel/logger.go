package webchannel

import (
	"io"

	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
)

var logger *golog.Logger

// SetLogger overrides the logger output for this package.
func SetLogger(w io.Writer) {
	logger = golog.New(w, log.Debug)
}

func init() {
	SetLogger(io.Discard)
}
