package ctaphid

import (
	"io"

	charmlog "github.com/charmbracelet/log"
)

// defaultLogger returns a logger that writes to io.Discard so importing ctaphid
// doesn't spam stderr when the embedder doesn't wire one in via
// Options.Logger.
func defaultLogger() *charmlog.Logger {
	return charmlog.New(io.Discard)
}
