package utils

import (
	"io"

	"github.com/MrSnakeDoc/hilite/internal/logger"
)

// MustClose closes c and logs any error under the given resource name.
// Use on shutdown paths where a failed close should be visible.
func MustClose(c io.Closer, name string, log logger.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close",
			logger.String("resource", name),
			logger.Error(err))
		return
	}
	log.Info("closed cleanly", logger.String("resource", name))
}
