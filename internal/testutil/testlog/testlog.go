package testlog

import (
	"testing"

	"github.com/danmuck/entropyctl/internal/logging"
	"github.com/rs/zerolog/log"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Msgf("test=%s", t.Name())
}

// Logf records a test progress line through the test logger.
func Logf(format string, args ...any) {
	log.Debug().Msgf(format, args...)
}
