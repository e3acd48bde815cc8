package testlog

import (
	"testing"

	"github.com/danmuck/pdcpmux/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
}

// Logger returns a test-scoped logger for collaborators that take one.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return logging.New("test").With().Str("test", t.Name()).Logger()
}
