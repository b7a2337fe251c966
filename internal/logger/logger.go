package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. format is "json" or "console".
func Init(level, format string) error {
	return InitWithWriter(level, format, os.Stdout)
}

func InitWithWriter(level, format string, out io.Writer) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.ToLower(format) == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// Tenant returns a child logger carrying the tenant id.
func Tenant(tenantID int) zerolog.Logger {
	return log.With().Int("tenant_id", tenantID).Logger()
}
