package logging

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the global logger exactly once. An empty or
// unparseable level falls back to info.
func Configure(level string) {
	once.Do(func() {
		lvl := zerolog.InfoLevel
		if level != "" {
			if parsed, err := zerolog.ParseLevel(level); err == nil {
				lvl = parsed
			}
		}
		zerolog.SetGlobalLevel(lvl)
		zerolog.TimeFieldFormat = time.RFC3339
		base = zerolog.New(os.Stdout).With().
			Timestamp().
			Str("service", "bataille").
			Logger()
	})
}

// Component returns a child logger annotated with a component name.
func Component(name string) zerolog.Logger {
	Configure("")
	return base.With().Str("component", name).Logger()
}
