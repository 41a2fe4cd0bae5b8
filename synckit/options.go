package synckit

import (
	"fmt"
	"log/slog"
	"os"
)

// EngineOption is a functional option for configuring an Engine via NewEngine.
type EngineOption func(*Engine) error

// WithLogger sets the logger. The engine tags its records with component=engine.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) error {
		if l != nil {
			e.logger = l
		}
		return nil
	}
}

// WithMetricsCollector sets the metrics collector.
func WithMetricsCollector(mc MetricsCollector) EngineOption {
	return func(e *Engine) error {
		if mc == nil {
			return fmt.Errorf("metrics collector cannot be nil")
		}
		e.metrics = mc
		return nil
	}
}

// WithScheduler sets the scheduler Submit kicks after an offline save. It
// can also be attached later with SetScheduler.
func WithScheduler(s SyncScheduler) EngineOption {
	return func(e *Engine) error {
		e.scheduler = s
		return nil
	}
}

// WithImageReader replaces os.ReadFile for loading product images.
func WithImageReader(fn func(path string) ([]byte, error)) EngineOption {
	return func(e *Engine) error {
		if fn != nil {
			e.readImage = fn
		}
		return nil
	}
}

func defaultImageReader(path string) ([]byte, error) {
	return os.ReadFile(path)
}
