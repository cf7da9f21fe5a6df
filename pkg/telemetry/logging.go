package telemetry

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// LogConfig controls the process-wide logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string

	// Format is "text" or "json". Default: text.
	Format string
}

// Sensitive key fragments. Any attribute whose key contains one of these is
// fully redacted.
var sensitiveKeys = []string{
	"api_key", "apikey", "token", "secret", "password", "authorization",
}

// apiKeyPattern catches credential-shaped substrings that leak into free-form
// values, such as an upstream URL echoed inside an error message.
var apiKeyPattern = regexp.MustCompile(`(sk-[a-zA-Z0-9]+|api[-_]?key=[^&\s]+)`)

// SetupLogging installs the default slog logger. Every attribute flows
// through the redactor before it is emitted.
func SetupLogging(cfg LogConfig) *slog.Logger {
	return setupLogging(cfg, os.Stderr)
}

func setupLogging(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return slog.String(a.Key, "***")
		}
	}
	if a.Value.Kind() == slog.KindString {
		v := a.Value.String()
		if redacted := apiKeyPattern.ReplaceAllString(v, "***"); redacted != v {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}
