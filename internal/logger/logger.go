// internal/logger/logger.go
package logger

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init installs the global logger. pretty selects the human-readable console
// writer used in development; otherwise logs are JSON lines.
func Init(level string, pretty bool) error {
	return InitWriter(os.Stderr, level, pretty)
}

// InitWriter is Init with an explicit output.
func InitWriter(out io.Writer, level string, pretty bool) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if pretty {
		// Use ConsoleWriter for human-readable, colorized output in development
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	// Include the caller's file and line number
	log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()
	return nil
}

// RequestLogger logs one line per request. The Authorization header is never
// logged in full.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			evt := log.Info()
			if status >= http.StatusInternalServerError {
				evt = log.Error()
			}
			evt.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("authorization", MaskAuthorization(r.Header.Get("Authorization"))).
				Msg("HTTP request")
		}()

		next.ServeHTTP(ww, r)
	})
}

// MaskAuthorization keeps the scheme and hides the credentials.
func MaskAuthorization(header string) string {
	if header == "" {
		return ""
	}
	scheme, _, found := strings.Cut(header, " ")
	if !found {
		return "***"
	}
	return scheme + " ***"
}
