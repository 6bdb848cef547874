package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bataille/internal/game"
)

type ctxKey int

const playerKey ctxKey = iota

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a game error to its HTTP status. Anything unclassified is
// a 500.
func WriteError(w http.ResponseWriter, err error) {
	var gerr *game.Error
	if errors.As(err, &gerr) {
		status := http.StatusInternalServerError
		switch gerr.Kind {
		case game.KindValidation:
			status = http.StatusBadRequest
		case game.KindAuthorization:
			status = http.StatusForbidden
		case game.KindConflict:
			status = http.StatusConflict
		case game.KindNotFound:
			status = http.StatusNotFound
		}
		WriteJSON(w, status, map[string]any{"error": gerr.Code, "message": gerr.Message})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal", "message": "internal server error"})
}

// RequirePlayer extracts the caller's identity from the X-Player-ID header.
// Verifying the identity is the upstream auth proxy's concern; this layer
// only requires a well-formed id.
func RequirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID, err := uuid.Parse(r.Header.Get("X-Player-ID"))
		if err != nil {
			WriteJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized", "message": "missing or invalid X-Player-ID"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), playerKey, playerID)))
	})
}

// PlayerID returns the authenticated caller set by RequirePlayer.
func PlayerID(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(playerKey).(uuid.UUID)
	return id
}

// RequestLogger logs one line per request.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", ClientIP(r)).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

// ClientIP extracts the client IP from the request.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
