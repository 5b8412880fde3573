package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
)

type ctxKey int

const accountIDKey ctxKey = iota

// Middleware reads X-API-Key, resolves it through Cache, and stores the
// resulting account id on the request context. Missing/invalid key is
// UNAUTHORIZED (401) per spec.md §7; it never checks resource ownership
// (handlers do that, returning FORBIDDEN where the path's account
// differs from the authenticated one).
func Middleware(cache *Cache, writeError func(w http.ResponseWriter, status int, code, msg string)) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := cache.Lookup(r.Header.Get("X-API-Key"))
			if err != nil {
				if errors.Is(err, ErrMissingKey) || errors.Is(err, ErrInvalidKey) {
					writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid api key")
					return
				}
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "auth lookup failed")
				return
			}
			ctx := context.WithValue(r.Context(), accountIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountID retrieves the authenticated account id set by Middleware.
func AccountID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(accountIDKey).(string)
	return id, ok
}

// AdminMiddleware checks a static bearer token from config against the
// Authorization header.
func AdminMiddleware(token string, writeError func(w http.ResponseWriter, status int, code, msg string)) mux.MiddlewareFunc {
	const prefix = "Bearer "
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("Authorization")
			if len(got) <= len(prefix) || got[:len(prefix)] != prefix || got[len(prefix):] != token {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
