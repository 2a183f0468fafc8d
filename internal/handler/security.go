package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/christianyoga13/vego/internal/domain/auth"
)

var errForbidden = errors.New("forbidden")

// Authenticate returns a middleware that resolves "Authorization: Bearer"
// tokens to sessions. Requests without a valid session are answered with
// 401 before reaching any handler.
func Authenticate(sessions auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, r, auth.ErrNotAuthenticated)
				return
			}

			sess, err := sessions.FindByTokenHash(r.Context(), auth.HashToken(pepper, token))
			if err != nil {
				if !errors.Is(err, auth.ErrNotAuthenticated) {
					zctx.From(r.Context()).Warn("Session lookup failed", zap.Error(err))
				}
				writeError(w, r, auth.ErrNotAuthenticated)
				return
			}

			ctx := auth.WithSession(r.Context(), *sess)
			ctx = zctx.With(ctx, zap.String("user_id", sess.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := session(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !sess.Admin {
			writeError(w, r, errForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
