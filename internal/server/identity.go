package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/battle"
)

type ctxKey int

const ctxKeyIdentity ctxKey = iota

// identityMiddleware resolves the caller from the X-Player-ID and
// X-Player-Name headers supplied by the external identity provider. A missing
// ID gets a generated guest identity so anonymous play still works; the
// generated ID is echoed back so the client can keep using it.
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Player-ID"))
		name := strings.TrimSpace(r.Header.Get("X-Player-Name"))
		if id == "" {
			id = "guest-" + uuid.NewString()
			w.Header().Set("X-Player-ID", id)
		}
		if name == "" {
			name = "Guest"
		}
		ident := battle.Identity{
			ID:     id,
			Name:   name,
			Avatar: strings.TrimSpace(r.Header.Get("X-Player-Avatar")),
		}
		ctx := context.WithValue(r.Context(), ctxKeyIdentity, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(r *http.Request) battle.Identity {
	return r.Context().Value(ctxKeyIdentity).(battle.Identity)
}
