package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/strrl/telescope-dashboard/pkg/config"
)

// Decision is a gate's verdict on a request.
type Decision int

const (
	Allow Decision = iota
	// Challenge means credentials are missing.
	Challenge
	Deny
)

// Gate authorizes dashboard requests.
type Gate interface {
	Check(r *http.Request) Decision
	// Scheme is sent in WWW-Authenticate on Challenge.
	Scheme() string
}

// NewGate resolves the configured gate name. Names without a built-in
// check are undefined gates, which allow every request.
func NewGate(cfg *config.Config, logger *slog.Logger) Gate {
	switch cfg.Gate {
	case config.GateBasic:
		users := make(map[string][]byte, len(cfg.Auth.Users))
		for name, hash := range cfg.Auth.Users {
			users[strings.ToLower(name)] = []byte(hash)
		}
		return &basicGate{users: users}
	case config.GateToken:
		return &tokenGate{token: []byte(cfg.Auth.Token)}
	default:
		logger.Warn("gate is not defined, dashboard is open to every request", "gate", cfg.Gate)
		return openGate{}
	}
}

type openGate struct{}

func (openGate) Check(*http.Request) Decision { return Allow }
func (openGate) Scheme() string              { return "" }

type basicGate struct {
	users map[string][]byte
}

func (g *basicGate) Check(r *http.Request) Decision {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return Challenge
	}
	hash, found := g.users[strings.ToLower(user)]
	if !found {
		return Deny
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(pass)); err != nil {
		return Deny
	}
	return Allow
}

func (g *basicGate) Scheme() string { return `Basic realm="telescope-dashboard"` }

type tokenGate struct {
	token []byte
}

func (g *tokenGate) Check(r *http.Request) Decision {
	got := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		got = strings.TrimPrefix(auth, "Bearer ")
	}
	if got == "" {
		return Challenge
	}
	if subtle.ConstantTimeCompare([]byte(got), g.token) != 1 {
		return Deny
	}
	return Allow
}

func (g *tokenGate) Scheme() string { return "Bearer" }

func authorize(gate Gate, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch gate.Check(r) {
		case Allow:
			next.ServeHTTP(w, r)
		case Challenge:
			w.Header().Set("WWW-Authenticate", gate.Scheme())
			writeError(w, http.StatusUnauthorized, "Unauthenticated.")
		default:
			writeError(w, http.StatusForbidden, "This action is unauthorized.")
		}
	})
}
