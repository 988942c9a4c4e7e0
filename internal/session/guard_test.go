package session

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	g := NewGuard()
	tests := []struct {
		name   string
		route  Route
		authed bool
		want   Decision
	}{
		{"protected anonymous", Route{Path: "/sistema", RequiresAuth: true}, false, Decision{Redirect, "/login"}},
		{"protected authenticated", Route{Path: "/sistema", RequiresAuth: true}, true, Decision{Outcome: Allow}},
		{"login authenticated", Route{Path: "/login"}, true, Decision{Redirect, "/sistema"}},
		{"register authenticated", Route{Path: "/register"}, true, Decision{Redirect, "/sistema"}},
		{"login anonymous", Route{Path: "/login"}, false, Decision{Outcome: Allow}},
		{"register anonymous", Route{Path: "/register"}, false, Decision{Outcome: Allow}},
		{"public anonymous", Route{Path: "/docusmodf1"}, false, Decision{Outcome: Allow}},
		{"public authenticated", Route{Path: "/"}, true, Decision{Outcome: Allow}},
		{"login flagged protected anonymous", Route{Path: "/login", RequiresAuth: true}, false, Decision{Redirect, "/login"}},
		{"login flagged protected authenticated", Route{Path: "/login", RequiresAuth: true}, true, Decision{Redirect, "/sistema"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Evaluate(tt.route, tt.authed))
		})
	}
}

func randomPath(r *rand.Rand) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789-"
	n := r.IntN(4)
	path := ""
	for range n + 1 {
		seg := make([]byte, 1+r.IntN(8))
		for i := range seg {
			seg[i] = alphabet[r.IntN(len(alphabet))]
		}
		path += "/" + string(seg)
	}
	return path
}

func TestEvaluateProperties(t *testing.T) {
	g := NewGuard()
	r := rand.New(rand.NewPCG(1, 2))

	for i := range 500 {
		path := randomPath(r)
		if path == g.LoginPath || path == g.RegisterPath {
			continue
		}
		t.Run(fmt.Sprintf("%d%s", i, path), func(t *testing.T) {
			protected := Route{Path: path, RequiresAuth: true}
			public := Route{Path: path}

			assert.Equal(t, Decision{Redirect, g.LoginPath}, g.Evaluate(protected, false))
			assert.True(t, g.Evaluate(protected, true).Allowed())
			assert.True(t, g.Evaluate(public, false).Allowed())
			assert.True(t, g.Evaluate(public, true).Allowed())
		})
	}
}

func TestEvaluateCustomPaths(t *testing.T) {
	g := Guard{LoginPath: "/signin", RegisterPath: "/signup", LandingPath: "/home"}

	assert.Equal(t, Decision{Redirect, "/signin"}, g.Evaluate(Route{Path: "/x", RequiresAuth: true}, false))
	assert.Equal(t, Decision{Redirect, "/home"}, g.Evaluate(Route{Path: "/signup"}, true))
	assert.True(t, g.Evaluate(Route{Path: "/login"}, true).Allowed())
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allow", Decision{Outcome: Allow}.String())
	assert.Equal(t, "redirect /login", Decision{Redirect, "/login"}.String())
	assert.Equal(t, "outcome(7)", Outcome(7).String())
}
