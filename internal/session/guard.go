// Package session decides, for every navigation, whether the target route
// may be entered given the presence of a session marker.
//
// The guard is a pure function of the target route and the authentication
// flag. Marker stores (in-process or cookie backed) answer the presence
// question; the route table turns a path into a Route.
package session

import "fmt"

// Default navigation targets
const (
	DefaultLoginPath    = "/login"
	DefaultRegisterPath = "/register"
	DefaultLandingPath  = "/sistema"
)

// Outcome is the kind of navigation decision
type Outcome int

const (
	Allow Outcome = iota
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Route is a resolved navigation target
type Route struct {
	Path         string
	Name         string
	RequiresAuth bool
	Params       map[string]string
}

// Decision is the result of evaluating a navigation
type Decision struct {
	Outcome Outcome
	Target  string
}

// Allowed reports whether the navigation proceeds
func (d Decision) Allowed() bool { return d.Outcome == Allow }

func (d Decision) String() string {
	if d.Outcome == Redirect {
		return "redirect " + d.Target
	}
	return d.Outcome.String()
}

// Guard holds the three well-known paths
type Guard struct {
	LoginPath    string
	RegisterPath string
	LandingPath  string
}

// NewGuard returns a guard with the default paths
func NewGuard() Guard {
	return Guard{
		LoginPath:    DefaultLoginPath,
		RegisterPath: DefaultRegisterPath,
		LandingPath:  DefaultLandingPath,
	}
}

// Evaluate decides whether a navigation to `to` is allowed.
//
// Protected routes redirect anonymous users to the login path.
// Authenticated users are sent from login/register to the landing path,
// whether or not those routes require authentication.
func (g Guard) Evaluate(to Route, authenticated bool) Decision {
	if to.RequiresAuth && !authenticated {
		return Decision{Outcome: Redirect, Target: g.LoginPath}
	}
	if (to.Path == g.LoginPath || to.Path == g.RegisterPath) && authenticated {
		return Decision{Outcome: Redirect, Target: g.LandingPath}
	}
	return Decision{Outcome: Allow}
}
