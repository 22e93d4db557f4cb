package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkloom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkloom/internal/httpserver/mw"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

// Access selects the guards placed in front of a route group.
type Access int

const (
	// Public routes are open to everyone.
	Public Access = iota
	// Operator routes are limited to LINKLOOM_ALLOWED_CIDRS.
	Operator
	// API routes require an allowed Host and a bearer token.
	API
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Operator:
		return "operator"
	case API:
		return "api"
	default:
		return fmt.Sprintf("access(%d)", int(a))
	}
}

type group struct {
	name   string
	access Access
	reg    Registrar
}

var groups []group

// Register adds a named route group. Groups are mounted in registration
// order; a duplicate name panics at init.
func Register(name string, access Access, reg Registrar) {
	for _, g := range groups {
		if g.name == name {
			panic("routes: duplicate group " + name)
		}
	}
	groups = append(groups, group{name: name, access: access, reg: reg})
}

// RegisterAll mounts every group behind its guards. Called once from
// httpserver.NewRouter.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, g := range groups {
		guards := guardsFor(g.access, d)
		r.Group(func(r chi.Router) {
			r.Use(guards...)
			g.reg(r, d)
		})
		d.Logger.Debug("route group mounted",
			logger.String("group", g.name),
			logger.String("access", g.access.String()))
	}
}

func guardsFor(a Access, d deps.Deps) []Middleware {
	switch a {
	case Operator:
		return []Middleware{mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)}
	case API:
		return []Middleware{
			mw.EnforceHost(d.AllowedHosts, d.Logger),
			mw.Authenticate(d.Store.Q(), d.Logger),
		}
	default:
		return nil
	}
}
