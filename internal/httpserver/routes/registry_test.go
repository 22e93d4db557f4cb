package routes

import (
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/MrSnakeDoc/linkloom/internal/httpserver/deps"
)

func TestGroupsRegistered(t *testing.T) {
	access := map[string]Access{}
	for _, g := range groups {
		access[g.name] = g.access
	}
	assert.Equal(t, map[string]Access{
		"liveness": Public,
		"operator": Operator,
		"sync":     API,
		"jobs":     API,
	}, access)
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	n := len(groups)
	assert.Panics(t, func() {
		Register("sync", Public, func(chi.Router, deps.Deps) {})
	})
	assert.Len(t, groups, n)
}

func TestAccessString(t *testing.T) {
	assert.Equal(t, "public", Public.String())
	assert.Equal(t, "operator", Operator.String())
	assert.Equal(t, "api", API.String())
	assert.Equal(t, "access(9)", Access(9).String())
}
