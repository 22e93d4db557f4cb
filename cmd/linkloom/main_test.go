package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "linkloom "), out)
}

func TestTokenCreate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "linkloom.db")
	t.Setenv("LINKLOOM_DATABASE_DRIVER", "sqlite")
	t.Setenv("LINKLOOM_DATABASE_URL", dbPath)

	out, err := execute(t, "token", "create", "--username", "alice", "--name", "laptop")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(token, "ll_"), out)

	ctx := context.Background()
	s, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, dbPath)
	require.NoError(t, err)
	defer s.Close()

	uid, err := s.Q().UserIDForToken(ctx, domain.HashAPIToken(token), domain.Now())
	require.NoError(t, err)
	u, err := s.Q().EnsureUser(ctx, "alice", domain.Now())
	require.NoError(t, err)
	assert.Equal(t, u.ID, uid)
}

func TestTokenCreateRequiresUsername(t *testing.T) {
	_, err := execute(t, "token", "create")
	assert.ErrorContains(t, err, "--username is required")
}

func TestMigrateDownRejectsSQLite(t *testing.T) {
	t.Setenv("LINKLOOM_DATABASE_DRIVER", "sqlite")
	t.Setenv("LINKLOOM_DATABASE_URL", filepath.Join(t.TempDir(), "linkloom.db"))

	_, err := execute(t, "migrate", "up")
	require.NoError(t, err)

	_, err = execute(t, "migrate", "down")
	assert.ErrorContains(t, err, "only supported on postgres")
}
