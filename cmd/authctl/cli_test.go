package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/localauth/internal/domain"
	"github.com/mkrupp/localauth/internal/infra/logging"
	"github.com/mkrupp/localauth/internal/repo/credential"
	"github.com/mkrupp/localauth/internal/svc/authsvc"
)

func newTestCLI(t *testing.T, input string) (*cli, *authsvc.AuthManager, *bytes.Buffer) {
	t.Helper()

	authMgr := &authsvc.AuthManager{
		Store:  credential.NewMemoryStore(),
		Hasher: &authsvc.PasswordHasher{Iterations: 1000},
		Log:    logging.NewNopLogger(),
	}
	t.Cleanup(func() { _ = authMgr.Close() })

	var out bytes.Buffer

	return newCLI(authMgr, strings.NewReader(input), &out), authMgr, &out
}

func TestCLIInit(t *testing.T) {
	t.Parallel()

	c, authMgr, out := newTestCLI(t, "")

	require.NoError(t, c.Run(context.Background(), []string{"init"}))
	assert.Contains(t, out.String(), "credential store ready")
	assert.True(t, authMgr.NeedsPasswordChange(context.Background(), "Csfiac"))
}

func TestCLIUsage(t *testing.T) {
	t.Parallel()

	c, _, out := newTestCLI(t, "")

	require.ErrorIs(t, c.Run(context.Background(), nil), ErrUsage)
	assert.Contains(t, out.String(), "usage: authctl")

	require.ErrorIs(t, c.Run(context.Background(), []string{"frobnicate"}), ErrUsage)
	require.ErrorIs(t, c.Run(context.Background(), []string{"useradd", "bob"}), ErrUsage)
	require.ErrorIs(t, c.Run(context.Background(), []string{"passwd", "-reset", "bob"}), ErrUsage)
	require.ErrorIs(t, c.Run(context.Background(), []string{"status"}), ErrUsage)
}

func TestCLIUseradd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, authMgr, out := newTestCLI(t, "032147\nTr0ub4dor&Zeta\nTr0ub4dor&Zeta\n")

	err := c.Run(ctx, []string{"useradd", "-admin", "Csfiac", "-role", "editor", "-name", "Alice", "alice"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "created alice (editor)")

	info, err := authMgr.Authenticate(ctx, "alice", "Tr0ub4dor&Zeta")
	require.NoError(t, err)
	assert.Equal(t, "Alice", info.Name)
	assert.Equal(t, domain.RoleEditor, info.Role)
}

func TestCLIUseraddErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	c, _, _ := newTestCLI(t, "Iac@123\nTr0ub4dor&Zeta\nTr0ub4dor&Zeta\n")
	err := c.Run(ctx, []string{"useradd", "-admin", "Iac", "bob"})
	require.ErrorIs(t, err, domain.ErrForbidden)

	c, _, _ = newTestCLI(t, "032147\nTr0ub4dor&Zeta\nsomething else\n")
	err = c.Run(ctx, []string{"useradd", "-admin", "Csfiac", "bob"})
	require.ErrorIs(t, err, ErrPasswordMismatch)

	c, _, _ = newTestCLI(t, "032147\nweak\nweak\n")
	err = c.Run(ctx, []string{"useradd", "-admin", "Csfiac", "bob"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), authsvc.ReasonTooShort)

	c, _, _ = newTestCLI(t, "wrong\n")
	err = c.Run(ctx, []string{"useradd", "-admin", "Csfiac", "bob"})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestCLIPasswd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, authMgr, out := newTestCLI(t, "032147\nTr0ub4dor&Zeta\nTr0ub4dor&Zeta\n")

	require.NoError(t, c.Run(ctx, []string{"passwd", "Csfiac"}))
	assert.Contains(t, out.String(), "password of Csfiac changed")
	assert.False(t, authMgr.NeedsPasswordChange(ctx, "Csfiac"))
}

func TestCLIPasswdReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	c, authMgr, _ := newTestCLI(t, "032147\nBr1ght#Moon77\nBr1ght#Moon77\n")
	require.NoError(t, c.Run(ctx, []string{"passwd", "-reset", "-admin", "Csfiac", "viewer"}))

	_, err := authMgr.Authenticate(ctx, "viewer", "Br1ght#Moon77")
	require.NoError(t, err)

	c, _, _ = newTestCLI(t, "Iac@123\nBr1ght#Moon77\nBr1ght#Moon77\n")
	err = c.Run(ctx, []string{"passwd", "-reset", "-admin", "Iac", "viewer"})
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCLIStatus(t *testing.T) {
	t.Parallel()

	c, _, out := newTestCLI(t, "")

	require.NoError(t, c.Run(context.Background(), []string{"status", "viewer"}))
	assert.Contains(t, out.String(), "must change password: true")
	assert.Contains(t, out.String(), "remaining attempts:   5")
}

func TestCLIStrength(t *testing.T) {
	t.Parallel()

	c, _, out := newTestCLI(t, "abc\n")

	require.NoError(t, c.Run(context.Background(), []string{"strength"}))
	assert.Contains(t, out.String(), "valid:    false")
	assert.Contains(t, out.String(), authsvc.ReasonTooShort)
}
