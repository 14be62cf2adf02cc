package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
)

type fixture struct {
	gen   *Generator
	repo  *users.MemoryRepository
	user  *models.User
	clock *time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	repo := users.NewMemoryRepository()
	u, err := repo.Create(context.Background(), &models.User{
		UserName: "alice", Email: "alice@example.com", PasswordHash: "hash-1",
	})
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	f := &fixture{repo: repo, user: u, clock: &now}
	f.gen = NewGenerator("secret", 72*time.Hour, time.Hour, repo).
		WithClock(func() time.Time { return *f.clock })
	return f
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	f := setup(t)

	for _, p := range []Purpose{PurposeActivate, PurposeReset} {
		uid, tok, err := f.gen.Issue(f.user, p)
		require.NoError(t, err)
		assert.Equal(t, EncodeUID(f.user.ID), uid)

		got, err := f.gen.Verify(context.Background(), uid, tok, p)
		require.NoError(t, err, string(p))
		assert.Equal(t, f.user.ID, got.ID)
	}
}

func TestVerify_PurposesAreDisjoint(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	uid, tok, err := f.gen.Issue(f.user, PurposeActivate)
	require.NoError(t, err)
	_, err = f.gen.Verify(ctx, uid, tok, PurposeReset)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	uid, tok, err = f.gen.Issue(f.user, PurposeReset)
	require.NoError(t, err)
	_, err = f.gen.Verify(ctx, uid, tok, PurposeActivate)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_Expiry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	uid, tok, err := f.gen.Issue(f.user, PurposeReset)
	require.NoError(t, err)

	*f.clock = f.clock.Add(59 * time.Minute)
	_, err = f.gen.Verify(ctx, uid, tok, PurposeReset)
	require.NoError(t, err)

	*f.clock = f.clock.Add(time.Minute)
	_, err = f.gen.Verify(ctx, uid, tok, PurposeReset)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_StateChangeInvalidates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(u *models.User)
	}{
		{"password", func(u *models.User) { u.PasswordHash = "hash-2" }},
		{"activation", func(u *models.User) { u.IsActive = true }},
		{"email", func(u *models.User) { u.Email = "new@example.com" }},
		{"login", func(u *models.User) { now := time.Now(); u.LastLogin = &now }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()

			uid, tok, err := f.gen.Issue(f.user, PurposeReset)
			require.NoError(t, err)

			changed := f.user.Clone()
			tt.mutate(changed)
			require.NoError(t, f.repo.Update(ctx, changed))

			_, err = f.gen.Verify(ctx, uid, tok, PurposeReset)
			assert.ErrorIs(t, err, common.ErrInvalidToken)
		})
	}
}

func TestVerify_LastLoginSubsecondIgnored(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	last := time.Date(2025, 5, 1, 8, 0, 0, 123456789, time.UTC)
	f.user.LastLogin = &last
	require.NoError(t, f.repo.Update(ctx, f.user))

	uid, tok, err := f.gen.Issue(f.user, PurposeReset)
	require.NoError(t, err)

	stored := last.Truncate(time.Microsecond)
	f.user.LastLogin = &stored
	require.NoError(t, f.repo.Update(ctx, f.user))

	_, err = f.gen.Verify(ctx, uid, tok, PurposeReset)
	assert.NoError(t, err)
}

func TestVerify_BadInput(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	uid, tok, err := f.gen.Issue(f.user, PurposeActivate)
	require.NoError(t, err)

	cases := map[string][2]string{
		"garbage uid":   {"***", tok},
		"empty uid":     {"", tok},
		"unknown user":  {EncodeUID("nobody"), tok},
		"empty token":   {uid, ""},
		"garbage token": {uid, "abc.def.ghi"},
		"tampered":      {uid, tok[:len(tok)-2] + "xx"},
	}
	for name, c := range cases {
		_, err := f.gen.Verify(ctx, c[0], c[1], PurposeActivate)
		assert.ErrorIs(t, err, common.ErrInvalidToken, name)
	}

	_, err = f.gen.Verify(ctx, uid, tok, Purpose("other"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_OtherSecret(t *testing.T) {
	f := setup(t)

	uid, tok, err := f.gen.Issue(f.user, PurposeActivate)
	require.NoError(t, err)

	other := NewGenerator("other-secret", 72*time.Hour, time.Hour, f.repo)
	_, err = other.Verify(context.Background(), uid, tok, PurposeActivate)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

type failingGetter struct{}

func (failingGetter) GetByID(context.Context, string) (*models.User, error) {
	return nil, errors.New("db down")
}

func TestVerify_StoreError(t *testing.T) {
	f := setup(t)

	uid, tok, err := f.gen.Issue(f.user, PurposeActivate)
	require.NoError(t, err)

	_, err = f.gen.VerifyFrom(context.Background(), failingGetter{}, uid, tok, PurposeActivate)
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestIssue_UnknownPurpose(t *testing.T) {
	f := setup(t)

	_, _, err := f.gen.Issue(f.user, Purpose("other"))
	assert.Error(t, err)
}

func TestUID(t *testing.T) {
	uid := EncodeUID("0b6f7c1e-7d2a-4e4b-9f1e-2f7c3c7a0d11")
	assert.NotContains(t, uid, "=")

	id, err := DecodeUID(uid)
	require.NoError(t, err)
	assert.Equal(t, "0b6f7c1e-7d2a-4e4b-9f1e-2f7c3c7a0d11", id)
}
