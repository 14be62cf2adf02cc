// Package tokens issues and verifies the one-time links sent by email for
// account activation and password reset.
//
// Nothing is stored. A link is a (uid, token) pair: uid is the user id in
// unpadded base64url and token is an HS256 JWT whose signing key is derived
// from the server secret, the purpose and the user's current state. Changing
// the password, the email, the active flag or logging in changes the key, so
// every outstanding link for that user stops verifying.
package tokens

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

type Purpose string

const (
	PurposeActivate Purpose = "activate"
	PurposeReset    Purpose = "reset"
)

// UserGetter loads the user a link points at.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type claims struct {
	jwt.RegisteredClaims
	Purpose Purpose `json:"pur"`
}

// Generator issues and verifies links. It is safe for concurrent use.
type Generator struct {
	secret   []byte
	validity map[Purpose]time.Duration
	users    UserGetter
	now      func() time.Time
}

func NewGenerator(secret string, activation, reset time.Duration, users UserGetter) *Generator {
	return &Generator{
		secret: []byte(secret),
		validity: map[Purpose]time.Duration{
			PurposeActivate: activation,
			PurposeReset:    reset,
		},
		users: users,
		now:   time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

func EncodeUID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func DecodeUID(uid string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil || len(b) == 0 {
		return "", common.ErrInvalidToken
	}
	return string(b), nil
}

// key derives the per-user signing key. Last login is taken at second
// precision so a round trip through the database does not change it.
func (g *Generator) key(u *models.User, purpose Purpose) []byte {
	lastLogin := ""
	if u.LastLogin != nil {
		lastLogin = strconv.FormatInt(u.LastLogin.Unix(), 10)
	}

	mac := hmac.New(sha256.New, g.secret)
	for _, part := range []string{
		string(purpose), u.ID, u.PasswordHash, strconv.FormatBool(u.IsActive), u.Email, lastLogin,
	} {
		mac.Write([]byte(part))
		mac.Write([]byte{0})
	}
	return mac.Sum(nil)
}

// Issue returns the uid and token for a link of the given purpose.
func (g *Generator) Issue(u *models.User, purpose Purpose) (string, string, error) {
	validity, ok := g.validity[purpose]
	if !ok {
		return "", "", errors.New("unknown token purpose")
	}

	now := g.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Purpose: purpose,
	})

	signed, err := token.SignedString(g.key(u, purpose))
	if err != nil {
		return "", "", err
	}

	return EncodeUID(u.ID), signed, nil
}

// Verify checks a link against the configured user source.
func (g *Generator) Verify(ctx context.Context, uid, token string, purpose Purpose) (*models.User, error) {
	return g.VerifyFrom(ctx, g.users, uid, token, purpose)
}

// VerifyFrom checks a link, loading the user from users. Callers inside a
// transaction pass the transaction-bound repository. Any mismatch returns
// common.ErrInvalidToken; storage failures return common.ErrorInternal.
func (g *Generator) VerifyFrom(ctx context.Context, users UserGetter, uid, token string, purpose Purpose) (*models.User, error) {
	if _, ok := g.validity[purpose]; !ok || token == "" {
		return nil, common.ErrInvalidToken
	}

	id, err := DecodeUID(uid)
	if err != nil {
		return nil, err
	}

	u, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, common.ErrorInternal
	}

	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		return g.key(u, purpose), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(u.ID),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !parsed.Valid || c.Purpose != purpose {
		return nil, common.ErrInvalidToken
	}

	return u, nil
}
