// Package hasher stores passwords as bcrypt hashes.
package hasher

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/accounts/internal/common"
)

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	NeedsRehash(hash string) bool
	// Dummy burns the same time as Verify for identities that do not exist.
	Dummy(password string)
}

type Bcrypt struct {
	cost  int
	dummy []byte
}

// NewBcrypt returns a hasher with the given cost; out-of-range values fall
// back to bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	secret, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}
	return &Bcrypt{cost: cost, dummy: dummy}, nil
}

func (b *Bcrypt) Cost() int { return b.cost }

func (b *Bcrypt) Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(h), nil
}

func (b *Bcrypt) Verify(password, hash string) bool {
	if hash == "" {
		b.Dummy(password)
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// NeedsRehash reports whether hash was made with a lower cost than the
// configured one. Unparsable hashes need a rehash too.
func (b *Bcrypt) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < b.cost
}

func (b *Bcrypt) Dummy(password string) {
	_ = bcrypt.CompareHashAndPassword(b.dummy, []byte(password))
}
