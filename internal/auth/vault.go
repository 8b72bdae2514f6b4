package auth

import (
	"context"
	"fmt"

	"github.com/dpolishuk/coderag/internal/errs"
)

// Vault hands out the plaintext access token of a stored user.
type Vault struct {
	users  UserStore
	cipher *Cipher
}

func NewVault(users UserStore, cipher *Cipher) *Vault {
	return &Vault{users: users, cipher: cipher}
}

func (v *Vault) Token(ctx context.Context, userID string) (string, error) {
	user, err := v.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.EncryptedToken == "" {
		return "", fmt.Errorf("user %s has no stored token: %w", userID, errs.ErrNotAuthorized)
	}
	token, err := v.cipher.Open(user.EncryptedToken)
	if err != nil {
		return "", fmt.Errorf("user %s: %v: %w", userID, err, errs.ErrNotAuthorized)
	}
	return token, nil
}
