package service

import (
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashea y verifica secretos (passwords y códigos OTP).
// El hash incluye el identificador del algoritmo, así que esquemas viejos siguen verificando.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
	NeedsRehash(hash string) bool
}

const argon2idPrefix = "$argon2id$"

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

type argon2Hasher struct {
	params *argon2id.Params
}

// NewPasswordHasher crea hashes argon2id y acepta bcrypt como esquema legado.
func NewPasswordHasher(params *argon2id.Params) PasswordHasher {
	if params == nil {
		params = argon2id.DefaultParams
	}
	return &argon2Hasher{params: params}
}

func (h *argon2Hasher) Hash(secret string) (string, error) {
	return argon2id.CreateHash(secret, h.params)
}

func (h *argon2Hasher) Verify(secret, hash string) bool {
	switch {
	case strings.HasPrefix(hash, argon2idPrefix):
		ok, err := argon2id.ComparePasswordAndHash(secret, hash)
		return err == nil && ok
	case isBcryptHash(hash):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
	default:
		return false
	}
}

// NeedsRehash es true para hashes válidos de un esquema legado.
func (h *argon2Hasher) NeedsRehash(hash string) bool {
	return isBcryptHash(hash)
}

func isBcryptHash(hash string) bool {
	for _, prefix := range bcryptPrefixes {
		if strings.HasPrefix(hash, prefix) {
			return true
		}
	}
	return false
}
