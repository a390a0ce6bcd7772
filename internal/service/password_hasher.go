package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher genera y verifica hashes de contraseñas.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(plain, hash string) (bool, error)
}

const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

// NewPasswordHasher devuelve un hasher que genera hashes con el algoritmo
// indicado y verifica hashes de cualquiera de los algoritmos soportados.
func NewPasswordHasher(algo string) (PasswordHasher, error) {
	var primary PasswordHasher
	switch strings.ToLower(strings.TrimSpace(algo)) {
	case "", HasherBcrypt:
		primary = BcryptHasher{Cost: bcrypt.DefaultCost}
	case HasherArgon2id:
		primary = Argon2idHasher{Params: argon2id.DefaultParams}
	default:
		return nil, fmt.Errorf("unknown password hasher %q", algo)
	}
	return multiHasher{primary: primary}, nil
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h BcryptHasher) Compare(plain, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

type Argon2idHasher struct {
	Params *argon2id.Params
}

func (h Argon2idHasher) Hash(plain string) (string, error) {
	params := h.Params
	if params == nil {
		params = argon2id.DefaultParams
	}
	return argon2id.CreateHash(plain, params)
}

func (h Argon2idHasher) Compare(plain, hash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(plain, hash)
}

type multiHasher struct {
	primary PasswordHasher
}

func (h multiHasher) Hash(plain string) (string, error) {
	return h.primary.Hash(plain)
}

func (h multiHasher) Compare(plain, hash string) (bool, error) {
	switch {
	case hash == "":
		return false, nil
	case strings.HasPrefix(hash, "$argon2id$"):
		return Argon2idHasher{}.Compare(plain, hash)
	case strings.HasPrefix(hash, "$2"):
		return BcryptHasher{}.Compare(plain, hash)
	default:
		return false, fmt.Errorf("unrecognized password hash format")
	}
}
