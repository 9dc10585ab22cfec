package security

import (
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes はbcryptが受け付けるパスワードの最大バイト数。
const MaxPasswordBytes = 72

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
// 平文パスワードをログや永続化に渡してはならない。
type PasswordHasher interface {
	// Hash はパスワードのbcryptハッシュを返す。
	Hash(password string) (string, error)
	// Compare はハッシュとパスワードを定数時間で照合する。一致しない場合はエラーを返す。
	Compare(hash, password string) error
}

// bcryptHasher はPasswordHasherのbcrypt実装。
type bcryptHasher struct {
	cost int
}

// NewPasswordHasher は指定コストのPasswordHasherを返す。
// コストはbcryptの有効範囲に丸める。
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &bcryptHasher{cost: cost}
}

// Hash はパスワードのbcryptハッシュを返す。
// 72バイトを超えるパスワードはbcrypt.ErrPasswordTooLongになる。
func (h *bcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare はハッシュとパスワードを照合する。
// ハッシュが空（OAuth専用アカウント）の場合は常に不一致になる。
func (h *bcryptHasher) Compare(hash, password string) error {
	if hash == "" {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
