package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// NormalizeID は受け付け可能な表記（大文字、波括弧、urn:uuid:）のUUIDを
// 小文字ハイフン区切りの正規形に変換する。UUIDとして解釈できない場合はfalseを返す。
// 所有者IDの比較はすべて正規形の文字列で行う。
func NormalizeID(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// NewID は新しいレコードIDを生成する。
func NewID() string {
	return uuid.New().String()
}

// uniqueViolation はPostgreSQLのunique_violationのSQLSTATE。
const uniqueViolation = "23505"

// isUniqueViolation はエラーがユニーク制約違反かを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
