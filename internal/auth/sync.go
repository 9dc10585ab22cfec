package auth

import (
	"context"
	"fmt"

	"github.com/hitoshi/estatehub/internal/model"
)

// AccountLookup はメールアドレスでアカウントを引く読み取り専用のインターフェース。
// 見つからない場合はnil, nilを返す。
type AccountLookup interface {
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
}

// Synchronize はClaimsをDBのアカウントと同期した結果を返す。
//
// Emailがあり未同期の場合のみ検索し、見つかればID・名前・画像を上書きする。
// 検索に失敗してもSyncedはtrueになり、Claimsは元の値のまま返る（エラーは記録用に返す）。
// 最後に名前が空ならメールアドレスのローカル部を名前にする。
func Synchronize(ctx context.Context, claims Claims, lookup AccountLookup) (Claims, error) {
	var syncErr error

	if claims.Email != "" && !claims.Synced {
		account, err := lookup.FindByEmail(ctx, model.NormalizeEmail(claims.Email))
		switch {
		case err != nil:
			syncErr = fmt.Errorf("failed to sync session with account: %w", err)
		case account != nil:
			claims.Subject = account.ID
			claims.Name = firstNonEmpty(account.FullName, claims.Name, model.EmailLocalPart(claims.Email))
			claims.Picture = firstNonEmpty(account.ImageURL(), claims.Picture)
		}
		claims.Synced = true
	}

	if claims.Name == "" && claims.Email != "" {
		claims.Name = model.EmailLocalPart(claims.Email)
	}

	return claims, syncErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
