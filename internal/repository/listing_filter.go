package repository

import (
	"fmt"
	"strings"

	"github.com/hitoshi/estatehub/internal/model"
)

// 一覧取得の件数上限
const (
	PublicListLimit = 50
	OwnerListLimit  = 100
)

// ListingFilter は物件一覧の絞り込み条件。
// ゼロ値の項目は条件に含めない。
type ListingFilter struct {
	Category model.Category      // rent/sell以外は無視する
	OwnerID  string              // 正規化前の所有者ID
	Status   model.ListingStatus // 空なら全ステータス
	Limit    int                 // 0以下ならPublicListLimit
}

// listingQuery はListingFilterを変換したSQLと引数。
// empty=trueの場合は一致する行が存在し得ないため、問い合わせ自体を省略できる。
type listingQuery struct {
	sql   string
	args  []any
	empty bool
}

// buildListingQuery はListingFilterをSELECT文に変換する。
// 絞り込み条件の組み立てはこの関数だけが行う。
func buildListingQuery(filter ListingFilter) listingQuery {
	var (
		conds []string
		args  []any
	)

	if filter.Category.Valid() {
		args = append(args, string(filter.Category))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}

	if filter.OwnerID != "" {
		owner, ok := NormalizeID(filter.OwnerID)
		if !ok {
			return listingQuery{empty: true}
		}
		args = append(args, owner)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = PublicListLimit
	}
	args = append(args, limit)

	var b strings.Builder
	b.WriteString(`SELECT ` + listingColumns + ` FROM properties`)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY created_at DESC LIMIT $%d", len(args))

	return listingQuery{sql: b.String(), args: args}
}
