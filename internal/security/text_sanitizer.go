package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力のプレーンテキスト項目からマークアップを除去する。
// 物件のタイトル・説明・所在地や氏名の保存前に使用される。
type TextSanitizer interface {
	// Sanitize はタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// scriptとstyleは中身ごと除去される。
	Sanitize(raw string) string
}

// maxSanitizePasses は実体参照の多重エンコードを展開する上限回数。
const maxSanitizePasses = 5

// textSanitizer はbluemondayのStrictPolicyを用いたTextSanitizerの実装。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去したプレーンテキストを返す。
// 応答はJSONでありHTMLとして埋め込まないため、エスケープされた実体参照は元の文字に戻す。
// 戻した結果にタグが現れうるので、除去と復元を結果が変わらなくなるまで繰り返す。
// 上限回数で収束しない場合はエスケープしたままの文字列を返す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	text := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			return strings.TrimSpace(next)
		}
		text = next
	}
	return strings.TrimSpace(s.policy.Sanitize(text))
}
