package listing

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number はJSONの数値または数値文字列を受け付ける入力値。
// nullとキーの欠落はSet=falseになり、必須項目の欠落として扱う。
// 解釈できない値はSet=trueかつValue=NaNになり、数値検証で失敗する。
type Number struct {
	Set   bool
	Value float64
}

// Float は数値を返す。
func Float(v float64) Number {
	return Number{Set: true, Value: v}
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}

	n.Set = true
	n.Value = math.NaN()

	switch {
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if v, ok := parseNumeric(s); ok {
			n.Value = v
		}
	default:
		var v json.Number
		if err := json.Unmarshal(data, &v); err != nil {
			return nil
		}
		if f, err := v.Float64(); err == nil {
			n.Value = f
		}
	}
	return nil
}

// parseNumeric は10進表記の数値文字列を解釈する。
// 前後の空白は許容し、"12abc"や"0x10"のような表記は受け付けない。
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789+-.eE", r) {
			return 0, false
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
