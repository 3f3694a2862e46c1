// Package normalize 提供食物查詢字串的清理與分類工具。
//
// 所有函式皆為純函式，不做任何 I/O，也不回傳錯誤：對任何輸入都會回傳
// 盡力清理後的結果。
package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxQueryLength 查詢字串最大長度（rune）
const MaxQueryLength = 100

// maxSanitizePasses 清理迭代上限
const maxSanitizePasses = 128

var (
	strictPolicy = bluemonday.StrictPolicy()

	tagPattern          = regexp.MustCompile(`<[^>]*>`)
	eventHandlerPattern = regexp.MustCompile(`(?i)on\w+\s*=`)
	schemePattern       = regexp.MustCompile(`(?i)(javascript|vbscript|data)\s*:`)
	unsafeCharReplacer  = strings.NewReplacer(
		"\x00", "",
		`"`, "",
		`'`, "",
		"`", "",
		`\`, "",
	)
)

// Sanitize 清理原始查詢字串
//
// 移除 HTML 標籤、on*= 事件屬性片段、javascript:/data: 等 URI scheme、null byte
// 與引號/反斜線，合併空白並截斷至 MaxQueryLength。重複套用直到結果不再改變，
// 因此 Sanitize(Sanitize(s)) == Sanitize(s)。
func Sanitize(raw string) string {
	s := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := sanitizePass(s)
		if next == s {
			return s
		}
		s = next
	}
	return s
}

func sanitizePass(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.ReplaceAll(s, "\x00", "")

	// bluemonday 會把剩下的文字 escape，這裡還原成純文字
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	s = tagPattern.ReplaceAllString(s, "")
	s = eventHandlerPattern.ReplaceAllString(s, "")
	s = schemePattern.ReplaceAllString(s, "")
	s = unsafeCharReplacer.Replace(s)

	s = strings.Join(strings.Fields(s), " ")
	return truncateRunes(s, MaxQueryLength)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}

// Validate 檢查查詢字串清理後是否可用
func Validate(raw string) bool {
	s := Sanitize(raw)
	n := utf8.RuneCountInString(s)
	if n < 1 || n > MaxQueryLength {
		return false
	}
	return hasLetter(s)
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// Key 正規化食物名稱（小寫並去除前後空白）
func Key(food string) string {
	return strings.ToLower(strings.TrimSpace(food))
}
