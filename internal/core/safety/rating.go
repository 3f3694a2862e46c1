package safety

import (
	"fmt"
	"strings"
)

// Rating 資料庫中的安全評級
type Rating int

const (
	RatingSafe Rating = iota
	RatingCaution
	RatingToxic

	numRatings
)

var ratingNames = [...]string{
	RatingSafe:    "safe",
	RatingCaution: "caution",
	RatingToxic:   "toxic",
}

// ratingLevels 評級到安全等級的唯一對照表
var ratingLevels = [...]Level{
	RatingSafe:    LevelSafe,
	RatingCaution: LevelCaution,
	RatingToxic:   LevelDangerous,
}

// 新增評級而未補齊對照表時編譯失敗
func _() {
	var x [1]struct{}
	_ = x[len(ratingNames)-int(numRatings)]
	_ = x[len(ratingLevels)-int(numRatings)]
}

// AllRatings 所有評級
func AllRatings() []Rating {
	out := make([]Rating, 0, numRatings)
	for r := Rating(0); r < numRatings; r++ {
		out = append(out, r)
	}
	return out
}

// ParseRating 解析資料庫中的評級字串
func ParseRating(s string) (Rating, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for r, name := range ratingNames {
		if name == v {
			return Rating(r), nil
		}
	}
	return 0, fmt.Errorf("unknown safety rating %q", s)
}

// String 實現 fmt.Stringer
func (r Rating) String() string {
	if r < 0 || r >= numRatings {
		return fmt.Sprintf("Rating(%d)", int(r))
	}
	return ratingNames[r]
}

// Level 轉換為統一的安全等級
func (r Rating) Level() Level {
	if r < 0 || r >= numRatings {
		return LevelUnknown
	}
	return ratingLevels[r]
}

// MarshalText 讓評級以字串序列化
func (r Rating) MarshalText() ([]byte, error) {
	if r < 0 || r >= numRatings {
		return nil, fmt.Errorf("invalid rating %d", int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText 從字串解析評級（JSON 與 YAML 皆使用）
func (r *Rating) UnmarshalText(text []byte) error {
	parsed, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
