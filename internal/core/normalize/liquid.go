package normalize

import "strings"

// 完整比對用的液體詞彙
var liquidVocabulary = map[string]struct{}{
	"water": {}, "milk": {}, "coffee": {}, "tea": {}, "juice": {}, "beer": {}, "wine": {},
	"soda": {}, "broth": {}, "stock": {}, "soup": {}, "lemonade": {}, "kombucha": {},
	"smoothie": {}, "coconut water": {}, "coconut milk": {}, "almond milk": {}, "oat milk": {},
	"soy milk": {}, "goat milk": {}, "orange juice": {}, "apple juice": {}, "bone broth": {},
	"chicken broth": {}, "energy drink": {}, "sports drink": {}, "vodka": {}, "whiskey": {},
	"liquor": {}, "alcohol": {}, "cola": {}, "espresso": {}, "latte": {}, "cappuccino": {},
	"hot chocolate": {}, "eggnog": {}, "cider": {}, "champagne": {}, "rum": {}, "sake": {},
	"buttermilk": {}, "kefir": {}, "gatorade": {}, "green tea": {}, "herbal tea": {},
}

// 子字串比對用的關鍵字，用來涵蓋複數與變化形
// "tea" 與 "water" 不在此列，否則 steak、watermelon 會被誤判
var liquidKeywords = []string{
	"milk", "juice", "broth", "soda", "drink", "wine", "beer", "coffee", "smoothie", "lemonade", "liquor",
}

// IsLiquid 判斷食物是否為液體，用於選擇「吃」或「喝」
func IsLiquid(foodName string) bool {
	name := Key(foodName)
	if name == "" {
		return false
	}
	if _, ok := liquidVocabulary[name]; ok {
		return true
	}
	for _, kw := range liquidKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// consumeVerbs 各語言的 [吃, 喝]
var consumeVerbs = map[string][2]string{
	"en": {"eat", "drink"},
	"es": {"comer", "beber"},
	"fr": {"manger", "boire"},
	"de": {"fressen", "trinken"},
	"it": {"mangiare", "bere"},
	"pt": {"comer", "beber"},
	"ar": {"أكل", "شرب"},
	"zh": {"吃", "喝"},
	"ja": {"食べる", "飲む"},
}

// ConsumeVerb 依液體判斷與語言回傳動詞
func ConsumeVerb(foodName, lang string) string {
	verbs := consumeVerbs[NormalizeLanguage(lang)]
	if IsLiquid(foodName) {
		return verbs[1]
	}
	return verbs[0]
}

// DefaultLanguage 預設語言
const DefaultLanguage = "en"

// languageNames 支援的語言，值為提示詞中使用的語言名稱
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ar": "Arabic",
	"zh": "Chinese",
	"ja": "Japanese",
}

// NormalizeLanguage 正規化語言代碼（es-MX → es），不支援時回傳 en
func NormalizeLanguage(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	if _, ok := languageNames[l]; ok {
		return l
	}
	return DefaultLanguage
}

// LanguageName 回傳語言代碼對應的英文名稱
func LanguageName(lang string) string {
	return languageNames[NormalizeLanguage(lang)]
}
