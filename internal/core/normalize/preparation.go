package normalize

import (
	"regexp"
	"strings"
)

// PreparationState 食物的處理狀態
type PreparationState string

const (
	StateFresh  PreparationState = "fresh"
	StateFrozen PreparationState = "frozen"
	StateRaw    PreparationState = "raw"
	StateCooked PreparationState = "cooked"
	StateDried  PreparationState = "dried"
)

// PreparationResult 處理狀態偵測結果
type PreparationResult struct {
	State       PreparationState `json:"state"`
	CleanedName string           `json:"cleanedName"`
}

type preparationGroup struct {
	state   PreparationState
	pattern *regexp.Regexp
}

// 依宣告順序比對，第一個命中的群組勝出
var preparationGroups = []preparationGroup{
	{StateFrozen, tokenPattern(
		"frozen",
		"congelado", "congelada", "congelados", "congeladas",
		"surgelé", "surgelée", "congelé", "congelée",
		"gefroren", "gefrorene", "tiefgefroren", "tiefgekühlt",
		"congelato", "congelata",
		"مجمد", "مجمدة",
	)},
	{StateRaw, tokenPattern(
		"raw", "uncooked",
		"crudo", "cruda", "crudos", "crudas",
		"cru", "crue", "crus",
		"roh", "rohe", "rohes", "roher",
		"نيء", "نيئ", "ني",
	)},
	{StateCooked, tokenPattern(
		"cooked", "boiled", "baked", "grilled", "roasted", "fried", "steamed",
		"cocido", "cocida", "cocinado", "cocinada", "hervido", "hervida", "asado", "asada",
		"cuit", "cuite", "cuits", "bouilli",
		"gekocht", "gekochte", "gekochtes", "gebraten",
		"cotto", "cotta",
		"مطبوخ", "مطبوخة", "مسلوق", "مشوي",
	)},
	{StateDried, tokenPattern(
		"dried", "dehydrated", "freeze-dried",
		"seco", "seca", "secos", "secas", "deshidratado", "deshidratada",
		"séché", "séchée", "sec", "sèche",
		"getrocknet", "getrocknete",
		"essiccato", "secco",
		"مجفف", "مجففة",
	)},
}

// tokenPattern 以空白或字串邊界作為分隔，regexp 的 \b 不支援非 ASCII 字母
func tokenPattern(tokens ...string) *regexp.Regexp {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)(?:^|\s)(` + strings.Join(quoted, "|") + `)(?:\s|$)`)
}

// DetectPreparationState 偵測查詢中的處理狀態並移除對應詞彙
//
// 移除後若名稱為空（例如只輸入 "frozen"），視為 fresh 並保留原查詢。
func DetectPreparationState(query string) PreparationResult {
	trimmed := strings.TrimSpace(query)

	for _, g := range preparationGroups {
		loc := g.pattern.FindStringSubmatchIndex(trimmed)
		if loc == nil {
			continue
		}
		// loc[2]:loc[3] 為命中的詞彙
		cleaned := trimmed[:loc[2]] + " " + trimmed[loc[3]:]
		cleaned = strings.Join(strings.Fields(cleaned), " ")
		if cleaned == "" {
			break
		}
		return PreparationResult{State: g.state, CleanedName: cleaned}
	}

	return PreparationResult{State: StateFresh, CleanedName: trimmed}
}
