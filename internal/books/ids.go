package books

import "strings"

// prefixPair maps a subject/title keyword to a 2-letter id prefix. Order
// matters: longer keys come before their prefixes (数学III before 数学I,
// 数学I before 数学), so lookup scans a slice instead of a map.
type prefixPair struct {
	key    string
	prefix string
}

var prefixTable = []prefixPair{
	{"英語ライティング", "EW"},
	{"英語コミュニケーション", "EC"},
	{"英語", "EN"},
	{"数学III", "M3"},
	{"数学II", "M2"},
	{"数学I", "M1"},
	{"数学A", "MA"},
	{"数学B", "MB"},
	{"数学C", "MC"},
	{"数学", "MA"},
	{"古文", "JG"},
	{"漢文", "JK"},
	{"現代文", "JM"},
	{"国語", "JA"},
	{"物理", "PP"},
	{"化学", "PC"},
	{"生物", "PB"},
	{"地学", "PE"},
	{"日本史", "HJ"},
	{"世界史", "HW"},
	{"地理", "HG"},
	{"政治経済", "HP"},
	{"倫理", "HE"},
	{"現代社会", "HS"},
}

// DecidePrefix picks the id prefix for a new book from its subject and
// title. Unknown subjects get "XX".
func DecidePrefix(subject, title string) string {
	combined := subject + " " + title
	for _, p := range prefixTable {
		if strings.Contains(combined, p.key) {
			return p.prefix
		}
	}
	return "XX"
}
