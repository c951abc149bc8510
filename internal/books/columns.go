package books

import (
	"strconv"
	"strings"

	"github.com/hmurata/crambooks/internal/rowstore"
)

// columnSpec maps logical field names to header candidates. Sheets in the
// wild disagree on header wording, so each field lists every known variant
// in preference order.
var columnSpec = map[string][]string{
	"id":         {"参考書ID", "ID", "id"},
	"title":      {"参考書名", "タイトル", "書名", "title"},
	"subject":    {"教科", "科目", "subject"},
	"goal":       {"月間目標", "goal"},
	"unit":       {"単位当たり処理量", "単位処理量", "unit_load"},
	"chap_idx":   {"章立て"},
	"chap_name":  {"章の名前", "章名"},
	"chap_begin": {"章のはじめ", "開始", "begin", "start"},
	"chap_end":   {"章の終わり", "終了", "end"},
	"numbering":  {"番号の数え方", "番号", "numbering"},
	"book_type":  {"参考書のタイプ", "book_type"},
	"quiz_type":  {"確認テストのタイプ", "quiz_type"},
	"quiz_id":    {"確認テストID", "quiz_id"},
}

// subjectKeys are the subject names the search recognizes inside a query.
var subjectKeys = []string{
	"現代文", "古文", "漢文", "英語", "数学",
	"化学", "物理", "生物", "日本史", "世界史", "地理",
}

// resolveColumns maps every logical field to its column index in the header
// row, -1 when the sheet has no matching header.
func resolveColumns(headers []string) map[string]int {
	idx := make(map[string]int, len(columnSpec))
	for field, candidates := range columnSpec {
		idx[field] = rowstore.PickColumn(headers, candidates...)
	}
	return idx
}

// numberOrNil parses a cell as a number. Empty or non-numeric cells come
// back nil.
func numberOrNil(cell string) *float64 {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
