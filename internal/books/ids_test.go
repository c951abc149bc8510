package books

import "testing"

func TestDecidePrefix(t *testing.T) {
	tests := []struct {
		subject string
		title   string
		want    string
	}{
		{"数学", "青チャート", "MA"},
		{"数学B", "基礎問題精講", "MB"},
		{"英語", "速読英単語", "EN"},
		{"英語ライティング", "和文英訳", "EW"},
		{"現代文", "入試現代文へのアクセス", "JM"},
		{"物理", "物理のエッセンス", "PP"},
		{"音楽", "楽典", "XX"},
	}
	for _, tt := range tests {
		if got := DecidePrefix(tt.subject, tt.title); got != tt.want {
			t.Errorf("DecidePrefix(%q, %q) = %q, want %q", tt.subject, tt.title, got, tt.want)
		}
	}
}

func TestDecidePrefixSpecificBeforeGeneric(t *testing.T) {
	// 数学III must resolve before the bare 数学 fallback.
	if got := DecidePrefix("数学III", "微分積分"); got != "M3" {
		t.Fatalf("DecidePrefix = %q, want M3", got)
	}
}
