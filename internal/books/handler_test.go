package books

import (
	"io"
	"log/slog"
	"testing"

	"github.com/hmurata/crambooks/internal/response"
	"github.com/hmurata/crambooks/internal/rowstore"
	"github.com/hmurata/crambooks/internal/staging"
)

func testFixture() [][]string {
	return [][]string{
		{"参考書ID", "参考書名", "教科", "月間目標", "単位当たり処理量", "章立て", "章の名前", "章のはじめ", "章の終わり", "番号の数え方", "参考書のタイプ", "確認テストのタイプ", "確認テストID"},
		{"gMB001", "青チャート IA", "数学", "1時間", "4", "1", "二次関数", "1", "30", "例題", "問題集", "選択式", "qz001"},
		{"", "", "", "", "", "2", "図形と計量", "31", "60", "例題", "", "", ""},
		{"gMB002", "基礎問題精講 IIB", "数学", "", "", "", "", "", "", "", "", "", ""},
		{"gEN001", "速読英単語", "英語", "0.5時間", "20", "", "", "", "", "", "単語帳", "", ""},
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := rowstore.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.SeedSheet("参考書マスター", testFixture()); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(store, "参考書マスター", staging.NewCache(0), log)
}

func assertOK(t *testing.T, resp response.Response) map[string]any {
	t.Helper()
	if !resp.OK {
		t.Fatalf("%s failed: %+v", resp.Op, resp.Error)
	}
	return resp.Data
}

func assertCode(t *testing.T, resp response.Response, code string) {
	t.Helper()
	if resp.OK {
		t.Fatalf("%s succeeded, want error %s", resp.Op, code)
	}
	if resp.Error.Code != code {
		t.Fatalf("%s error code = %s, want %s", resp.Op, resp.Error.Code, code)
	}
}

func TestFindRequiresQuery(t *testing.T) {
	h := newTestHandler(t)
	assertCode(t, h.Find("", 10), response.CodeBadRequest)
}

func TestFindByID(t *testing.T) {
	h := newTestHandler(t)
	data := assertOK(t, h.Find("gMB001", 10))

	top, ok := data["top"].(candidate)
	if !ok {
		t.Fatalf("top = %#v", data["top"])
	}
	if top.ID != "gMB001" || top.Score != 1.0 || top.Reason != "exact" {
		t.Fatalf("top = %+v", top)
	}
}

func TestFindByTitle(t *testing.T) {
	h := newTestHandler(t)
	data := assertOK(t, h.Find("青チャート", 10))

	top, ok := data["top"].(candidate)
	if !ok {
		t.Fatalf("top = %#v", data["top"])
	}
	if top.ID != "gMB001" {
		t.Fatalf("top = %+v", top)
	}
	if conf := data["confidence"].(float64); conf <= 0 {
		t.Fatalf("confidence = %v", conf)
	}
}

func TestGetParsesChapters(t *testing.T) {
	h := newTestHandler(t)
	data := assertOK(t, h.Get("gMB001"))

	book, ok := data["book"].(Book)
	if !ok {
		t.Fatalf("book = %#v", data["book"])
	}
	if book.Title != "青チャート IA" || book.Subject != "数学" {
		t.Fatalf("book = %+v", book)
	}
	if book.MonthlyGoal == nil || book.MonthlyGoal.PerDayMinutes == nil || *book.MonthlyGoal.PerDayMinutes != 60 {
		t.Fatalf("monthly_goal = %+v", book.MonthlyGoal)
	}
	if book.UnitLoad == nil || *book.UnitLoad != 4 {
		t.Fatalf("unit_load = %v", book.UnitLoad)
	}

	chapters := book.Structure.Chapters
	if len(chapters) != 2 {
		t.Fatalf("got %d chapters, want 2", len(chapters))
	}
	second := chapters[1]
	if second.Title == nil || *second.Title != "図形と計量" {
		t.Fatalf("chapter 2 = %+v", second)
	}
	if second.Range == nil || *second.Range.Start != 31 || *second.Range.End != 60 {
		t.Fatalf("chapter 2 range = %+v", second.Range)
	}
	if book.Assessment.QuizID != "qz001" {
		t.Fatalf("assessment = %+v", book.Assessment)
	}
}

func TestGetNotFound(t *testing.T) {
	h := newTestHandler(t)
	assertCode(t, h.Get("gXX999"), response.CodeNotFound)
}

func TestGetRequiresID(t *testing.T) {
	h := newTestHandler(t)
	assertCode(t, h.Get(""), response.CodeBadRequest)
}

func TestGetMultiple(t *testing.T) {
	h := newTestHandler(t)
	data := assertOK(t, h.GetMultiple([]string{"gMB001", "gEN001", "gXX999"}))

	books := data["books"].([]Book)
	if len(books) != 2 {
		t.Fatalf("got %d books, want 2", len(books))
	}
	if books[0].ID != "gMB001" || books[1].ID != "gEN001" {
		t.Fatalf("books = %+v", books)
	}
}

func TestGetMultipleRequiresIDs(t *testing.T) {
	h := newTestHandler(t)
	assertCode(t, h.GetMultiple(nil), response.CodeBadRequest)
}

func TestList(t *testing.T) {
	h := newTestHandler(t)
	data := assertOK(t, h.List(0))

	if count := data["count"].(int); count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	data = assertOK(t, h.List(2))
	if count := data["count"].(int); count != 2 {
		t.Fatalf("limited count = %d, want 2", count)
	}
}

func TestFilterWhere(t *testing.T) {
	h := newTestHandler(t)
	data := assertOK(t, h.Filter(map[string]string{"教科": "数学"}, nil, 0))

	books := data["books"].([]Book)
	if len(books) != 2 {
		t.Fatalf("got %d books, want 2", len(books))
	}
}

func TestFilterContains(t *testing.T) {
	h := newTestHandler(t)
	data := assertOK(t, h.Filter(nil, map[string]string{"参考書名": "チャート"}, 0))

	books := data["books"].([]Book)
	if len(books) != 1 || books[0].ID != "gMB001" {
		t.Fatalf("books = %+v", books)
	}
}

func TestFilterUnknownColumn(t *testing.T) {
	h := newTestHandler(t)
	data := assertOK(t, h.Filter(map[string]string{"存在しない列": "x"}, nil, 0))

	if count := data["count"].(int); count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func TestCreateGeneratesID(t *testing.T) {
	h := newTestHandler(t)
	start := 1.0
	end := 50.0
	data := assertOK(t, h.Create(CreateParams{
		Title:       "スタンダード数学演習",
		Subject:     "数学",
		MonthlyGoal: "2時間",
		Chapters: []ChapterInput{
			{Title: "数と式", Start: &start, End: &end},
			{Title: "三角比", Start: &end, End: nil},
		},
	}))

	if id := data["id"].(string); id != "gMA001" {
		t.Fatalf("id = %q, want gMA001", id)
	}
	if rows := data["created_rows"].(int); rows != 2 {
		t.Fatalf("created_rows = %d, want 2", rows)
	}

	got := assertOK(t, h.Get("gMA001"))
	book := got["book"].(Book)
	if len(book.Structure.Chapters) != 2 {
		t.Fatalf("chapters = %+v", book.Structure.Chapters)
	}
}

func TestCreateSequencesFromExisting(t *testing.T) {
	h := newTestHandler(t)
	data := assertOK(t, h.Create(CreateParams{Title: "標準問題精講", Subject: "数学B"}))

	if id := data["id"].(string); id != "gMB003" {
		t.Fatalf("id = %q, want gMB003", id)
	}
}

func TestCreateRequiresTitleAndSubject(t *testing.T) {
	h := newTestHandler(t)
	assertCode(t, h.Create(CreateParams{Title: "x"}), response.CodeBadRequest)
	assertCode(t, h.Create(CreateParams{Subject: "数学"}), response.CodeBadRequest)
}

func TestUpdateTwoPhase(t *testing.T) {
	h := newTestHandler(t)

	data := assertOK(t, h.Update("gMB001", map[string]any{"title": "新課程 青チャート IA"}, ""))
	if !data["requires_confirmation"].(bool) {
		t.Fatal("preview should require confirmation")
	}
	preview := data["preview"].(map[string]any)
	changes := preview["meta_changes"].(map[string]any)
	if _, ok := changes["title"]; !ok {
		t.Fatalf("meta_changes = %+v", changes)
	}
	token := data["confirm_token"].(string)

	data = assertOK(t, h.Update("gMB001", nil, token))
	if updated := data["updated"].(bool); !updated {
		t.Fatalf("data = %+v", data)
	}

	got := assertOK(t, h.Get("gMB001"))
	if title := got["book"].(Book).Title; title != "新課程 青チャート IA" {
		t.Fatalf("title after update = %q", title)
	}
}

func TestUpdatePreviewSkipsUnchangedFields(t *testing.T) {
	h := newTestHandler(t)
	data := assertOK(t, h.Update("gMB001", map[string]any{"subject": "数学"}, ""))
	changes := data["preview"].(map[string]any)["meta_changes"].(map[string]any)
	if len(changes) != 0 {
		t.Fatalf("meta_changes = %+v, want empty", changes)
	}
}

func TestUpdateNotFound(t *testing.T) {
	h := newTestHandler(t)
	assertCode(t, h.Update("gXX999", map[string]any{"title": "x"}, ""), response.CodeNotFound)
}

func TestUpdateConfirmExpired(t *testing.T) {
	h := newTestHandler(t)
	assertCode(t, h.Update("gMB001", nil, "no-such-token"), response.CodeConfirmExpired)
}

func TestUpdateConfirmMismatchBurnsToken(t *testing.T) {
	h := newTestHandler(t)
	data := assertOK(t, h.Update("gMB001", map[string]any{"title": "x"}, ""))
	token := data["confirm_token"].(string)

	assertCode(t, h.Update("gMB002", nil, token), response.CodeConfirmMismatch)
	assertCode(t, h.Update("gMB001", nil, token), response.CodeConfirmExpired)
}

func TestDeleteTwoPhase(t *testing.T) {
	h := newTestHandler(t)

	data := assertOK(t, h.Delete("gMB001", ""))
	preview := data["preview"].(map[string]any)
	if rows := preview["delete_rows"].(int); rows != 2 {
		t.Fatalf("delete_rows = %d, want 2", rows)
	}
	token := data["confirm_token"].(string)

	data = assertOK(t, h.Delete("gMB001", token))
	if deleted := data["deleted_rows"].(int); deleted != 2 {
		t.Fatalf("deleted_rows = %d, want 2", deleted)
	}

	assertCode(t, h.Get("gMB001"), response.CodeNotFound)
	assertOK(t, h.Get("gMB002"))
	assertOK(t, h.Get("gEN001"))
}

func TestDeleteLastBlock(t *testing.T) {
	h := newTestHandler(t)

	data := assertOK(t, h.Delete("gEN001", ""))
	token := data["confirm_token"].(string)
	data = assertOK(t, h.Delete("gEN001", token))
	if deleted := data["deleted_rows"].(int); deleted != 1 {
		t.Fatalf("deleted_rows = %d, want 1", deleted)
	}
	assertCode(t, h.Get("gEN001"), response.CodeNotFound)
}
