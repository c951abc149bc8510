package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hmurata/crambooks/internal/books"
	"github.com/hmurata/crambooks/internal/response"
	"github.com/hmurata/crambooks/internal/rowstore"
	"github.com/hmurata/crambooks/internal/staging"
	"github.com/hmurata/crambooks/internal/students"
)

const testToken = "test-token"

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	store, err := rowstore.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	err = store.SeedSheet("参考書マスター", [][]string{
		{"参考書ID", "参考書名", "教科", "月間目標", "単位当たり処理量", "章立て", "章の名前", "章のはじめ", "章の終わり", "番号の数え方", "参考書のタイプ", "確認テストのタイプ", "確認テストID"},
		{"gMB001", "青チャート IA", "数学", "1時間", "4", "1", "二次関数", "1", "30", "例題", "", "", ""},
		{"gEN001", "速読英単語", "英語", "", "", "", "", "", "", "", "", "", ""},
	})
	if err != nil {
		t.Fatalf("seeding books: %v", err)
	}
	err = store.SeedSheet("生徒一覧", [][]string{
		{"", "名前", "学年", "Status", "スプレッドシート", "スピードプランナーID", "ドキュメント", "タグ"},
		{"gs001", "田中太郎", "高2", "在塾", "", "", "", ""},
		{"gs002", "鈴木一", "高1", "退塾", "", "", "", ""},
	})
	if err != nil {
		t.Fatalf("seeding students: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := staging.NewCache(0)
	return Deps{
		Books:    books.NewHandler(store, "参考書マスター", cache, log),
		Students: students.NewHandler(store, "生徒一覧", cache, log),
		Log:      log,
	}
}

func callTool(t *testing.T, h http.Handler, tool string, args map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshaling args: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/tools/"+tool, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding envelope: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

func TestHealthIsOpen(t *testing.T) {
	h := NewHTTPHandler(newTestDeps(t), testToken)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestToolsRequireAuth(t *testing.T) {
	h := NewHTTPHandler(newTestDeps(t), testToken)

	req := httptest.NewRequest(http.MethodPost, "/tools/books_list", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/tools/books_list", bytes.NewReader([]byte("{}")))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", rec.Code)
	}
}

func TestEmptyTokenRejectsAll(t *testing.T) {
	h := NewHTTPHandler(newTestDeps(t), "")
	req := httptest.NewRequest(http.MethodPost, "/tools/books_list", bytes.NewReader([]byte("{}")))
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestUnknownTool(t *testing.T) {
	h := NewHTTPHandler(newTestDeps(t), testToken)
	rec := callTool(t, h, "books_explode", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestBooksListOverHTTP(t *testing.T) {
	h := NewHTTPHandler(newTestDeps(t), testToken)
	rec := callTool(t, h, "books_list", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if !resp.OK || resp.Op != "books.list" {
		t.Fatalf("envelope = %+v", resp)
	}
	if count := resp.Data["count"].(float64); count != 2 {
		t.Fatalf("count = %v, want 2", count)
	}
}

func TestBooksFindOverHTTP(t *testing.T) {
	h := NewHTTPHandler(newTestDeps(t), testToken)
	rec := callTool(t, h, "books_find", map[string]any{"query": "青チャート"})

	resp := decodeEnvelope(t, rec)
	if !resp.OK {
		t.Fatalf("envelope = %+v", resp)
	}
	top := resp.Data["top"].(map[string]any)
	if top["id"] != "gMB001" {
		t.Fatalf("top = %+v", top)
	}
}

func TestFailedOperationKeepsStatus200(t *testing.T) {
	h := NewHTTPHandler(newTestDeps(t), testToken)
	rec := callTool(t, h, "books_get", map[string]any{"book_id": "gXX999"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.OK || resp.Error.Code != response.CodeNotFound {
		t.Fatalf("envelope = %+v", resp)
	}
}

func TestTwoPhaseDeleteOverHTTP(t *testing.T) {
	h := NewHTTPHandler(newTestDeps(t), testToken)

	rec := callTool(t, h, "students_delete", map[string]any{"student_id": "gs001"})
	resp := decodeEnvelope(t, rec)
	if !resp.OK {
		t.Fatalf("preview failed: %+v", resp)
	}
	token := resp.Data["confirm_token"].(string)

	rec = callTool(t, h, "students_delete", map[string]any{"student_id": "gs001", "confirm_token": token})
	resp = decodeEnvelope(t, rec)
	if !resp.OK || resp.Data["deleted"] != true {
		t.Fatalf("confirm failed: %+v", resp)
	}

	rec = callTool(t, h, "students_get", map[string]any{"student_id": "gs001"})
	resp = decodeEnvelope(t, rec)
	if resp.OK || resp.Error.Code != response.CodeNotFound {
		t.Fatalf("student should be gone: %+v", resp)
	}
}

func TestInvalidBody(t *testing.T) {
	h := NewHTTPHandler(newTestDeps(t), testToken)
	req := httptest.NewRequest(http.MethodPost, "/tools/books_list", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
