package api

import (
	"testing"

	"github.com/hmurata/crambooks/internal/response"
)

func TestDispatchUnknownTool(t *testing.T) {
	deps := newTestDeps(t)
	if _, known := Dispatch(deps, "planner_plan_set", nil); known {
		t.Fatal("unknown tool reported as known")
	}
}

func TestDispatchUpdateRequiresUpdatesForPreview(t *testing.T) {
	deps := newTestDeps(t)

	resp, known := Dispatch(deps, "books_update", map[string]any{"book_id": "gMB001"})
	if !known {
		t.Fatal("books_update not dispatched")
	}
	if resp.OK || resp.Error.Code != response.CodeBadRequest {
		t.Fatalf("envelope = %+v", resp)
	}

	resp, _ = Dispatch(deps, "students_update", map[string]any{"student_id": "gs001"})
	if resp.OK || resp.Error.Code != response.CodeBadRequest {
		t.Fatalf("envelope = %+v", resp)
	}
}

func TestDispatchGetPrefersBatch(t *testing.T) {
	deps := newTestDeps(t)

	resp, _ := Dispatch(deps, "books_get", map[string]any{
		"book_ids": []any{"gMB001", "gEN001"},
	})
	if !resp.OK {
		t.Fatalf("envelope = %+v", resp)
	}
	if _, ok := resp.Data["books"]; !ok {
		t.Fatalf("batch get should return books list: %+v", resp.Data)
	}
}

func TestDispatchCreateWithChapters(t *testing.T) {
	deps := newTestDeps(t)

	resp, _ := Dispatch(deps, "books_create", map[string]any{
		"title":   "物理のエッセンス",
		"subject": "物理",
		"chapters": []any{
			map[string]any{"title": "力学", "range": map[string]any{"start": float64(1), "end": float64(40)}},
			map[string]any{"title": "熱", "range": map[string]any{"start": float64(41)}},
		},
	})
	if !resp.OK {
		t.Fatalf("envelope = %+v", resp)
	}
	if id := resp.Data["id"].(string); id != "gPP001" {
		t.Fatalf("id = %q, want gPP001", id)
	}
	if rows := resp.Data["created_rows"].(int); rows != 2 {
		t.Fatalf("created_rows = %d, want 2", rows)
	}
}

func TestDispatchStudentsListActiveOnly(t *testing.T) {
	deps := newTestDeps(t)

	resp, _ := Dispatch(deps, "students_list", nil)
	if count := resp.Data["count"].(int); count != 1 {
		t.Fatalf("default count = %d, want 1", count)
	}

	resp, _ = Dispatch(deps, "students_list", map[string]any{"include_all": true})
	if count := resp.Data["count"].(int); count != 2 {
		t.Fatalf("include_all count = %d, want 2", count)
	}
}

func TestDispatchStudentsFilterActiveOnly(t *testing.T) {
	deps := newTestDeps(t)

	resp, _ := Dispatch(deps, "students_filter", map[string]any{
		"where": map[string]any{"学年": "高1"},
	})
	if count := resp.Data["count"].(int); count != 0 {
		t.Fatalf("default count = %d, want 0", count)
	}

	resp, _ = Dispatch(deps, "students_filter", map[string]any{
		"where":       map[string]any{"学年": "高1"},
		"include_all": true,
	})
	if count := resp.Data["count"].(int); count != 1 {
		t.Fatalf("include_all count = %d, want 1", count)
	}
}

func TestDispatchBooksFilterDefaultLimit(t *testing.T) {
	deps := newTestDeps(t)

	resp, _ := Dispatch(deps, "books_filter", map[string]any{})
	if limit := resp.Data["limit"].(int); limit != 50 {
		t.Fatalf("limit = %v, want 50", limit)
	}

	// An explicit null limit disables the cap.
	resp, _ = Dispatch(deps, "books_filter", map[string]any{"limit": nil})
	if resp.Data["limit"] != nil {
		t.Fatalf("limit = %v, want nil", resp.Data["limit"])
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"s":    "text",
		"n":    float64(7),
		"arr":  []any{"a", "b", ""},
		"obj":  map[string]any{"k": "v", "num": float64(3)},
		"none": nil,
	}

	if got := strArg(args, "s"); got != "text" {
		t.Errorf("strArg = %q", got)
	}
	if got := strArg(args, "none"); got != "" {
		t.Errorf("strArg(nil) = %q", got)
	}
	if got := strArg(args, "missing"); got != "" {
		t.Errorf("strArg(missing) = %q", got)
	}
	if got := intArg(args, "n"); got != 7 {
		t.Errorf("intArg = %d", got)
	}
	if got := intArg(args, "s"); got != 0 {
		t.Errorf("intArg(mistyped) = %d", got)
	}
	if got := intArgDefault(args, "missing", 50); got != 50 {
		t.Errorf("intArgDefault(missing) = %d", got)
	}
	if got := intArgDefault(args, "none", 50); got != 0 {
		t.Errorf("intArgDefault(null) = %d", got)
	}
	if boolArg(args, "missing") {
		t.Error("boolArg(missing) = true")
	}
	if got := strSliceArg(args, "arr"); len(got) != 2 {
		t.Errorf("strSliceArg = %v", got)
	}
	m := strMapArg(args, "obj")
	if m["k"] != "v" || m["num"] != "3" {
		t.Errorf("strMapArg = %v", m)
	}
	if f := floatPtrArg(args, "n"); f == nil || *f != 7 {
		t.Errorf("floatPtrArg = %v", f)
	}
	if f := floatPtrArg(args, "missing"); f != nil {
		t.Errorf("floatPtrArg(missing) = %v", f)
	}
}
