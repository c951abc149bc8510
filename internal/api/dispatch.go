// Package api exposes the catalog operations over two transports: an MCP
// stdio server for agent clients and a bearer-authenticated HTTP API. Both
// surfaces share one argument-map dispatcher so a tool behaves identically
// regardless of transport.
package api

import (
	"fmt"
	"log/slog"

	"github.com/hmurata/crambooks/internal/books"
	"github.com/hmurata/crambooks/internal/response"
	"github.com/hmurata/crambooks/internal/students"
)

// Deps holds the handlers behind the tool surface.
type Deps struct {
	Books    *books.Handler
	Students *students.Handler
	Log      *slog.Logger
}

// Dispatch routes one tool call to its handler. The second return value is
// false when the tool name is unknown.
func Dispatch(deps Deps, tool string, args map[string]any) (response.Response, bool) {
	switch tool {
	case "books_find":
		return deps.Books.Find(strArg(args, "query"), intArg(args, "limit")), true
	case "books_get":
		if ids := strSliceArg(args, "book_ids"); len(ids) > 0 {
			return deps.Books.GetMultiple(ids), true
		}
		return deps.Books.Get(strArg(args, "book_id")), true
	case "books_list":
		return deps.Books.List(intArg(args, "limit")), true
	case "books_filter":
		return deps.Books.Filter(strMapArg(args, "where"), strMapArg(args, "contains"), intArgDefault(args, "limit", defaultFilterLimit)), true
	case "books_create":
		return deps.Books.Create(books.CreateParams{
			Title:       strArg(args, "title"),
			Subject:     strArg(args, "subject"),
			UnitLoad:    floatPtrArg(args, "unit_load"),
			MonthlyGoal: strArg(args, "monthly_goal"),
			Chapters:    chaptersArg(args, "chapters"),
			IDPrefix:    strArg(args, "id_prefix"),
		}), true
	case "books_update":
		token := strArg(args, "confirm_token")
		updates := anyMapArg(args, "updates")
		if token == "" && len(updates) == 0 {
			return response.Fail("books.update", response.CodeBadRequest, "updates is required for preview"), true
		}
		return deps.Books.Update(strArg(args, "book_id"), updates, token), true
	case "books_delete":
		return deps.Books.Delete(strArg(args, "book_id"), strArg(args, "confirm_token")), true

	case "students_list":
		return deps.Students.List(intArg(args, "limit"), boolArg(args, "include_all")), true
	case "students_find":
		return deps.Students.Find(strArg(args, "query"), intArg(args, "limit"), boolArg(args, "include_all")), true
	case "students_get":
		if ids := strSliceArg(args, "student_ids"); len(ids) > 0 {
			return deps.Students.GetMultiple(ids), true
		}
		return deps.Students.Get(strArg(args, "student_id")), true
	case "students_filter":
		return deps.Students.Filter(strMapArg(args, "where"), strMapArg(args, "contains"), intArg(args, "limit"), boolArg(args, "include_all")), true
	case "students_create":
		return deps.Students.Create(strMapArg(args, "record"), strArg(args, "id_prefix")), true
	case "students_update":
		token := strArg(args, "confirm_token")
		updates := strMapArg(args, "updates")
		if token == "" && len(updates) == 0 {
			return response.Fail("students.update", response.CodeBadRequest, "updates is required for preview"), true
		}
		return deps.Students.Update(strArg(args, "student_id"), updates, token), true
	case "students_delete":
		return deps.Students.Delete(strArg(args, "student_id"), strArg(args, "confirm_token")), true
	}
	return response.Response{}, false
}

// --- argument extraction ---
//
// Arguments arrive as decoded JSON, so values are string/float64/bool/
// []any/map[string]any. Extraction is lenient: a missing or mistyped value
// degrades to the zero form and the handler's own validation reports it.

func strArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// defaultFilterLimit caps books_filter results when the caller does not
// pass a limit. An explicit null disables the cap.
const defaultFilterLimit = 50

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func intArgDefault(args map[string]any, key string, def int) int {
	if _, ok := args[key]; !ok {
		return def
	}
	return intArg(args, key)
}

func floatPtrArg(args map[string]any, key string) *float64 {
	switch v := args[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

func strSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func strMapArg(args map[string]any, key string) map[string]string {
	raw, ok := args[key].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k := range raw {
		out[k] = strArg(raw, k)
	}
	return out
}

func anyMapArg(args map[string]any, key string) map[string]any {
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	return raw
}

func chaptersArg(args map[string]any, key string) []books.ChapterInput {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	chapters := make([]books.ChapterInput, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ch := books.ChapterInput{
			Title:     strArg(m, "title"),
			Numbering: strArg(m, "numbering"),
		}
		if rng, ok := m["range"].(map[string]any); ok {
			ch.Start = floatPtrArg(rng, "start")
			ch.End = floatPtrArg(rng, "end")
		}
		chapters = append(chapters, ch)
	}
	return chapters
}
