package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates an MCP server with every catalog tool registered.
// Tool results are the JSON response envelope; failed operations set the
// IsError flag so agent clients surface them properly.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"crambooks",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("crambooks is the reference-book catalog and student roster for cram-school study planning. Destructive operations are two-phase: call without confirm_token for a preview, then echo the token back to apply."),
		server.WithRecovery(),
	)

	// Books
	s.AddTool(
		mcp.NewTool("books_find",
			mcp.WithDescription("Search the reference-book catalog by title, subject, or id. Returns ranked candidates with a confidence estimate."),
			mcp.WithString("query", mcp.Description("Search query (Japanese or English)"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of candidates (default 20)")),
		),
		mcpDispatch(deps, "books_find"),
	)
	s.AddTool(
		mcp.NewTool("books_get",
			mcp.WithDescription("Get full details of one or more books, chapters included."),
			mcp.WithString("book_id", mcp.Description("Book id (e.g. gMB017)")),
			mcp.WithArray("book_ids", mcp.Description("Multiple book ids")),
		),
		mcpDispatch(deps, "books_get"),
	)
	s.AddTool(
		mcp.NewTool("books_list",
			mcp.WithDescription("List all books (id, title, subject)."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of books")),
		),
		mcpDispatch(deps, "books_list"),
	)
	s.AddTool(
		mcp.NewTool("books_filter",
			mcp.WithDescription("Filter books by column conditions. Keys are sheet header names."),
			mcp.WithObject("where", mcp.Description("Exact-match conditions (header -> value)")),
			mcp.WithObject("contains", mcp.Description("Substring-match conditions (header -> value)")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of books (default 50; null for unlimited)")),
		),
		mcpDispatch(deps, "books_filter"),
	)
	s.AddTool(
		mcp.NewTool("books_create",
			mcp.WithDescription("Create a new book. The id is generated from the subject prefix table."),
			mcp.WithString("title", mcp.Description("Book title"), mcp.Required()),
			mcp.WithString("subject", mcp.Description("Subject name (e.g. 数学)"), mcp.Required()),
			mcp.WithNumber("unit_load", mcp.Description("Units processed per study unit")),
			mcp.WithString("monthly_goal", mcp.Description("Monthly goal text (e.g. 1時間)")),
			mcp.WithArray("chapters", mcp.Description("Chapters: [{title, range: {start, end}, numbering}]")),
			mcp.WithString("id_prefix", mcp.Description("Override the generated id prefix")),
		),
		mcpDispatch(deps, "books_create"),
	)
	s.AddTool(
		mcp.NewTool("books_update",
			mcp.WithDescription("Update book metadata (two-phase). Without confirm_token, returns a preview and a token; with it, applies the staged changes."),
			mcp.WithString("book_id", mcp.Description("Book id"), mcp.Required()),
			mcp.WithObject("updates", mcp.Description("Fields to change: title, subject, monthly_goal, unit_load")),
			mcp.WithString("confirm_token", mcp.Description("Token from the preview response")),
		),
		mcpDispatch(deps, "books_update"),
	)
	s.AddTool(
		mcp.NewTool("books_delete",
			mcp.WithDescription("Delete a book and its chapter rows (two-phase)."),
			mcp.WithString("book_id", mcp.Description("Book id"), mcp.Required()),
			mcp.WithString("confirm_token", mcp.Description("Token from the preview response")),
		),
		mcpDispatch(deps, "books_delete"),
	)

	// Students
	s.AddTool(
		mcp.NewTool("students_list",
			mcp.WithDescription("List students on the roster. Only active students unless include_all is set."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of students")),
			mcp.WithBoolean("include_all", mcp.Description("Include withdrawn and non-active students")),
		),
		mcpDispatch(deps, "students_list"),
	)
	s.AddTool(
		mcp.NewTool("students_find",
			mcp.WithDescription("Find students by name or id. Searches active students only unless include_all is set."),
			mcp.WithString("query", mcp.Description("Name or id to search for"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of candidates (default 10)")),
			mcp.WithBoolean("include_all", mcp.Description("Search the full roster with scored matching")),
		),
		mcpDispatch(deps, "students_find"),
	)
	s.AddTool(
		mcp.NewTool("students_get",
			mcp.WithDescription("Get one or more students by id."),
			mcp.WithString("student_id", mcp.Description("Student id")),
			mcp.WithArray("student_ids", mcp.Description("Multiple student ids")),
		),
		mcpDispatch(deps, "students_get"),
	)
	s.AddTool(
		mcp.NewTool("students_filter",
			mcp.WithDescription("Filter students by column conditions. Keys are sheet header names. Restricted to active students unless a Status condition is given or include_all is set."),
			mcp.WithObject("where", mcp.Description("Exact-match conditions (header -> value)")),
			mcp.WithObject("contains", mcp.Description("Substring-match conditions (header -> value)")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of students")),
			mcp.WithBoolean("include_all", mcp.Description("Include withdrawn and non-active students")),
		),
		mcpDispatch(deps, "students_filter"),
	)
	s.AddTool(
		mcp.NewTool("students_create",
			mcp.WithDescription("Create a new student row. Record keys are sheet header names."),
			mcp.WithObject("record", mcp.Description("Student fields (header -> value)")),
			mcp.WithString("id_prefix", mcp.Description("Override the default id prefix")),
		),
		mcpDispatch(deps, "students_create"),
	)
	s.AddTool(
		mcp.NewTool("students_update",
			mcp.WithDescription("Update student fields (two-phase). Without confirm_token, returns a preview and a token; with it, applies the staged changes."),
			mcp.WithString("student_id", mcp.Description("Student id"), mcp.Required()),
			mcp.WithObject("updates", mcp.Description("Fields to change (header -> value)")),
			mcp.WithString("confirm_token", mcp.Description("Token from the preview response")),
		),
		mcpDispatch(deps, "students_update"),
	)
	s.AddTool(
		mcp.NewTool("students_delete",
			mcp.WithDescription("Delete a student row (two-phase)."),
			mcp.WithString("student_id", mcp.Description("Student id"), mcp.Required()),
			mcp.WithString("confirm_token", mcp.Description("Token from the preview response")),
		),
		mcpDispatch(deps, "students_delete"),
	)

	return s
}

func mcpDispatch(deps Deps, tool string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		resp, known := Dispatch(deps, tool, args)
		if !known {
			return mcpError(fmt.Sprintf("unknown tool %q", tool)), nil
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		if !resp.OK {
			deps.Log.Warn("tool failed", "tool", tool, "code", resp.Error.Code)
			return mcpError(string(b)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
