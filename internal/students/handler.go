// Package students implements the student roster operations: lookup by name
// or id, filtering, and two-phase update/delete. Unlike books, a student is
// a single row, so the search is a plain exact/partial match without the
// IDF machinery.
package students

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/hmurata/crambooks/internal/idgen"
	"github.com/hmurata/crambooks/internal/response"
	"github.com/hmurata/crambooks/internal/rowstore"
	"github.com/hmurata/crambooks/internal/staging"
	"github.com/hmurata/crambooks/internal/textnorm"
)

const (
	nsUpdate = "students.upd"
	nsDelete = "students.del"
)

const defaultFindLimit = 10

// activeStatus marks a currently enrolled student. List, Find and Filter
// restrict themselves to active students unless includeAll is set, so
// withdrawn students and staff rows stay out of everyday lookups.
const activeStatus = "在塾"

// columnSpec maps logical field names to header candidates. The roster
// sheet's id column historically has an empty header, hence the "" first
// candidate.
var columnSpec = map[string][]string{
	"id":               {"", "生徒ID", "ID", "id"},
	"name":             {"名前", "氏名", "生徒名", "name"},
	"grade":            {"学年", "grade"},
	"status":           {"Status", "ステータス", "status", "在籍状況"},
	"planner_link":     {"スプレッドシート", "スピードプランナー", "PlannerLink", "プランナーリンク", "スプレッドシートURL"},
	"planner_sheet_id": {"スピードプランナーID", "PlannerSheetId", "planner_sheet_id", "プランナーID"},
	"meeting_doc":      {"ドキュメント", "面談メモID", "MeetingDocId", "meeting_doc_id"},
	"tags":             {"タグ", "tags"},
}

var sheetIDPattern = regexp.MustCompile(`[-\w]{25,}`)

// ExtractSpreadsheetID pulls a spreadsheet id out of a planner URL or raw id
// string. Returns "" when no id-shaped run is present.
func ExtractSpreadsheetID(s string) string {
	if s == "" {
		return ""
	}
	return sheetIDPattern.FindString(s)
}

// Student is the response shape of one roster row.
type Student struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Grade          string `json:"grade"`
	Status         string `json:"status"`
	PlannerSheetID string `json:"planner_sheet_id"`
	PlannerLink    string `json:"planner_link"`
	MeetingDoc     string `json:"meeting_doc"`
	Tags           string `json:"tags"`
}

// Handler serves the students.* operations against one sheet of a row store.
type Handler struct {
	store rowstore.Store
	sheet string
	coord *staging.Coordinator
	log   *slog.Logger
}

// NewHandler wires a students handler to its sheet.
func NewHandler(store rowstore.Store, sheet string, cache *staging.Cache, log *slog.Logger) *Handler {
	return &Handler{
		store: store,
		sheet: sheet,
		coord: staging.NewCoordinator(cache),
		log:   log,
	}
}

type sheetData struct {
	values  [][]string
	headers []string
	cols    map[string]int
}

func (d *sheetData) cell(row []string, field string) string {
	return rowstore.Cell(row, d.cols[field])
}

func (h *Handler) loadSheet() (*sheetData, error) {
	values, err := h.store.Values(h.sheet)
	if err != nil {
		return nil, err
	}
	d := &sheetData{values: values, headers: values[0]}
	d.cols = make(map[string]int, len(columnSpec))
	for field, candidates := range columnSpec {
		d.cols[field] = rowstore.PickColumn(d.headers, candidates...)
	}
	return d, nil
}

func (d *sheetData) rowToStudent(row []string) Student {
	plannerLink := d.cell(row, "planner_link")
	plannerSheetID := d.cell(row, "planner_sheet_id")
	if plannerSheetID == "" && plannerLink != "" {
		plannerSheetID = ExtractSpreadsheetID(plannerLink)
	}
	return Student{
		ID:             strings.TrimSpace(d.cell(row, "id")),
		Name:           d.cell(row, "name"),
		Grade:          d.cell(row, "grade"),
		Status:         d.cell(row, "status"),
		PlannerSheetID: plannerSheetID,
		PlannerLink:    plannerLink,
		MeetingDoc:     d.cell(row, "meeting_doc"),
		Tags:           d.cell(row, "tags"),
	}
}

// === List ===

// List returns the non-blank roster rows, active students only unless
// includeAll is set.
func (h *Handler) List(limit int, includeAll bool) response.Response {
	const op = "students.list"
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.OK(op, map[string]any{"students": []Student{}, "count": 0})
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	students := []Student{}
	for _, row := range d.values[1:] {
		if blankRow(row) {
			continue
		}
		if !includeAll && !d.isActive(row) {
			continue
		}
		students = append(students, d.rowToStudent(row))
	}
	if limit > 0 && len(students) > limit {
		students = students[:limit]
	}
	return response.OK(op, map[string]any{"students": students, "count": len(students)})
}

func (d *sheetData) isActive(row []string) bool {
	return textnorm.NormalizeHeader(d.cell(row, "status")) == textnorm.NormalizeHeader(activeStatus)
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// === Find ===

// candidate is one search hit against the roster.
type candidate struct {
	StudentID string  `json:"student_id"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// Find matches the query against student ids and names. Exact matches score
// 1.0, substring matches 0.9; confidence is simply the top score. Unless
// includeAll is set, the search runs as a name-contains filter over active
// students and returns the filter-shaped result.
func (h *Handler) Find(query string, limit int, includeAll bool) response.Response {
	const op = "students.find"
	if query == "" {
		return response.Fail(op, response.CodeBadRequest, "query is required")
	}
	if limit <= 0 {
		limit = defaultFindLimit
	}
	if !includeAll {
		return h.Filter(map[string]string{"Status": activeStatus}, map[string]string{"名前": query}, limit, false)
	}

	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.OK(op, map[string]any{
			"query": query, "candidates": []candidate{}, "top": nil, "confidence": 0.0,
		})
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	q := textnorm.Normalize(query)
	var candidates []candidate
	for _, row := range d.values[1:] {
		id := strings.TrimSpace(d.cell(row, "id"))
		name := strings.TrimSpace(d.cell(row, "name"))
		if id == "" && name == "" {
			continue
		}

		hay := []string{textnorm.Normalize(id), textnorm.Normalize(name)}
		score, reason := 0.0, ""
		switch {
		case hay[0] == q || hay[1] == q:
			score, reason = 1.0, "exact"
		case strings.Contains(hay[0], q) || strings.Contains(hay[1], q):
			score, reason = 0.9, "partial"
		}
		if score > 0 {
			candidates = append(candidates, candidate{StudentID: id, Name: name, Score: score, Reason: reason})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	if candidates == nil {
		candidates = []candidate{}
	}

	var top any
	confidence := 0.0
	if len(candidates) > 0 {
		top = candidates[0]
		confidence = candidates[0].Score
	}
	return response.OK(op, map[string]any{
		"query":      query,
		"candidates": candidates,
		"top":        top,
		"confidence": confidence,
	})
}

// === Get ===

// Get returns one student by id.
func (h *Handler) Get(studentID string) response.Response {
	const op = "students.get"
	if studentID == "" {
		return response.Fail(op, response.CodeBadRequest, "student_id or student_ids is required")
	}
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.Fail(op, response.CodeEmpty, "シートが空です")
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	target := strings.TrimSpace(studentID)
	for _, row := range d.values[1:] {
		if strings.TrimSpace(d.cell(row, "id")) == target {
			return response.OK(op, map[string]any{"student": d.rowToStudent(row)})
		}
	}
	return response.Fail(op, response.CodeNotFound, fmt.Sprintf("student '%s' not found", target))
}

// GetMultiple returns the students whose ids appear in the batch. Unknown
// ids are silently omitted.
func (h *Handler) GetMultiple(studentIDs []string) response.Response {
	const op = "students.get"
	if len(studentIDs) == 0 {
		return response.Fail(op, response.CodeBadRequest, "student_ids is required")
	}
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.Fail(op, response.CodeEmpty, "シートが空です")
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	want := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		want[strings.TrimSpace(id)] = true
	}

	results := []Student{}
	for _, row := range d.values[1:] {
		id := strings.TrimSpace(d.cell(row, "id"))
		if id != "" && want[id] {
			results = append(results, d.rowToStudent(row))
		}
	}
	return response.OK(op, map[string]any{"students": results})
}

// === Filter ===

// Filter returns the students whose cells match every condition. Keys are
// header names; where requires an exact normalized match, contains a
// substring match. Comparisons use header normalization, which also strips
// inner spaces. Unless includeAll is set, a Status condition is injected
// when the caller did not supply one.
func (h *Handler) Filter(where, contains map[string]string, limit int, includeAll bool) response.Response {
	const op = "students.filter"
	if !includeAll {
		where = withActiveStatus(where)
	}
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.OK(op, map[string]any{"students": []Student{}, "count": 0})
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	type condition struct {
		col  int
		want string
	}
	buildConditions := func(m map[string]string) []condition {
		conds := make([]condition, 0, len(m))
		for k, v := range m {
			conds = append(conds, condition{
				col:  rowstore.PickColumn(d.headers, k),
				want: textnorm.NormalizeHeader(v),
			})
		}
		return conds
	}
	whereConds := buildConditions(where)
	containsConds := buildConditions(contains)

	matches := func(row []string) bool {
		for _, c := range whereConds {
			if c.col < 0 || textnorm.NormalizeHeader(rowstore.Cell(row, c.col)) != c.want {
				return false
			}
		}
		for _, c := range containsConds {
			if c.col < 0 || !strings.Contains(textnorm.NormalizeHeader(rowstore.Cell(row, c.col)), c.want) {
				return false
			}
		}
		return true
	}

	results := []Student{}
	for _, row := range d.values[1:] {
		if !matches(row) {
			continue
		}
		results = append(results, d.rowToStudent(row))
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return response.OK(op, map[string]any{"students": results, "count": len(results)})
}

// withActiveStatus adds the active-status condition unless the caller
// already constrains Status. The input map is not mutated.
func withActiveStatus(where map[string]string) map[string]string {
	for k := range where {
		if textnorm.NormalizeHeader(k) == "status" {
			return where
		}
	}
	merged := make(map[string]string, len(where)+1)
	for k, v := range where {
		merged[k] = v
	}
	merged["Status"] = activeStatus
	return merged
}

// === Create ===

// Create appends a new roster row. Record keys are header names (normalized
// matching); the id is generated with prefix "s" unless idPrefix overrides
// it.
func (h *Handler) Create(record map[string]string, idPrefix string) response.Response {
	const op = "students.create"
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.Fail(op, response.CodeEmpty, "シートが空です")
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	prefix := strings.TrimSpace(idPrefix)
	if prefix == "" {
		prefix = "s"
	}
	existing := idgen.ExtractIDs(d.values, d.cols["id"])
	newID := idgen.NextIDForPrefix(prefix, existing)

	newRow := make([]string, len(d.headers))
	if ci := d.cols["id"]; ci >= 0 {
		newRow[ci] = newID
	}
	for k, v := range record {
		if ci := rowstore.PickColumn(d.headers, k); ci >= 0 {
			newRow[ci] = v
		}
	}

	if err := h.store.AppendRows(h.sheet, [][]string{newRow}); err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}
	h.log.Info("student created", "id", newID)
	return response.OK(op, map[string]any{"id": newID, "created": true})
}

// === Update (two-phase) ===

type updatePayload struct {
	studentID string
	updates   map[string]string
	rowIndex  int
}

// Update runs the two-phase update of one roster row. Update keys are
// header names.
func (h *Handler) Update(studentID string, updates map[string]string, confirmToken string) response.Response {
	const op = "students.update"
	if studentID == "" {
		return response.Fail(op, response.CodeBadRequest, "student_id is required")
	}
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.Fail(op, response.CodeEmpty, "シートが空です")
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	rowIndex := d.findStudentRow(studentID)
	if rowIndex < 0 {
		return response.Fail(op, response.CodeNotFound, fmt.Sprintf("student '%s' not found", studentID))
	}

	if confirmToken == "" {
		if updates == nil {
			updates = map[string]string{}
		}
		current := d.values[rowIndex-1]
		diffs := map[string]any{}
		for k, v := range updates {
			ci := rowstore.PickColumn(d.headers, k)
			if ci < 0 {
				continue
			}
			from := rowstore.Cell(current, ci)
			if from != v {
				diffs[d.headers[ci]] = map[string]any{"from": from, "to": v}
			}
		}

		res, err := h.coord.Preview(nsUpdate, studentID, func() (any, any, error) {
			payload := updatePayload{studentID: studentID, updates: updates, rowIndex: rowIndex}
			return payload, map[string]any{"diffs": diffs}, nil
		})
		if err != nil {
			return response.Fail(op, response.CodeInternal, err.Error())
		}
		return previewResponse(op, res)
	}

	_, err = h.coord.Confirm(nsUpdate, studentID, confirmToken, func(raw any) (any, error) {
		payload := raw.(updatePayload)
		var cellUpdates []rowstore.CellUpdate
		for k, v := range payload.updates {
			ci := rowstore.PickColumn(d.headers, k)
			if ci < 0 {
				continue
			}
			cellUpdates = append(cellUpdates, rowstore.CellUpdate{Row: payload.rowIndex, Col: ci, Value: v})
		}
		if len(cellUpdates) == 0 {
			return nil, nil
		}
		return nil, h.store.BatchUpdate(h.sheet, cellUpdates)
	})
	if resp, handled := confirmFailure(op, err); handled {
		return resp
	}
	h.log.Info("student updated", "id", studentID)
	return response.OK(op, map[string]any{"updated": true})
}

// === Delete (two-phase) ===

type deletePayload struct {
	studentID string
	rowIndex  int
}

// Delete runs the two-phase delete of one roster row.
func (h *Handler) Delete(studentID, confirmToken string) response.Response {
	const op = "students.delete"
	if studentID == "" {
		return response.Fail(op, response.CodeBadRequest, "student_id is required")
	}
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.Fail(op, response.CodeEmpty, "シートが空です")
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	rowIndex := d.findStudentRow(studentID)
	if rowIndex < 0 {
		return response.Fail(op, response.CodeNotFound, fmt.Sprintf("student '%s' not found", studentID))
	}

	if confirmToken == "" {
		res, err := h.coord.Preview(nsDelete, studentID, func() (any, any, error) {
			payload := deletePayload{studentID: studentID, rowIndex: rowIndex}
			return payload, map[string]any{"row": rowIndex}, nil
		})
		if err != nil {
			return response.Fail(op, response.CodeInternal, err.Error())
		}
		return previewResponse(op, res)
	}

	_, err = h.coord.Confirm(nsDelete, studentID, confirmToken, func(raw any) (any, error) {
		payload := raw.(deletePayload)
		return nil, h.store.DeleteRows(h.sheet, payload.rowIndex, 1)
	})
	if resp, handled := confirmFailure(op, err); handled {
		return resp
	}
	h.log.Info("student deleted", "id", studentID)
	return response.OK(op, map[string]any{"deleted": true})
}

// findStudentRow returns the 1-based row of the student, -1 if absent.
func (d *sheetData) findStudentRow(targetID string) int {
	targetID = strings.TrimSpace(targetID)
	for i := 2; i <= len(d.values); i++ {
		if strings.TrimSpace(d.cell(d.values[i-1], "id")) == targetID {
			return i
		}
	}
	return -1
}

func previewResponse(op string, res staging.PreviewResult) response.Response {
	return response.OK(op, map[string]any{
		"requires_confirmation": res.RequiresConfirmation,
		"preview":               res.Preview,
		"confirm_token":         res.ConfirmToken,
		"expires_in_seconds":    res.ExpiresInSeconds,
	})
}

func confirmFailure(op string, err error) (response.Response, bool) {
	switch {
	case err == nil:
		return response.Response{}, false
	case errors.Is(err, staging.ErrConfirmExpired):
		return response.Fail(op, response.CodeConfirmExpired, "confirm_token is invalid or expired"), true
	case errors.Is(err, staging.ErrConfirmMismatch):
		return response.Fail(op, response.CodeConfirmMismatch, "student_id mismatch"), true
	default:
		return response.Fail(op, response.CodeSheetError, err.Error()), true
	}
}
