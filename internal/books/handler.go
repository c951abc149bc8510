// Package books implements the book catalog operations: IDF-weighted search,
// chapter-block reads, and two-phase update/delete over a row store sheet.
//
// A book occupies a block of rows: the parent row carries the id and
// metadata, the rows below it without an id carry additional chapters. Every
// operation reloads the sheet, so handlers hold no row state between calls.
package books

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hmurata/crambooks/internal/idgen"
	"github.com/hmurata/crambooks/internal/ranking"
	"github.com/hmurata/crambooks/internal/response"
	"github.com/hmurata/crambooks/internal/rowstore"
	"github.com/hmurata/crambooks/internal/staging"
	"github.com/hmurata/crambooks/internal/textnorm"
)

// Staging namespaces keep book tokens apart from other handlers sharing the
// same cache.
const (
	nsUpdate = "books.upd"
	nsDelete = "books.del"
)

const defaultFindLimit = 20

// Handler serves the books.* operations against one sheet of a row store.
type Handler struct {
	store rowstore.Store
	sheet string
	coord *staging.Coordinator
	log   *slog.Logger
}

// NewHandler wires a books handler to its sheet. The staging cache may be
// shared with other handlers.
func NewHandler(store rowstore.Store, sheet string, cache *staging.Cache, log *slog.Logger) *Handler {
	return &Handler{
		store: store,
		sheet: sheet,
		coord: staging.NewCoordinator(cache),
		log:   log,
	}
}

// sheetData is one loaded snapshot of the sheet: all rows, the header row,
// and the resolved column indices.
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
	d.cols = resolveColumns(d.headers)
	return d, nil
}

// bookMeta is the parent-row metadata of one book.
type bookMeta struct {
	id       string
	title    string
	subject  string
	goalText string
	unitLoad *float64
	bookType string
	quizType string
	quizID   string
}

// ChapterRange is the start/end span of a chapter, in the book's own
// numbering units.
type ChapterRange struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

// Chapter is one chapter row of a book block.
type Chapter struct {
	Idx       float64       `json:"idx"`
	Title     *string       `json:"title"`
	Range     *ChapterRange `json:"range"`
	Numbering *string       `json:"numbering"`
}

// Book is the full response shape of one book.
type Book struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Subject     string       `json:"subject"`
	MonthlyGoal *MonthlyGoal `json:"monthly_goal"`
	UnitLoad    *float64     `json:"unit_load"`
	Structure   Structure    `json:"structure"`
	Assessment  Assessment   `json:"assessment"`
}

// Structure groups the chapter list.
type Structure struct {
	Chapters []Chapter `json:"chapters"`
}

// Assessment carries the quiz linkage of a book.
type Assessment struct {
	BookType string `json:"book_type"`
	QuizType string `json:"quiz_type"`
	QuizID   string `json:"quiz_id"`
}

// candidate is one search hit.
type candidate struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Subject string  `json:"subject"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

// === Find ===

// Find searches the catalog with IDF-weighted tiered scoring.
func (h *Handler) Find(query string, limit int) response.Response {
	const op = "books.find"
	if query == "" {
		return response.Fail(op, response.CodeBadRequest, "query が必要です")
	}
	if limit <= 0 {
		limit = defaultFindLimit
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
	if d.cols["id"] < 0 {
		return response.FailDetails(op, response.CodeBadHeader,
			"必要な列（参考書ID/参考書名/教科）が見つかりません",
			map[string]any{"headers": d.headers})
	}

	records := make([]ranking.Record, 0, len(d.values)-1)
	for _, row := range d.values[1:] {
		records = append(records, ranking.Record{
			ID:      strings.TrimSpace(d.cell(row, "id")),
			Title:   d.cell(row, "title"),
			Subject: d.cell(row, "subject"),
		})
	}

	res := ranking.Rank(query, records, ranking.Config{
		Limit:       limit,
		SubjectKeys: subjectKeys,
	})

	candidates := make([]candidate, len(res.Candidates))
	for i, c := range res.Candidates {
		candidates[i] = candidate{
			ID:      c.Record.ID,
			Title:   c.Record.Title,
			Subject: c.Record.Subject,
			Score:   c.Score,
			Reason:  string(c.Reason),
		}
	}
	var top any
	if len(candidates) > 0 {
		top = candidates[0]
	}
	return response.OK(op, map[string]any{
		"query":      query,
		"candidates": candidates,
		"top":        top,
		"confidence": res.Confidence,
	})
}

// === Get ===

// Get returns the full details of one book, chapters included.
func (h *Handler) Get(bookID string) response.Response {
	const op = "books.get"
	if bookID == "" {
		return response.Fail(op, response.CodeBadRequest, "book_id が必要です")
	}
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.Fail(op, response.CodeEmpty, "シートが空です")
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	targetID := strings.TrimSpace(bookID)
	meta, chapters := d.collectBook(targetID)
	if meta == nil {
		return response.Fail(op, response.CodeNotFound, fmt.Sprintf("book '%s' not found", targetID))
	}
	return response.OK(op, map[string]any{"book": buildBook(*meta, chapters)})
}

// GetMultiple returns full details for a batch of book ids. Unknown ids are
// silently omitted.
func (h *Handler) GetMultiple(bookIDs []string) response.Response {
	const op = "books.get"
	if len(bookIDs) == 0 {
		return response.Fail(op, response.CodeBadRequest, "book_ids が必要です")
	}
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.Fail(op, response.CodeEmpty, "シートが空です")
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	targets := make(map[string]bool, len(bookIDs))
	order := make([]string, 0, len(bookIDs))
	for _, id := range bookIDs {
		id = strings.TrimSpace(id)
		if id != "" && !targets[id] {
			targets[id] = true
			order = append(order, id)
		}
	}

	type bucket struct {
		meta     *bookMeta
		chapters []Chapter
	}
	buckets := make(map[string]*bucket, len(order))
	for _, id := range order {
		buckets[id] = &bucket{}
	}

	currentID := ""
	for _, row := range d.values[1:] {
		idCell := strings.TrimSpace(d.cell(row, "id"))
		if idCell != "" {
			currentID = idCell
		}
		b, ok := buckets[currentID]
		if !ok {
			continue
		}
		if b.meta == nil && idCell != "" {
			m := d.parseMeta(row)
			b.meta = &m
		}
		if ch := d.parseChapter(row, len(b.chapters)); ch != nil {
			b.chapters = append(b.chapters, *ch)
		}
	}

	books := make([]Book, 0, len(order))
	for _, id := range order {
		if b := buckets[id]; b.meta != nil {
			books = append(books, buildBook(*b.meta, b.chapters))
		}
	}
	return response.OK(op, map[string]any{"books": books})
}

func (d *sheetData) collectBook(targetID string) (*bookMeta, []Chapter) {
	var meta *bookMeta
	var chapters []Chapter
	currentID := ""

	for _, row := range d.values[1:] {
		idCell := strings.TrimSpace(d.cell(row, "id"))
		if idCell != "" {
			currentID = idCell
		}
		if currentID != targetID {
			continue
		}
		if meta == nil && idCell != "" {
			m := d.parseMeta(row)
			meta = &m
		}
		if ch := d.parseChapter(row, len(chapters)); ch != nil {
			chapters = append(chapters, *ch)
		}
	}
	return meta, chapters
}

func (d *sheetData) parseMeta(row []string) bookMeta {
	return bookMeta{
		id:       strings.TrimSpace(d.cell(row, "id")),
		title:    d.cell(row, "title"),
		subject:  d.cell(row, "subject"),
		goalText: d.cell(row, "goal"),
		unitLoad: numberOrNil(d.cell(row, "unit")),
		bookType: d.cell(row, "book_type"),
		quizType: d.cell(row, "quiz_type"),
		quizID:   d.cell(row, "quiz_id"),
	}
}

// parseChapter reads chapter fields from a row. Rows with neither a chapter
// name nor a range are not chapters (pure metadata or spacer rows).
func (d *sheetData) parseChapter(row []string, chapterCount int) *Chapter {
	name := strings.TrimSpace(d.cell(row, "chap_name"))
	begin := numberOrNil(d.cell(row, "chap_begin"))
	end := numberOrNil(d.cell(row, "chap_end"))
	idx := numberOrNil(d.cell(row, "chap_idx"))
	numbering := strings.TrimSpace(d.cell(row, "numbering"))

	if name == "" && begin == nil && end == nil {
		return nil
	}

	ch := Chapter{Idx: float64(chapterCount + 1)}
	if idx != nil {
		ch.Idx = *idx
	}
	if name != "" {
		ch.Title = &name
	}
	if begin != nil || end != nil {
		ch.Range = &ChapterRange{Start: begin, End: end}
	}
	if numbering != "" {
		ch.Numbering = &numbering
	}
	return &ch
}

func buildBook(meta bookMeta, chapters []Chapter) Book {
	goal := ParseMonthlyGoal(meta.goalText)
	if goal == nil {
		goal = &MonthlyGoal{Text: meta.goalText}
	}
	if chapters == nil {
		chapters = []Chapter{}
	}
	return Book{
		ID:          meta.id,
		Title:       meta.title,
		Subject:     meta.subject,
		MonthlyGoal: goal,
		UnitLoad:    meta.unitLoad,
		Structure:   Structure{Chapters: chapters},
		Assessment: Assessment{
			BookType: meta.bookType,
			QuizType: meta.quizType,
			QuizID:   meta.quizID,
		},
	}
}

// === List ===

// List returns id, title and subject of every book in sheet order.
func (h *Handler) List(limit int) response.Response {
	const op = "books.list"
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.OK(op, map[string]any{"books": []map[string]string{}, "count": 0})
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	seen := make(map[string]bool)
	var list []map[string]string
	for _, row := range d.values[1:] {
		id := strings.TrimSpace(d.cell(row, "id"))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		list = append(list, map[string]string{
			"id":      id,
			"title":   d.cell(row, "title"),
			"subject": d.cell(row, "subject"),
		})
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	if list == nil {
		list = []map[string]string{}
	}
	return response.OK(op, map[string]any{"books": list, "count": len(list)})
}

// === Filter ===

// Filter returns the books whose cell values match every condition. Keys of
// where and contains are header names; where requires an exact normalized
// match in any row of the book's block, contains a substring match.
func (h *Handler) Filter(where, contains map[string]string, limit int) response.Response {
	const op = "books.filter"
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.OK(op, map[string]any{"books": []Book{}, "count": 0, "limit": nil})
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	type bucket struct {
		meta     *bookMeta
		chapters []Chapter
		cols     map[int][]string
	}
	buckets := make(map[string]*bucket)
	var order []string
	currentID := ""

	for _, row := range d.values[1:] {
		idCell := strings.TrimSpace(d.cell(row, "id"))
		if idCell != "" {
			currentID = idCell
		}
		if currentID == "" {
			continue
		}
		b, ok := buckets[currentID]
		if !ok {
			b = &bucket{cols: make(map[int][]string)}
			buckets[currentID] = b
			order = append(order, currentID)
		}
		if b.meta == nil && idCell != "" {
			m := d.parseMeta(row)
			b.meta = &m
		}
		if ch := d.parseChapter(row, len(b.chapters)); ch != nil {
			b.chapters = append(b.chapters, *ch)
		}
		for ci, raw := range row {
			if strings.TrimSpace(raw) != "" {
				b.cols[ci] = append(b.cols[ci], raw)
			}
		}
	}

	type condition struct {
		col   int
		value string
	}
	buildConditions := func(m map[string]string) []condition {
		conds := make([]condition, 0, len(m))
		for k, v := range m {
			conds = append(conds, condition{col: rowstore.PickColumn(d.headers, k), value: v})
		}
		return conds
	}
	whereConds := buildConditions(where)
	containsConds := buildConditions(contains)

	matches := func(b *bucket) bool {
		for _, c := range whereConds {
			if c.col < 0 {
				return false
			}
			want := textnorm.Normalize(c.value)
			found := false
			for _, v := range b.cols[c.col] {
				if textnorm.Normalize(v) == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		for _, c := range containsConds {
			if c.col < 0 {
				return false
			}
			want := textnorm.Normalize(c.value)
			found := false
			for _, v := range b.cols[c.col] {
				if strings.Contains(textnorm.Normalize(v), want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}

	results := []Book{}
	for _, id := range order {
		b := buckets[id]
		if b.meta == nil || !matches(b) {
			continue
		}
		results = append(results, buildBook(*b.meta, b.chapters))
		if limit > 0 && len(results) >= limit {
			break
		}
	}

	var limitOut any
	if limit > 0 {
		limitOut = limit
	}
	return response.OK(op, map[string]any{
		"books": results,
		"count": len(results),
		"limit": limitOut,
	})
}

// === Create ===

// ChapterInput is one chapter of a book being created.
type ChapterInput struct {
	Title     string
	Start     *float64
	End       *float64
	Numbering string
}

// CreateParams are the fields of a new book.
type CreateParams struct {
	Title       string
	Subject     string
	UnitLoad    *float64
	MonthlyGoal string
	Chapters    []ChapterInput
	IDPrefix    string
}

// Create appends a new book block. The id is generated from the subject
// prefix table unless IDPrefix overrides it.
func (h *Handler) Create(p CreateParams) response.Response {
	const op = "books.create"
	if p.Title == "" || p.Subject == "" {
		return response.Fail(op, response.CodeBadRequest, "title と subject が必要です")
	}
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.Fail(op, response.CodeEmpty, "シートが空です")
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	basePrefix := strings.TrimSpace(p.IDPrefix)
	if basePrefix == "" {
		basePrefix = "g" + DecidePrefix(p.Subject, p.Title)
	}
	existing := idgen.ExtractIDs(d.values, d.cols["id"])
	newID := idgen.NextIDForPrefix(basePrefix, existing)

	rows := buildCreateRows(d, newID, p)
	if err := h.store.AppendRows(h.sheet, rows); err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	h.log.Info("book created", "id", newID, "rows", len(rows))
	return response.OK(op, map[string]any{"id": newID, "created_rows": len(rows)})
}

func buildCreateRows(d *sheetData, newID string, p CreateParams) [][]string {
	numCols := len(d.headers)
	set := func(row []string, field, value string) {
		if ci := d.cols[field]; ci >= 0 && ci < numCols {
			row[ci] = value
		}
	}
	setChapter := func(row []string, idx int, ch ChapterInput) {
		set(row, "chap_idx", strconv.Itoa(idx))
		set(row, "chap_name", ch.Title)
		set(row, "chap_begin", formatNumber(ch.Start))
		set(row, "chap_end", formatNumber(ch.End))
		set(row, "numbering", ch.Numbering)
	}

	parent := make([]string, numCols)
	set(parent, "id", newID)
	set(parent, "title", p.Title)
	set(parent, "subject", p.Subject)
	set(parent, "goal", p.MonthlyGoal)
	set(parent, "unit", formatNumber(p.UnitLoad))

	if len(p.Chapters) == 0 {
		return [][]string{parent}
	}

	setChapter(parent, 1, p.Chapters[0])
	rows := [][]string{parent}
	for i, ch := range p.Chapters[1:] {
		child := make([]string, numCols)
		setChapter(child, i+2, ch)
		rows = append(rows, child)
	}
	return rows
}

func formatNumber(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// === Update (two-phase) ===

// updatePayload is what a confirmed update applies. Row positions are
// captured at preview time; a confirm after the sheet moved applies to the
// captured rows.
type updatePayload struct {
	bookID    string
	updates   map[string]any
	parentRow int
	endRow    int
}

// Update runs the two-phase update. Without a confirm token it stages the
// updates and returns a preview; with one it applies the staged updates to
// the parent row. Only metadata fields are written; chapter rows are
// reported in the preview but left untouched.
func (h *Handler) Update(bookID string, updates map[string]any, confirmToken string) response.Response {
	const op = "books.update"
	if bookID == "" {
		return response.Fail(op, response.CodeBadRequest, "book_id が必要です")
	}
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.Fail(op, response.CodeEmpty, "シートが空です")
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	parentRow, endRow := d.findBookBlock(bookID)
	if parentRow < 0 {
		return response.Fail(op, response.CodeNotFound, fmt.Sprintf("book_id '%s' が見つかりません", bookID))
	}

	if confirmToken == "" {
		return h.updatePreview(d, bookID, updates, parentRow, endRow)
	}
	return h.updateConfirm(d, bookID, confirmToken)
}

var metaFields = []struct {
	key   string
	field string
}{
	{"title", "title"},
	{"subject", "subject"},
	{"monthly_goal", "goal"},
	{"unit_load", "unit"},
}

func (h *Handler) updatePreview(d *sheetData, bookID string, updates map[string]any, parentRow, endRow int) response.Response {
	const op = "books.update"
	if updates == nil {
		updates = map[string]any{}
	}
	current := d.values[parentRow-1]

	metaChanges := map[string]any{}
	for _, f := range metaFields {
		to, ok := updates[f.key]
		if !ok {
			continue
		}
		from := ""
		if ci := d.cols[f.field]; ci >= 0 {
			from = rowstore.Cell(current, ci)
		}
		if from != fmt.Sprint(to) {
			metaChanges[f.key] = map[string]any{"from": from, "to": to}
		}
	}

	var chaptersPreview any
	if raw, ok := updates["chapters"]; ok {
		if chapters, ok := raw.([]any); ok {
			chaptersPreview = map[string]int{
				"from_count": max(0, endRow-parentRow),
				"to_count":   max(0, len(chapters)-1),
			}
		}
	}

	res, err := h.coord.Preview(nsUpdate, bookID, func() (any, any, error) {
		payload := updatePayload{bookID: bookID, updates: updates, parentRow: parentRow, endRow: endRow}
		preview := map[string]any{
			"book_id":      bookID,
			"meta_changes": metaChanges,
			"chapters":     chaptersPreview,
		}
		return payload, preview, nil
	})
	if err != nil {
		return response.Fail(op, response.CodeInternal, err.Error())
	}
	return previewResponse(op, res)
}

func (h *Handler) updateConfirm(d *sheetData, bookID, confirmToken string) response.Response {
	const op = "books.update"
	_, err := h.coord.Confirm(nsUpdate, bookID, confirmToken, func(raw any) (any, error) {
		payload := raw.(updatePayload)
		var cellUpdates []rowstore.CellUpdate
		for _, f := range metaFields {
			v, ok := payload.updates[f.key]
			if !ok {
				continue
			}
			ci := d.cols[f.field]
			if ci < 0 {
				continue
			}
			cellUpdates = append(cellUpdates, rowstore.CellUpdate{
				Row:   payload.parentRow,
				Col:   ci,
				Value: fmt.Sprint(v),
			})
		}
		if len(cellUpdates) == 0 {
			return nil, nil
		}
		return nil, h.store.BatchUpdate(h.sheet, cellUpdates)
	})
	if resp, handled := confirmFailure(op, err); handled {
		return resp
	}
	h.log.Info("book updated", "id", bookID)
	return response.OK(op, map[string]any{"book_id": bookID, "updated": true})
}

// === Delete (two-phase) ===

type deletePayload struct {
	bookID    string
	parentRow int
	endRow    int
}

// Delete runs the two-phase delete of a whole book block.
func (h *Handler) Delete(bookID, confirmToken string) response.Response {
	const op = "books.delete"
	if bookID == "" {
		return response.Fail(op, response.CodeBadRequest, "book_id が必要です")
	}
	d, err := h.loadSheet()
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return response.Fail(op, response.CodeEmpty, "シートが空です")
	}
	if err != nil {
		return response.Fail(op, response.CodeSheetError, err.Error())
	}

	parentRow, endRow := d.findBookBlock(bookID)
	if parentRow < 0 {
		return response.Fail(op, response.CodeNotFound, fmt.Sprintf("book_id '%s' が見つかりません", bookID))
	}

	if confirmToken == "" {
		res, err := h.coord.Preview(nsDelete, bookID, func() (any, any, error) {
			payload := deletePayload{bookID: bookID, parentRow: parentRow, endRow: endRow}
			preview := map[string]any{
				"book_id":     bookID,
				"delete_rows": endRow - parentRow,
				"range":       map[string]int{"start_row": parentRow, "end_row": endRow - 1},
			}
			return payload, preview, nil
		})
		if err != nil {
			return response.Fail(op, response.CodeInternal, err.Error())
		}
		return previewResponse(op, res)
	}

	var deleted int
	_, err = h.coord.Confirm(nsDelete, bookID, confirmToken, func(raw any) (any, error) {
		payload := raw.(deletePayload)
		deleted = payload.endRow - payload.parentRow
		return nil, h.store.DeleteRows(h.sheet, payload.parentRow, deleted)
	})
	if resp, handled := confirmFailure(op, err); handled {
		return resp
	}
	h.log.Info("book deleted", "id", bookID, "rows", deleted)
	return response.OK(op, map[string]any{"deleted_rows": deleted})
}

// findBookBlock locates a book's row block. parentRow is the 1-based row
// carrying the id, endRow the row after the block (the next row with an id,
// or one past the sheet). Returns -1, -1 when the id is absent.
func (d *sheetData) findBookBlock(targetID string) (parentRow, endRow int) {
	parentRow = -1
	for i := 2; i <= len(d.values); i++ {
		if strings.TrimSpace(d.cell(d.values[i-1], "id")) == targetID {
			parentRow = i
			break
		}
	}
	if parentRow < 0 {
		return -1, -1
	}
	endRow = len(d.values) + 1
	for i := parentRow + 1; i <= len(d.values); i++ {
		if strings.TrimSpace(d.cell(d.values[i-1], "id")) != "" {
			endRow = i
			break
		}
	}
	return parentRow, endRow
}

// previewResponse converts a staging preview into the response envelope.
func previewResponse(op string, res staging.PreviewResult) response.Response {
	return response.OK(op, map[string]any{
		"requires_confirmation": res.RequiresConfirmation,
		"preview":               res.Preview,
		"confirm_token":         res.ConfirmToken,
		"expires_in_seconds":    res.ExpiresInSeconds,
	})
}

// confirmFailure maps staging confirm errors to their envelope codes.
func confirmFailure(op string, err error) (response.Response, bool) {
	switch {
	case err == nil:
		return response.Response{}, false
	case errors.Is(err, staging.ErrConfirmExpired):
		return response.Fail(op, response.CodeConfirmExpired, "confirm_token が無効または期限切れです"), true
	case errors.Is(err, staging.ErrConfirmMismatch):
		return response.Fail(op, response.CodeConfirmMismatch, "book_id が一致しません"), true
	default:
		return response.Fail(op, response.CodeSheetError, err.Error()), true
	}
}
