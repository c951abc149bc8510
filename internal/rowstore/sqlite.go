package rowstore

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store on a local SQLite database. Each sheet row is
// one table row with its cells serialized as a JSON array.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*SQLiteStore, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "crambooks.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *SQLiteStore) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *SQLiteStore) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SeedSheet replaces the full contents of a sheet. Used by the seed command
// and by tests to load fixtures.
func (s *SQLiteStore) SeedSheet(sheet string, rows [][]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sheet_rows WHERE sheet = ?`, sheet); err != nil {
		return fmt.Errorf("clearing sheet %s: %w", sheet, err)
	}
	for i, row := range rows {
		cells, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encoding row %d: %w", i+1, err)
		}
		if _, err := tx.Exec(`INSERT INTO sheet_rows (sheet, row_idx, cells) VALUES (?, ?, ?)`,
			sheet, i+1, string(cells)); err != nil {
			return fmt.Errorf("inserting row %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// Values returns every row of the sheet in row order.
func (s *SQLiteStore) Values(sheet string) ([][]string, error) {
	rows, err := s.db.Query(`SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY row_idx ASC`, sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result [][]string
	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return nil, err
		}
		var row []string
		if err := json.Unmarshal([]byte(cells), &row); err != nil {
			return nil, fmt.Errorf("decoding row cells: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrSheetNotFound
	}
	return result, nil
}

// UpdateCell writes one cell of an existing row.
func (s *SQLiteStore) UpdateCell(sheet string, row, col int, value string) error {
	return s.BatchUpdate(sheet, []CellUpdate{{Row: row, Col: col, Value: value}})
}

// BatchUpdate applies all updates inside one transaction.
func (s *SQLiteStore) BatchUpdate(sheet string, updates []CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning update transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		var cells string
		err := tx.QueryRow(`SELECT cells FROM sheet_rows WHERE sheet = ? AND row_idx = ?`, sheet, u.Row).Scan(&cells)
		if err == sql.ErrNoRows {
			return fmt.Errorf("updating row %d of %s: %w", u.Row, sheet, ErrSheetNotFound)
		}
		if err != nil {
			return err
		}
		var rowCells []string
		if err := json.Unmarshal([]byte(cells), &rowCells); err != nil {
			return fmt.Errorf("decoding row %d cells: %w", u.Row, err)
		}
		for len(rowCells) <= u.Col {
			rowCells = append(rowCells, "")
		}
		rowCells[u.Col] = u.Value
		encoded, err := json.Marshal(rowCells)
		if err != nil {
			return fmt.Errorf("encoding row %d cells: %w", u.Row, err)
		}
		if _, err := tx.Exec(`UPDATE sheet_rows SET cells = ? WHERE sheet = ? AND row_idx = ?`,
			string(encoded), sheet, u.Row); err != nil {
			return fmt.Errorf("writing row %d: %w", u.Row, err)
		}
	}
	return tx.Commit()
}

// AppendRows adds rows after the current last row of the sheet.
func (s *SQLiteStore) AppendRows(sheet string, newRows [][]string) error {
	if len(newRows) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(row_idx) FROM sheet_rows WHERE sheet = ?`, sheet).Scan(&last); err != nil {
		return err
	}
	next := int(last.Int64) + 1
	for i, row := range newRows {
		cells, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encoding appended row: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO sheet_rows (sheet, row_idx, cells) VALUES (?, ?, ?)`,
			sheet, next+i, string(cells)); err != nil {
			return fmt.Errorf("appending row %d: %w", next+i, err)
		}
	}
	return tx.Commit()
}

// DeleteRows removes count rows starting at start and shifts the remainder
// up. Deleting a contiguous block first makes the shift collision-free.
func (s *SQLiteStore) DeleteRows(sheet string, start, count int) error {
	if count <= 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM sheet_rows WHERE sheet = ? AND row_idx >= ? AND row_idx < ?`,
		sheet, start, start+count)
	if err != nil {
		return fmt.Errorf("deleting rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("deleting rows %d..%d of %s: %w", start, start+count-1, sheet, ErrSheetNotFound)
	}
	// Shift via a negated intermediate index so the primary key never
	// collides with rows the UPDATE has not reached yet.
	if _, err := tx.Exec(`UPDATE sheet_rows SET row_idx = -(row_idx - ?) WHERE sheet = ? AND row_idx >= ?`,
		count, sheet, start+count); err != nil {
		return fmt.Errorf("shifting rows: %w", err)
	}
	if _, err := tx.Exec(`UPDATE sheet_rows SET row_idx = -row_idx WHERE sheet = ? AND row_idx < 0`,
		sheet); err != nil {
		return fmt.Errorf("shifting rows: %w", err)
	}
	return tx.Commit()
}
