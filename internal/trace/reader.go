package trace

import (
	"database/sql"
	"fmt"
	"os"
)

// Reader queries a trace database written by SQLiteTracer.
type Reader struct {
	*sql.DB
}

// NewReader opens the trace database at path.
func NewReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	return &Reader{DB: db}, nil
}

// List returns events in the order they were traced. An empty kind matches
// every event; a non-positive limit returns all matching events.
func (r *Reader) List(kind string, limit int) ([]Record, error) {
	query := `select id, seq, kind, virt_addr, phys_addr, detail from trace`
	args := []interface{}{}

	if kind != "" {
		query += ` where kind = ?`
		args = append(args, kind)
	}

	query += ` order by seq`
	if limit > 0 {
		query += fmt.Sprintf(` limit %d`, limit)
	}

	rows, err := r.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Kind, &rec.VirtAddr, &rec.PhysAddr, &rec.Detail); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountByKind returns the number of stored events per kind.
func (r *Reader) CountByKind() (map[string]int, error) {
	rows, err := r.Query(`select kind, count(*) from trace group by kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}

	return counts, rows.Err()
}
