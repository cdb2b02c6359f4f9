// Package trace persists memory manager events to a SQLite database.
package trace

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"memcore/kernel/mm/vmm"
)

const defaultBatchSize = 4096

// Record is a stored event.
type Record struct {
	ID       string
	Seq      uint64
	Kind     string
	VirtAddr uint64
	PhysAddr uint64
	Detail   uint32
}

// SQLiteTracer is a vmm.Tracer that writes events to a SQLite database.
// Events are buffered and written in batches; pending events are flushed
// when the process exits through atexit.
type SQLiteTracer struct {
	*sql.DB
	statement *sql.Stmt

	path      string
	batchSize int
	seq       uint64
	pending   []Record

	// err holds the first error encountered while flushing from Trace.
	err error
}

// NewSQLiteTracer creates a tracer that writes to the database at path. If
// path is empty a unique file name is generated in the working directory.
func NewSQLiteTracer(path string) *SQLiteTracer {
	if path == "" {
		path = "memsim_trace_" + xid.New().String() + ".sqlite3"
	}

	t := &SQLiteTracer{
		path:      path,
		batchSize: defaultBatchSize,
	}

	atexit.Register(func() { _ = t.Flush() })

	return t
}

// WithBatchSize sets the number of events buffered before a write.
func (t *SQLiteTracer) WithBatchSize(size int) *SQLiteTracer {
	if size > 0 {
		t.batchSize = size
	}
	return t
}

// Path returns the database file name.
func (t *SQLiteTracer) Path() string { return t.path }

// Init creates the database. It fails if the file already exists.
func (t *SQLiteTracer) Init() error {
	if _, err := os.Stat(t.path); err == nil {
		return fmt.Errorf("file %s already exists", t.path)
	}

	db, err := sql.Open("sqlite3", t.path)
	if err != nil {
		return err
	}
	t.DB = db

	if _, err = t.Exec(`
		create table trace
		(
			id        varchar(20) not null primary key,
			seq       integer     not null,
			kind      varchar(32) not null,
			virt_addr integer     not null,
			phys_addr integer     not null,
			detail    integer     not null default 0
		);
		create index trace_kind_index on trace (kind, seq);
	`); err != nil {
		return err
	}

	t.statement, err = t.Prepare(`insert into trace values (?, ?, ?, ?, ?, ?)`)
	return err
}

// Trace implements vmm.Tracer.
func (t *SQLiteTracer) Trace(ev vmm.Event) {
	t.seq++
	t.pending = append(t.pending, Record{
		ID:       xid.New().String(),
		Seq:      t.seq,
		Kind:     ev.Kind.String(),
		VirtAddr: uint64(ev.VirtAddr),
		PhysAddr: uint64(ev.PhysAddr),
		Detail:   ev.Detail,
	})

	if len(t.pending) >= t.batchSize {
		if err := t.Flush(); err != nil && t.err == nil {
			t.err = err
		}
	}
}

// Err returns the first error that occurred while flushing from Trace.
func (t *SQLiteTracer) Err() error { return t.err }

// Flush writes all buffered events to the database.
func (t *SQLiteTracer) Flush() error {
	if len(t.pending) == 0 || t.statement == nil {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return err
	}

	stmt := tx.Stmt(t.statement)
	for _, rec := range t.pending {
		if _, err = stmt.Exec(rec.ID, rec.Seq, rec.Kind, rec.VirtAddr, rec.PhysAddr, rec.Detail); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert event %d: %w", rec.Seq, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	t.pending = nil
	return nil
}

// Close flushes pending events and closes the database.
func (t *SQLiteTracer) Close() error {
	if t.DB == nil {
		return nil
	}

	flushErr := t.Flush()
	if err := t.DB.Close(); err != nil {
		return err
	}
	return flushErr
}
