package persistence

import (
	"context"
	"database/sql"

	"github.com/petrijr/flowstate/pkg/api"
)

// SQLiteEventStore stores the per-instance event log in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS run_state_events (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			parameter TEXT NOT NULL,
			counter INTEGER NOT NULL,
			timestamp_millis INTEGER NOT NULL,
			event BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_run_state_events_instance
			ON run_state_events(workflow_id, parameter, counter);`,
	)
	return err
}

func (s *SQLiteEventStore) Append(ctx context.Context, rec EventRecord) error {
	blob, err := EncodeEvent(rec.Event)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_state_events (id, workflow_id, parameter, counter, timestamp_millis, event)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		string(rec.Instance.WorkflowID),
		rec.Instance.Parameter,
		rec.Counter,
		rec.TimestampMillis,
		blob,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, wi api.WorkflowInstance) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, counter, timestamp_millis, event
		FROM run_state_events
		WHERE workflow_id = ? AND parameter = ?
		ORDER BY counter ASC`,
		string(wi.WorkflowID),
		wi.Parameter,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []EventRecord

	for rows.Next() {
		var rec EventRecord
		var blob []byte

		if err := rows.Scan(&rec.ID, &rec.Counter, &rec.TimestampMillis, &blob); err != nil {
			return nil, err
		}
		ev, err := DecodeEvent(blob)
		if err != nil {
			return nil, err
		}
		rec.Instance = wi
		rec.Event = ev
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
