package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/petrijr/flowstate/pkg/api"
	"github.com/petrijr/flowstate/pkg/state"
)

// SQLiteRunStateStore is a RunStateStore backed by SQLite.
//
// It expects an *sql.DB using a SQLite driver (for example,
// "modernc.org/sqlite"). The caller imports the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteRunStateStore struct {
	db *sql.DB
}

var _ RunStateStore = (*SQLiteRunStateStore)(nil)

// NewSQLiteRunStateStore initializes the required schema in the given
// database and returns a new SQLiteRunStateStore.
func NewSQLiteRunStateStore(db *sql.DB) (*SQLiteRunStateStore, error) {
	s := &SQLiteRunStateStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteRunStateStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS run_states (
			workflow_id TEXT NOT NULL,
			parameter TEXT NOT NULL,
			state TEXT NOT NULL,
			timestamp_millis INTEGER NOT NULL,
			counter INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (workflow_id, parameter)
		);
		CREATE INDEX IF NOT EXISTS idx_run_states_state ON run_states(state);`,
	)
	return err
}

func (s *SQLiteRunStateStore) Save(ctx context.Context, r state.RunState) error {
	data, err := EncodeStateData(r.Data)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_states (workflow_id, parameter, state, timestamp_millis, counter, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(workflow_id, parameter) DO UPDATE SET
			state = excluded.state,
			timestamp_millis = excluded.timestamp_millis,
			counter = excluded.counter,
			data = excluded.data`,
		string(r.Instance.WorkflowID),
		r.Instance.Parameter,
		string(r.State),
		r.Timestamp,
		r.Counter,
		data,
	)
	return err
}

func (s *SQLiteRunStateStore) Get(ctx context.Context, wi api.WorkflowInstance) (state.RunState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT state, timestamp_millis, counter, data
		FROM run_states
		WHERE workflow_id = ? AND parameter = ?`,
		string(wi.WorkflowID),
		wi.Parameter,
	)

	var stateStr string
	var timestamp, counter int64
	var blob []byte

	if err := row.Scan(&stateStr, &timestamp, &counter, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state.RunState{}, ErrInstanceNotFound
		}
		return state.RunState{}, err
	}

	data, err := DecodeStateData(blob)
	if err != nil {
		return state.RunState{}, err
	}
	return state.Create(wi, state.State(stateStr), data, time.UnixMilli(timestamp), counter), nil
}

func (s *SQLiteRunStateStore) List(ctx context.Context, f Filter) ([]state.RunState, error) {
	query := `
		SELECT workflow_id, parameter, state, timestamp_millis, counter, data
		FROM run_states`
	var args []any
	var clauses []string

	if f.WorkflowID != "" {
		clauses = append(clauses, "workflow_id = ?")
		args = append(args, string(f.WorkflowID))
	}
	if f.State != "" {
		clauses = append(clauses, "state = ?")
		args = append(args, string(f.State))
	}
	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}
	query = query + " ORDER BY workflow_id, parameter"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []state.RunState

	for rows.Next() {
		var workflowID, parameter, stateStr string
		var timestamp, counter int64
		var blob []byte

		if err := rows.Scan(&workflowID, &parameter, &stateStr, &timestamp, &counter, &blob); err != nil {
			return nil, err
		}

		data, err := DecodeStateData(blob)
		if err != nil {
			return nil, err
		}
		wi := api.WorkflowInstance{WorkflowID: api.WorkflowID(workflowID), Parameter: parameter}
		result = append(result, state.Create(wi, state.State(stateStr), data, time.UnixMilli(timestamp), counter))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
