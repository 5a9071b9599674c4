package cache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/macrolens/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS result_cache (
	cache_key  TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_result_cache_created ON result_cache(created_at);
`

// SQLiteStore keeps entries in a sqlite database as msgpack blobs.
// It is meant for an in-memory database; nothing here outlives the process.
// Every Get decodes a fresh table, structurally equal to the one stored.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the cache table if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create result_cache table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// wireTable is the msgpack shape of a domain.Table.
type wireTable struct {
	Columns []string     `msgpack:"c"`
	Dates   []int64      `msgpack:"d"`
	Values  [][]*float64 `msgpack:"v"`
}

func encodeTable(t *domain.Table) ([]byte, error) {
	w := wireTable{Columns: t.Columns()}
	for _, r := range t.Rows() {
		w.Dates = append(w.Dates, r.Date.Unix())
		vs := make([]*float64, len(r.Values))
		for i, v := range r.Values {
			if v.Valid {
				f := v.Float
				vs[i] = &f
			}
		}
		w.Values = append(w.Values, vs)
	}
	return msgpack.Marshal(&w)
}

func decodeTable(data []byte) (*domain.Table, error) {
	var w wireTable
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if len(w.Dates) != len(w.Values) {
		return nil, fmt.Errorf("corrupt table: %d dates, %d value rows", len(w.Dates), len(w.Values))
	}
	rows := make([]domain.Row, len(w.Dates))
	for i, d := range w.Dates {
		vs := make([]domain.Value, len(w.Values[i]))
		for j, p := range w.Values[i] {
			if p != nil {
				vs[j] = domain.Float(*p)
			}
		}
		rows[i] = domain.Row{Date: time.Unix(d, 0).UTC(), Values: vs}
	}
	return domain.NewTable(w.Columns, rows), nil
}

func (s *SQLiteStore) Get(key string) (Entry, bool, error) {
	var data []byte
	var created int64
	err := s.db.QueryRow("SELECT data, created_at FROM result_cache WHERE cache_key = ?", key).Scan(&data, &created)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	t, err := decodeTable(data)
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return Entry{Table: t, CreatedAt: time.Unix(0, created)}, true, nil
}

func (s *SQLiteStore) Put(key string, e Entry) error {
	data, err := encodeTable(e.Table)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO result_cache (cache_key, data, created_at) VALUES (?, ?, ?)",
		key, data, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM result_cache WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteExpired(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM result_cache WHERE created_at <= ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

func (s *SQLiteStore) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM result_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
