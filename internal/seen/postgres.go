package seen

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/luxmed-sniper/internal/db"
)

// PostgresStore keeps the seen set in Postgres, for deployments where the
// checker moves between hosts and a local file would be lost.
type PostgresStore struct {
	db  *db.DB
	log zerolog.Logger

	// ids known to be on disk already; Flush only inserts the delta.
	persisted Set
}

func NewPostgresStore(d *db.DB, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{db: d, log: log, persisted: NewSet()}
}

const seenSchema = `
CREATE TABLE IF NOT EXISTS seen_appointments (
	appointment_id TEXT PRIMARY KEY,
	first_seen_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Load creates the table if absent and reads every recorded id. Unlike a
// corrupt file, an unreachable database is surfaced: it is an operator
// problem, and silently starting empty would re-notify everything.
func (ps *PostgresStore) Load(ctx context.Context) (Set, error) {
	if err := ps.db.Exec(ctx, seenSchema); err != nil {
		return nil, fmt.Errorf("seen schema: %w", err)
	}
	rows, err := ps.db.Query(ctx, `SELECT appointment_id FROM seen_appointments`)
	if err != nil {
		return nil, fmt.Errorf("load seen ids: %w", err)
	}
	defer rows.Close()

	s := NewSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		s.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ps.persisted = s.clone()
	return s, nil
}

func (ps *PostgresStore) Flush(ctx context.Context, s Set) error {
	for _, id := range s.sorted() {
		if ps.persisted.Contains(id) {
			continue
		}
		err := ps.db.Exec(ctx,
			`INSERT INTO seen_appointments(appointment_id) VALUES ($1) ON CONFLICT DO NOTHING`, id)
		if err != nil {
			return fmt.Errorf("flush seen id: %w", err)
		}
		ps.persisted.Add(id)
	}
	return nil
}
