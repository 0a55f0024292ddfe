package replay

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store persists episode headers and step records in SQLite for the
// forensic tooling.
type Store struct {
	conn *sqlx.DB
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.conn.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS episodes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		scenario TEXT NOT NULL,
		seed INTEGER NOT NULL,
		winner INTEGER NOT NULL DEFAULT -1,
		steps INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS steps (
		episode_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		turn INTEGER NOT NULL,
		phase TEXT NOT NULL,
		player INTEGER NOT NULL,
		unit_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		target_col INTEGER NOT NULL,
		target_row INTEGER NOT NULL,
		target_unit INTEGER NOT NULL,
		legal INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		damage INTEGER NOT NULL DEFAULT 0,
		killed INTEGER NOT NULL DEFAULT 0,
		reward REAL NOT NULL DEFAULT 0,
		terminal INTEGER NOT NULL DEFAULT 0,
		winner INTEGER NOT NULL DEFAULT -1,
		state_hash INTEGER NOT NULL,
		PRIMARY KEY (episode_id, step)
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// SaveEpisode inserts the episode header.
func (s *Store) SaveEpisode(ep EpisodeRecord) error {
	_, err := s.conn.NamedExec(`
		INSERT INTO episodes (id, name, scenario, seed, winner, steps, created_at)
		VALUES (:id, :name, :scenario, :seed, :winner, :steps, :created_at)`, ep)
	if err != nil {
		return fmt.Errorf("save episode %s: %w", ep.ID, err)
	}
	return nil
}

// AppendStep inserts one step record.
func (s *Store) AppendStep(rec StepRecord) error {
	_, err := s.conn.NamedExec(`
		INSERT INTO steps (episode_id, step, turn, phase, player, unit_id, kind,
			target_col, target_row, target_unit, legal, reason, damage, killed,
			reward, terminal, winner, state_hash)
		VALUES (:episode_id, :step, :turn, :phase, :player, :unit_id, :kind,
			:target_col, :target_row, :target_unit, :legal, :reason, :damage,
			:killed, :reward, :terminal, :winner, :state_hash)`, rec)
	if err != nil {
		return fmt.Errorf("append step %d of %s: %w", rec.Step, rec.EpisodeID, err)
	}
	return nil
}

// FinishEpisode records the outcome once the episode terminates.
func (s *Store) FinishEpisode(id string, winner, steps int) error {
	_, err := s.conn.Exec(`UPDATE episodes SET winner = ?, steps = ? WHERE id = ?`, winner, steps, id)
	if err != nil {
		return fmt.Errorf("finish episode %s: %w", id, err)
	}
	return nil
}

// LoadEpisode fetches a header and its ordered steps.
func (s *Store) LoadEpisode(id string) (EpisodeRecord, []StepRecord, error) {
	var ep EpisodeRecord
	if err := s.conn.Get(&ep, `SELECT * FROM episodes WHERE id = ?`, id); err != nil {
		return ep, nil, fmt.Errorf("load episode %s: %w", id, err)
	}
	var steps []StepRecord
	if err := s.conn.Select(&steps, `SELECT * FROM steps WHERE episode_id = ? ORDER BY step`, id); err != nil {
		return ep, nil, fmt.Errorf("load steps of %s: %w", id, err)
	}
	return ep, steps, nil
}

// ListEpisodes returns the most recent episode headers.
func (s *Store) ListEpisodes(limit int) ([]EpisodeRecord, error) {
	var eps []EpisodeRecord
	err := s.conn.Select(&eps, `SELECT * FROM episodes ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	return eps, nil
}
