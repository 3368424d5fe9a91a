package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/phasebridge/transition-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS awards (
	award_id   TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS contracts (
	contract_id TEXT PRIMARY KEY,
	payload     TEXT NOT NULL,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS patent_refs (
	award_id      TEXT NOT NULL,
	patent_number TEXT NOT NULL,
	payload       TEXT NOT NULL,
	PRIMARY KEY (award_id, patent_number)
);

CREATE TABLE IF NOT EXISTS tech_labels (
	id    TEXT NOT NULL,
	kind  TEXT NOT NULL CHECK (kind IN ('award', 'contract')),
	label TEXT NOT NULL,
	PRIMARY KEY (id, kind)
);

CREATE TABLE IF NOT EXISTS transitions (
	transition_id TEXT NOT NULL,
	version       INTEGER NOT NULL,
	award_id      TEXT NOT NULL,
	contract_id   TEXT NOT NULL,
	likelihood    REAL NOT NULL,
	confidence    TEXT NOT NULL,
	detected_at   DATETIME NOT NULL,
	payload       TEXT NOT NULL,
	PRIMARY KEY (transition_id, version)
);

CREATE INDEX IF NOT EXISTS idx_transitions_award ON transitions(award_id);
CREATE INDEX IF NOT EXISTS idx_transitions_contract ON transitions(contract_id);
CREATE INDEX IF NOT EXISTS idx_transitions_confidence ON transitions(confidence);
CREATE INDEX IF NOT EXISTS idx_transitions_likelihood ON transitions(likelihood);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveAwards(ctx context.Context, awards []*model.Award) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin save awards")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO awards (award_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (award_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare save awards")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, a := range awards {
		if a == nil || a.AwardID == "" {
			return 0, eris.New("sqlite: award missing award_id")
		}
		payload, err := json.Marshal(a)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal award %s", a.AwardID)
		}
		if _, err := stmt.ExecContext(ctx, a.AwardID, string(payload), now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: save award %s", a.AwardID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit save awards")
	}
	return n, nil
}

func (s *SQLiteStore) SaveContracts(ctx context.Context, contracts []*model.Contract) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin save contracts")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO contracts (contract_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (contract_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare save contracts")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, c := range contracts {
		if c == nil || c.ContractID == "" {
			return 0, eris.New("sqlite: contract missing contract_id")
		}
		payload, err := json.Marshal(c)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal contract %s", c.ContractID)
		}
		if _, err := stmt.ExecContext(ctx, c.ContractID, string(payload), now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: save contract %s", c.ContractID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit save contracts")
	}
	return n, nil
}

func (s *SQLiteStore) SavePatents(ctx context.Context, patents map[string][]model.PatentRef) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin save patents")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO patent_refs (award_id, patent_number, payload) VALUES (?, ?, ?)
		 ON CONFLICT (award_id, patent_number) DO UPDATE SET payload = excluded.payload`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare save patents")
	}
	defer stmt.Close()

	var n int64
	for _, awardID := range sortedKeys(patents) {
		for _, ref := range patents[awardID] {
			if ref.PatentNumber == "" {
				return 0, eris.Errorf("sqlite: patent for award %s missing patent_number", awardID)
			}
			payload, err := json.Marshal(ref)
			if err != nil {
				return 0, eris.Wrapf(err, "sqlite: marshal patent %s", ref.PatentNumber)
			}
			if _, err := stmt.ExecContext(ctx, awardID, ref.PatentNumber, string(payload)); err != nil {
				return 0, eris.Wrapf(err, "sqlite: save patent %s", ref.PatentNumber)
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit save patents")
	}
	return n, nil
}

func (s *SQLiteStore) SaveTechLabels(ctx context.Context, awardAreas, contractAreas map[string]string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin save tech labels")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tech_labels (id, kind, label) VALUES (?, ?, ?)
		 ON CONFLICT (id, kind) DO UPDATE SET label = excluded.label`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare save tech labels")
	}
	defer stmt.Close()

	var n int64
	for _, group := range []struct {
		kind  string
		areas map[string]string
	}{
		{"award", awardAreas},
		{"contract", contractAreas},
	} {
		for _, id := range sortedKeys(group.areas) {
			if _, err := stmt.ExecContext(ctx, id, group.kind, group.areas[id]); err != nil {
				return 0, eris.Wrapf(err, "sqlite: save tech label %s/%s", group.kind, id)
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit save tech labels")
	}
	return n, nil
}

func (s *SQLiteStore) ListAwards(ctx context.Context) ([]*model.Award, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM awards ORDER BY award_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list awards")
	}
	defer rows.Close()

	var awards []*model.Award
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan award")
		}
		var a model.Award
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal award")
		}
		awards = append(awards, &a)
	}
	return awards, eris.Wrap(rows.Err(), "sqlite: list awards iterate")
}

func (s *SQLiteStore) ListContracts(ctx context.Context) ([]*model.Contract, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM contracts ORDER BY contract_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contracts")
	}
	defer rows.Close()

	var contracts []*model.Contract
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contract")
		}
		var c model.Contract
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal contract")
		}
		contracts = append(contracts, &c)
	}
	return contracts, eris.Wrap(rows.Err(), "sqlite: list contracts iterate")
}

func (s *SQLiteStore) LoadInputs(ctx context.Context) (*model.SignalInputs, error) {
	inputs := &model.SignalInputs{
		Patents:           make(map[string][]model.PatentRef),
		AwardTechAreas:    make(map[string]string),
		ContractTechAreas: make(map[string]string),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT award_id, payload FROM patent_refs ORDER BY award_id, patent_number`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load patents")
	}
	defer rows.Close()
	for rows.Next() {
		var awardID, payload string
		if err := rows.Scan(&awardID, &payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan patent")
		}
		var ref model.PatentRef
		if err := json.Unmarshal([]byte(payload), &ref); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal patent")
		}
		inputs.Patents[awardID] = append(inputs.Patents[awardID], ref)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load patents iterate")
	}

	labelRows, err := s.db.QueryContext(ctx, `SELECT id, kind, label FROM tech_labels`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load tech labels")
	}
	defer labelRows.Close()
	for labelRows.Next() {
		var id, kind, label string
		if err := labelRows.Scan(&id, &kind, &label); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tech label")
		}
		switch kind {
		case "award":
			inputs.AwardTechAreas[id] = label
		case "contract":
			inputs.ContractTechAreas[id] = label
		}
	}
	return inputs, eris.Wrap(labelRows.Err(), "sqlite: load tech labels iterate")
}

func (s *SQLiteStore) SaveTransitions(ctx context.Context, transitions []*model.Transition) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin save transitions")
	}
	defer tx.Rollback() //nolint:errcheck

	maxStmt, err := tx.PrepareContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM transitions WHERE transition_id = ?`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare max version")
	}
	defer maxStmt.Close()

	insStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transitions
		 (transition_id, version, award_id, contract_id, likelihood, confidence, detected_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert transition")
	}
	defer insStmt.Close()

	var n int64
	for _, t := range transitions {
		if t == nil || t.ID == "" {
			return 0, eris.New("sqlite: transition missing id")
		}
		var current int
		if err := maxStmt.QueryRowContext(ctx, t.ID).Scan(&current); err != nil {
			return 0, eris.Wrapf(err, "sqlite: max version for %s", t.ID)
		}
		t.Version = current + 1

		payload, err := json.Marshal(t)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal transition %s", t.ID)
		}
		_, err = insStmt.ExecContext(ctx,
			t.ID, t.Version, t.AwardID, t.ContractID,
			t.LikelihoodScore, string(t.Confidence), t.DetectedAt.UTC(), string(payload),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert transition %s v%d", t.ID, t.Version)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit save transitions")
	}
	return n, nil
}

func (s *SQLiteStore) GetTransition(ctx context.Context, id string, version int) (*model.Transition, error) {
	var row *sql.Row
	if version > 0 {
		row = s.db.QueryRowContext(ctx,
			`SELECT payload FROM transitions WHERE transition_id = ? AND version = ?`, id, version)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT payload FROM transitions WHERE transition_id = ? ORDER BY version DESC LIMIT 1`, id)
	}

	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Errorf("transition not found: %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get transition %s", id)
	}
	var t model.Transition
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal transition")
	}
	return &t, nil
}

func (s *SQLiteStore) ListTransitions(ctx context.Context, filter TransitionFilter) ([]*model.Transition, error) {
	query := `SELECT payload FROM transitions
	 WHERE version = (SELECT MAX(version) FROM transitions t2 WHERE t2.transition_id = transitions.transition_id)`
	var args []any

	if filter.AwardID != "" {
		query += ` AND award_id = ?`
		args = append(args, filter.AwardID)
	}
	if filter.ContractID != "" {
		query += ` AND contract_id = ?`
		args = append(args, filter.ContractID)
	}
	if filter.Confidence != "" {
		query += ` AND confidence = ?`
		args = append(args, string(filter.Confidence))
	}
	if filter.MinScore > 0 {
		query += ` AND likelihood >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY likelihood DESC, transition_id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list transitions")
	}
	defer rows.Close()

	var transitions []*model.Transition
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan transition")
		}
		var t model.Transition
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal transition")
		}
		transitions = append(transitions, &t)
	}
	return transitions, eris.Wrap(rows.Err(), "sqlite: list transitions iterate")
}

// sortedKeys returns map keys in sorted order so save operations touch rows
// deterministically.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
