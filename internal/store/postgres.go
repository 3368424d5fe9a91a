package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/phasebridge/transition-cli/internal/db"
	"github.com/phasebridge/transition-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"max_transition_version": `SELECT COALESCE(MAX(version), 0) FROM transitions WHERE transition_id = $1`,
	"get_transition":         `SELECT payload FROM transitions WHERE transition_id = $1 AND version = $2`,
	"get_transition_latest":  `SELECT payload FROM transitions WHERE transition_id = $1 ORDER BY version DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS awards (
	award_id   TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contracts (
	contract_id TEXT PRIMARY KEY,
	payload     JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS patent_refs (
	award_id      TEXT NOT NULL,
	patent_number TEXT NOT NULL,
	payload       JSONB NOT NULL,
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
	likelihood    DOUBLE PRECISION NOT NULL,
	confidence    TEXT NOT NULL,
	detected_at   TIMESTAMPTZ NOT NULL,
	payload       JSONB NOT NULL,
	PRIMARY KEY (transition_id, version)
);

CREATE INDEX IF NOT EXISTS idx_transitions_award ON transitions(award_id);
CREATE INDEX IF NOT EXISTS idx_transitions_contract ON transitions(contract_id);
CREATE INDEX IF NOT EXISTS idx_transitions_confidence ON transitions(confidence);
CREATE INDEX IF NOT EXISTS idx_transitions_likelihood ON transitions(likelihood DESC);
`

// transitionColumns is the COPY column order for transition rows.
var transitionColumns = []string{
	"transition_id", "version", "award_id", "contract_id",
	"likelihood", "confidence", "detected_at", "payload",
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveAwards(ctx context.Context, awards []*model.Award) (int64, error) {
	rows := make([][]any, 0, len(awards))
	now := time.Now().UTC()
	for _, a := range awards {
		if a == nil || a.AwardID == "" {
			return 0, eris.New("postgres: award missing award_id")
		}
		payload, err := json.Marshal(a)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal award %s", a.AwardID)
		}
		rows = append(rows, []any{a.AwardID, payload, now})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "awards",
		Columns:      []string{"award_id", "payload", "updated_at"},
		ConflictKeys: []string{"award_id"},
	}, rows)
}

func (s *PostgresStore) SaveContracts(ctx context.Context, contracts []*model.Contract) (int64, error) {
	rows := make([][]any, 0, len(contracts))
	now := time.Now().UTC()
	for _, c := range contracts {
		if c == nil || c.ContractID == "" {
			return 0, eris.New("postgres: contract missing contract_id")
		}
		payload, err := json.Marshal(c)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal contract %s", c.ContractID)
		}
		rows = append(rows, []any{c.ContractID, payload, now})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "contracts",
		Columns:      []string{"contract_id", "payload", "updated_at"},
		ConflictKeys: []string{"contract_id"},
	}, rows)
}

func (s *PostgresStore) SavePatents(ctx context.Context, patents map[string][]model.PatentRef) (int64, error) {
	var rows [][]any
	for _, awardID := range sortedKeys(patents) {
		for _, ref := range patents[awardID] {
			if ref.PatentNumber == "" {
				return 0, eris.Errorf("postgres: patent for award %s missing patent_number", awardID)
			}
			payload, err := json.Marshal(ref)
			if err != nil {
				return 0, eris.Wrapf(err, "postgres: marshal patent %s", ref.PatentNumber)
			}
			rows = append(rows, []any{awardID, ref.PatentNumber, payload})
		}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "patent_refs",
		Columns:      []string{"award_id", "patent_number", "payload"},
		ConflictKeys: []string{"award_id", "patent_number"},
	}, rows)
}

func (s *PostgresStore) SaveTechLabels(ctx context.Context, awardAreas, contractAreas map[string]string) (int64, error) {
	var rows [][]any
	for _, group := range []struct {
		kind  string
		areas map[string]string
	}{
		{"award", awardAreas},
		{"contract", contractAreas},
	} {
		for _, id := range sortedKeys(group.areas) {
			rows = append(rows, []any{id, group.kind, group.areas[id]})
		}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "tech_labels",
		Columns:      []string{"id", "kind", "label"},
		ConflictKeys: []string{"id", "kind"},
	}, rows)
}

func (s *PostgresStore) ListAwards(ctx context.Context) ([]*model.Award, error) {
	rows, err := s.pool.Query(ctx, `SELECT payload FROM awards ORDER BY award_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list awards")
	}
	defer rows.Close()

	var awards []*model.Award
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan award")
		}
		var a model.Award
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal award")
		}
		awards = append(awards, &a)
	}
	return awards, eris.Wrap(rows.Err(), "postgres: list awards iterate")
}

func (s *PostgresStore) ListContracts(ctx context.Context) ([]*model.Contract, error) {
	rows, err := s.pool.Query(ctx, `SELECT payload FROM contracts ORDER BY contract_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contracts")
	}
	defer rows.Close()

	var contracts []*model.Contract
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contract")
		}
		var c model.Contract
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal contract")
		}
		contracts = append(contracts, &c)
	}
	return contracts, eris.Wrap(rows.Err(), "postgres: list contracts iterate")
}

func (s *PostgresStore) LoadInputs(ctx context.Context) (*model.SignalInputs, error) {
	inputs := &model.SignalInputs{
		Patents:           make(map[string][]model.PatentRef),
		AwardTechAreas:    make(map[string]string),
		ContractTechAreas: make(map[string]string),
	}

	rows, err := s.pool.Query(ctx,
		`SELECT award_id, payload FROM patent_refs ORDER BY award_id, patent_number`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load patents")
	}
	defer rows.Close()
	for rows.Next() {
		var awardID string
		var payload []byte
		if err := rows.Scan(&awardID, &payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan patent")
		}
		var ref model.PatentRef
		if err := json.Unmarshal(payload, &ref); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal patent")
		}
		inputs.Patents[awardID] = append(inputs.Patents[awardID], ref)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: load patents iterate")
	}

	labelRows, err := s.pool.Query(ctx, `SELECT id, kind, label FROM tech_labels`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load tech labels")
	}
	defer labelRows.Close()
	for labelRows.Next() {
		var id, kind, label string
		if err := labelRows.Scan(&id, &kind, &label); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tech label")
		}
		switch kind {
		case "award":
			inputs.AwardTechAreas[id] = label
		case "contract":
			inputs.ContractTechAreas[id] = label
		}
	}
	return inputs, eris.Wrap(labelRows.Err(), "postgres: load tech labels iterate")
}

func (s *PostgresStore) SaveTransitions(ctx context.Context, transitions []*model.Transition) (int64, error) {
	if len(transitions) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(transitions))
	seen := make(map[string]bool, len(transitions))
	for _, t := range transitions {
		if t == nil || t.ID == "" {
			return 0, eris.New("postgres: transition missing id")
		}
		if !seen[t.ID] {
			seen[t.ID] = true
			ids = append(ids, t.ID)
		}
	}

	versions := make(map[string]int, len(ids))
	rows, err := s.pool.Query(ctx,
		`SELECT transition_id, MAX(version) FROM transitions WHERE transition_id = ANY($1) GROUP BY transition_id`,
		ids,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: max transition versions")
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var v int
		if err := rows.Scan(&id, &v); err != nil {
			return 0, eris.Wrap(err, "postgres: scan max version")
		}
		versions[id] = v
	}
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "postgres: max versions iterate")
	}

	copyRows := make([][]any, 0, len(transitions))
	for _, t := range transitions {
		versions[t.ID]++
		t.Version = versions[t.ID]
		payload, err := json.Marshal(t)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal transition %s", t.ID)
		}
		copyRows = append(copyRows, []any{
			t.ID, t.Version, t.AwardID, t.ContractID,
			t.LikelihoodScore, string(t.Confidence), t.DetectedAt.UTC(), payload,
		})
	}
	return db.CopyFrom(ctx, s.pool, "transitions", transitionColumns, copyRows)
}

func (s *PostgresStore) GetTransition(ctx context.Context, id string, version int) (*model.Transition, error) {
	var row pgx.Row
	if version > 0 {
		row = s.pool.QueryRow(ctx,
			`SELECT payload FROM transitions WHERE transition_id = $1 AND version = $2`, id, version)
	} else {
		row = s.pool.QueryRow(ctx,
			`SELECT payload FROM transitions WHERE transition_id = $1 ORDER BY version DESC LIMIT 1`, id)
	}

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("transition not found: %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get transition %s", id)
	}
	var t model.Transition
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal transition")
	}
	return &t, nil
}

func (s *PostgresStore) ListTransitions(ctx context.Context, filter TransitionFilter) ([]*model.Transition, error) {
	query := `SELECT payload FROM transitions
	 WHERE version = (SELECT MAX(version) FROM transitions t2 WHERE t2.transition_id = transitions.transition_id)`
	args := []any{}
	argIdx := 1

	if filter.AwardID != "" {
		query += fmt.Sprintf(` AND award_id = $%d`, argIdx)
		args = append(args, filter.AwardID)
		argIdx++
	}
	if filter.ContractID != "" {
		query += fmt.Sprintf(` AND contract_id = $%d`, argIdx)
		args = append(args, filter.ContractID)
		argIdx++
	}
	if filter.Confidence != "" {
		query += fmt.Sprintf(` AND confidence = $%d`, argIdx)
		args = append(args, string(filter.Confidence))
		argIdx++
	}
	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND likelihood >= $%d`, argIdx)
		args = append(args, filter.MinScore)
		argIdx++
	}
	query += ` ORDER BY likelihood DESC, transition_id`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, argIdx)
			args = append(args, filter.Offset)
			argIdx++
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list transitions")
	}
	defer rows.Close()

	var transitions []*model.Transition
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan transition")
		}
		var t model.Transition
		if err := json.Unmarshal(payload, &t); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal transition")
		}
		transitions = append(transitions, &t)
	}
	return transitions, eris.Wrap(rows.Err(), "postgres: list transitions iterate")
}
