package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/roster-cli/internal/db"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	// The database may still be coming up when the process starts; retry the
	// initial ping on transient connection failures.
	pingCfg := resilience.DefaultRetryConfig()
	pingCfg.OnRetry = resilience.RetryLogger("postgres", "ping")
	if err := resilience.Do(ctx, pingCfg, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS persons (
	id              TEXT PRIMARY KEY,
	profile_id      TEXT NOT NULL UNIQUE,
	company_id      TEXT NOT NULL,
	member          BOOLEAN NOT NULL DEFAULT false,
	tier            TEXT NOT NULL DEFAULT 'green',
	next_refresh_at TIMESTAMPTZ NOT NULL,
	data            JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	domain             TEXT NOT NULL,
	rerun_needed       BOOLEAN NOT NULL DEFAULT false,
	rerun_reason       TEXT,
	rerun_requested_at TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS change_events (
	id          TEXT PRIMARY KEY,
	person_id   TEXT NOT NULL,
	critical    BOOLEAN NOT NULL,
	notified    BOOLEAN NOT NULL DEFAULT false,
	detected_at TIMESTAMPTZ NOT NULL,
	data        JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	person_id  TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	person_id    TEXT NOT NULL,
	acknowledged BOOLEAN NOT NULL DEFAULT false,
	created_at   TIMESTAMPTZ NOT NULL,
	data         JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS webhook_keys (
	key         TEXT PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_persons_tier_due ON persons(tier, member, next_refresh_at);
CREATE INDEX IF NOT EXISTS idx_persons_company ON persons(company_id);
CREATE INDEX IF NOT EXISTS idx_change_events_person ON change_events(person_id, detected_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_person ON notifications(person_id, acknowledged);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreatePerson(ctx context.Context, p *model.Person) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal person")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO persons (id, profile_id, company_id, member, tier, next_refresh_at, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.ProfileID, p.CompanyID, p.Member, string(p.Tier), p.NextRefreshAt, data, now, now,
	)
	return eris.Wrapf(err, "postgres: insert person %s", p.ProfileID)
}

func (s *PostgresStore) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	return scanPersonRow(s.pool.QueryRow(ctx, `SELECT data FROM persons WHERE id = $1`, id))
}

func (s *PostgresStore) GetPersonByProfileID(ctx context.Context, profileID string) (*model.Person, error) {
	return scanPersonRow(s.pool.QueryRow(ctx, `SELECT data FROM persons WHERE profile_id = $1`, profileID))
}

func scanPersonRow(row pgx.Row) (*model.Person, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "postgres: scan person")
	}
	var p model.Person
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal person")
	}
	return &p, nil
}

func (s *PostgresStore) UpdatePerson(ctx context.Context, p *model.Person) error {
	p.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal person")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons SET company_id = $1, member = $2, tier = $3, next_refresh_at = $4, data = $5, updated_at = $6 WHERE id = $7`,
		p.CompanyID, p.Member, string(p.Tier), p.NextRefreshAt, data, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update person %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "person %s", p.ID)
	}
	return nil
}

func (s *PostgresStore) ListDue(ctx context.Context, tier model.RefreshTier, now time.Time, limit int) ([]model.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM persons WHERE tier = $1 AND member = true AND next_refresh_at <= $2 ORDER BY next_refresh_at ASC LIMIT $3`,
		string(tier), now, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list due")
	}
	defer rows.Close()
	return collectPersonRows(rows)
}

func (s *PostgresStore) ListMembers(ctx context.Context, companyID string) ([]model.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM persons WHERE company_id = $1 AND member = true`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list members")
	}
	defer rows.Close()
	return collectPersonRows(rows)
}

func collectPersonRows(rows pgx.Rows) ([]model.Person, error) {
	var out []model.Person
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan person row")
		}
		var p model.Person
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal person row")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (id, name, domain, rerun_needed, created_at, updated_at) VALUES ($1, $2, $3, false, $4, $5)`,
		c.ID, c.Name, c.Domain, now, now,
	)
	return eris.Wrapf(err, "postgres: insert company %s", c.Domain)
}

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	var reason *string
	var requestedAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, domain, rerun_needed, rerun_reason, rerun_requested_at, created_at, updated_at FROM companies WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Domain, &c.RerunNeeded, &reason, &requestedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get company %s", id)
	}
	if reason != nil {
		c.RerunReason = *reason
	}
	if requestedAt != nil {
		c.RerunRequestedAt = *requestedAt
	}
	return &c, nil
}

func (s *PostgresStore) MarkRerunNeeded(ctx context.Context, companyID, reason string, at time.Time) (bool, error) {
	// Monotonic OR: only the false→true transition writes, so concurrent
	// webhook and sweep races cannot double-trigger.
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET rerun_needed = true, rerun_reason = $1, rerun_requested_at = $2, updated_at = now() WHERE id = $3 AND rerun_needed = false`,
		reason, at, companyID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: mark rerun %s", companyID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ClearRerun(ctx context.Context, companyID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET rerun_needed = false, rerun_reason = NULL, rerun_requested_at = NULL, updated_at = now() WHERE id = $1`,
		companyID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: clear rerun %s", companyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "company %s", companyID)
	}
	return nil
}

func (s *PostgresStore) AppendChangeEvents(ctx context.Context, events []model.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.New().String()
		}
		data, err := json.Marshal(events[i])
		if err != nil {
			return eris.Wrap(err, "postgres: marshal event")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO change_events (id, person_id, critical, notified, detected_at, data) VALUES ($1, $2, $3, $4, $5, $6)`,
			events[i].ID, events[i].PersonID, events[i].Critical, events[i].Notified, events[i].DetectedAt, data,
		); err != nil {
			return eris.Wrap(err, "postgres: insert event")
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit events")
}

func (s *PostgresStore) ListChangeEvents(ctx context.Context, personID string, limit int) ([]model.ChangeEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM change_events WHERE person_id = $1 ORDER BY detected_at DESC LIMIT $2`,
		personID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var out []model.ChangeEvent
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		var ev model.ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal event")
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkEventsNotified(ctx context.Context, personID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE change_events SET notified = true, data = jsonb_set(data, '{notified}', 'true') WHERE person_id = $1 AND notified = false`,
		personID,
	)
	return eris.Wrapf(err, "postgres: mark notified %s", personID)
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, personID string) (*model.Snapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM snapshots WHERE person_id = $1`, personID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get snapshot %s", personID)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
	}
	return &snap, nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, personID string, snap model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (person_id, data, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (person_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		personID, data,
	)
	return eris.Wrapf(err, "postgres: save snapshot %s", personID)
}

func (s *PostgresStore) AppendNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal notification")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO notifications (id, person_id, acknowledged, created_at, data) VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.PersonID, n.Acknowledged, n.CreatedAt, data,
	)
	return eris.Wrap(err, "postgres: insert notification")
}

func (s *PostgresStore) ListUnacknowledged(ctx context.Context) ([]model.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM notifications WHERE acknowledged = false ORDER BY created_at ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list notifications")
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan notification")
		}
		var n model.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal notification")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AcknowledgeByPerson(ctx context.Context, personID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET acknowledged = true, data = jsonb_set(data, '{acknowledged}', 'true') WHERE person_id = $1 AND acknowledged = false`,
		personID,
	)
	return eris.Wrapf(err, "postgres: acknowledge %s", personID)
}

func (s *PostgresStore) SeenWebhook(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO webhook_keys (key, received_at) VALUES ($1, now()) ON CONFLICT (key) DO NOTHING`,
		key,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: record webhook key")
	}
	return tag.RowsAffected() == 0, nil
}

func (s *PostgresStore) ForgetWebhook(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM webhook_keys WHERE key = $1`, key)
	return eris.Wrap(err, "postgres: forget webhook key")
}
