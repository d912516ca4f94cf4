package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/roster-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS persons (
	id              TEXT PRIMARY KEY,
	profile_id      TEXT NOT NULL UNIQUE,
	company_id      TEXT NOT NULL,
	member          INTEGER NOT NULL DEFAULT 0,
	tier            TEXT NOT NULL DEFAULT 'green',
	next_refresh_at DATETIME NOT NULL,
	data            TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS companies (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	domain             TEXT NOT NULL,
	rerun_needed       INTEGER NOT NULL DEFAULT 0,
	rerun_reason       TEXT,
	rerun_requested_at DATETIME,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS change_events (
	id          TEXT PRIMARY KEY,
	person_id   TEXT NOT NULL,
	critical    INTEGER NOT NULL,
	notified    INTEGER NOT NULL DEFAULT 0,
	detected_at DATETIME NOT NULL,
	data        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	person_id  TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	person_id    TEXT NOT NULL,
	acknowledged INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL,
	data         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS webhook_keys (
	key         TEXT PRIMARY KEY,
	received_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_persons_tier_due ON persons(tier, member, next_refresh_at);
CREATE INDEX IF NOT EXISTS idx_persons_company ON persons(company_id);
CREATE INDEX IF NOT EXISTS idx_change_events_person ON change_events(person_id, detected_at);
CREATE INDEX IF NOT EXISTS idx_notifications_person ON notifications(person_id, acknowledged);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreatePerson(ctx context.Context, p *model.Person) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal person")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO persons (id, profile_id, company_id, member, tier, next_refresh_at, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ProfileID, p.CompanyID, boolToInt(p.Member), string(p.Tier), p.NextRefreshAt, string(data), now, now,
	)
	return eris.Wrapf(err, "sqlite: insert person %s", p.ProfileID)
}

func (s *SQLiteStore) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	return s.scanPerson(s.db.QueryRowContext(ctx,
		`SELECT data FROM persons WHERE id = ?`, id))
}

func (s *SQLiteStore) GetPersonByProfileID(ctx context.Context, profileID string) (*model.Person, error) {
	return s.scanPerson(s.db.QueryRowContext(ctx,
		`SELECT data FROM persons WHERE profile_id = ?`, profileID))
}

func (s *SQLiteStore) scanPerson(row *sql.Row) (*model.Person, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "sqlite: scan person")
	}
	var p model.Person
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal person")
	}
	return &p, nil
}

func (s *SQLiteStore) UpdatePerson(ctx context.Context, p *model.Person) error {
	p.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal person")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE persons SET company_id = ?, member = ?, tier = ?, next_refresh_at = ?, data = ?, updated_at = ? WHERE id = ?`,
		p.CompanyID, boolToInt(p.Member), string(p.Tier), p.NextRefreshAt, string(data), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update person %s", p.ID)
	}
	return checkRowsAffected(res, "person", p.ID)
}

func (s *SQLiteStore) ListDue(ctx context.Context, tier model.RefreshTier, now time.Time, limit int) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM persons WHERE tier = ? AND member = 1 AND next_refresh_at <= ? ORDER BY next_refresh_at ASC LIMIT ?`,
		string(tier), now, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list due")
	}
	defer rows.Close() //nolint:errcheck
	return collectPersons(rows)
}

func (s *SQLiteStore) ListMembers(ctx context.Context, companyID string) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM persons WHERE company_id = ? AND member = 1`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list members")
	}
	defer rows.Close() //nolint:errcheck
	return collectPersons(rows)
}

func collectPersons(rows *sql.Rows) ([]model.Person, error) {
	var out []model.Person
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan person row")
		}
		var p model.Person
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal person row")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, domain, rerun_needed, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
		c.ID, c.Name, c.Domain, now, now,
	)
	return eris.Wrapf(err, "sqlite: insert company %s", c.Domain)
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	var rerunNeeded int
	var reason sql.NullString
	var requestedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, domain, rerun_needed, rerun_reason, rerun_requested_at, created_at, updated_at FROM companies WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Name, &c.Domain, &rerunNeeded, &reason, &requestedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get company %s", id)
	}
	c.RerunNeeded = rerunNeeded != 0
	c.RerunReason = reason.String
	if requestedAt.Valid {
		c.RerunRequestedAt = requestedAt.Time
	}
	return &c, nil
}

func (s *SQLiteStore) MarkRerunNeeded(ctx context.Context, companyID, reason string, at time.Time) (bool, error) {
	// Monotonic OR: only the false→true transition writes.
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET rerun_needed = 1, rerun_reason = ?, rerun_requested_at = ?, updated_at = ? WHERE id = ? AND rerun_needed = 0`,
		reason, at, time.Now().UTC(), companyID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: mark rerun %s", companyID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ClearRerun(ctx context.Context, companyID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET rerun_needed = 0, rerun_reason = NULL, rerun_requested_at = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), companyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: clear rerun %s", companyID)
	}
	return checkRowsAffected(res, "company", companyID)
}

func (s *SQLiteStore) AppendChangeEvents(ctx context.Context, events []model.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.New().String()
		}
		data, err := json.Marshal(events[i])
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal event")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO change_events (id, person_id, critical, notified, detected_at, data) VALUES (?, ?, ?, ?, ?, ?)`,
			events[i].ID, events[i].PersonID, boolToInt(events[i].Critical), boolToInt(events[i].Notified), events[i].DetectedAt, string(data),
		); err != nil {
			return eris.Wrap(err, "sqlite: insert event")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit events")
}

func (s *SQLiteStore) ListChangeEvents(ctx context.Context, personID string, limit int) ([]model.ChangeEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM change_events WHERE person_id = ? ORDER BY detected_at DESC LIMIT ?`,
		personID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ChangeEvent
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		var ev model.ChangeEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal event")
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkEventsNotified(ctx context.Context, personID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE change_events SET notified = 1, data = json_set(data, '$.notified', json('true')) WHERE person_id = ? AND notified = 0`,
		personID,
	)
	return eris.Wrapf(err, "sqlite: mark notified %s", personID)
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, personID string) (*model.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE person_id = ?`, personID,
	).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s", personID)
	}
	var snap model.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
	}
	return &snap, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, personID string, snap model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (person_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(person_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		personID, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save snapshot %s", personID)
}

func (s *SQLiteStore) AppendNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal notification")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, person_id, acknowledged, created_at, data) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.PersonID, boolToInt(n.Acknowledged), n.CreatedAt, string(data),
	)
	return eris.Wrap(err, "sqlite: insert notification")
}

func (s *SQLiteStore) ListUnacknowledged(ctx context.Context) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM notifications WHERE acknowledged = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list notifications")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Notification
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan notification")
		}
		var n model.Notification
		if err := json.Unmarshal([]byte(data), &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal notification")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AcknowledgeByPerson(ctx context.Context, personID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET acknowledged = 1, data = json_set(data, '$.acknowledged', json('true')) WHERE person_id = ? AND acknowledged = 0`,
		personID,
	)
	return eris.Wrapf(err, "sqlite: acknowledge %s", personID)
}

func (s *SQLiteStore) SeenWebhook(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_keys (key, received_at) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		key, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: record webhook key")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 0, nil
}

func (s *SQLiteStore) ForgetWebhook(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM webhook_keys WHERE key = ?`, key)
	return eris.Wrap(err, "sqlite: forget webhook key")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
