// Package postgres implements the store contract on pgx. Every call runs
// under a bounded timeout so a stalled database surfaces as an error
// instead of a hung request.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/privadapp/gatepass/internal/models"
	"github.com/privadapp/gatepass/internal/store"
)

const defaultCallTimeout = 5 * time.Second

// uniqueViolation is the SQLSTATE pgx reports for constraint collisions.
const uniqueViolation = "23505"

type Store struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db, timeout: defaultCallTimeout}
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrDuplicate
	}
	return err
}

const userColumns = "id, name, handle, password_hash, role, provider, subject, created_at"

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Handle, &u.PasswordHash, &u.Role, &u.Provider, &u.Subject, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	u, err := scanUser(s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	u, err := scanUser(s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE handle = $1", handle))
	if err != nil {
		return nil, fmt.Errorf("get user by handle: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserBySubject(ctx context.Context, provider, subject string) (*models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	u, err := scanUser(s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE provider = $1 AND subject = $2", provider, subject))
	if err != nil {
		return nil, fmt.Errorf("get user by subject: %w", err)
	}
	return u, nil
}

func (s *Store) UpsertUser(ctx context.Context, in *models.User) (*models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	u, err := scanUser(s.db.QueryRow(ctx,
		`INSERT INTO users (id, name, role, provider, subject)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (provider, subject) DO UPDATE SET name = EXCLUDED.name
		 RETURNING `+userColumns,
		in.ID, in.Name, in.Role, in.Provider, in.Subject))
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

func (s *Store) CreateLocalUser(ctx context.Context, name, handle, passwordHash string, role models.Role) (*models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	u, err := scanUser(s.db.QueryRow(ctx,
		`INSERT INTO users (id, name, handle, password_hash, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		uuid.New(), name, handle, passwordHash, role))
	if err != nil {
		return nil, fmt.Errorf("create local user: %w", err)
	}
	return u, nil
}

func (s *Store) SetUserRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx, "UPDATE users SET role = $2 WHERE id = $1", id, role)
	if err != nil {
		return fmt.Errorf("set user role: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		"UPDATE users SET password_hash = $2 WHERE id = $1 AND handle IS NOT NULL", id, passwordHash)
	if err != nil {
		return fmt.Errorf("reset password: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Handle, &u.PasswordHash, &u.Role, &u.Provider, &u.Subject, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const credentialColumns = "id, token, password, visitor_name, visitor_type, note, issuer_id, state, created_at, expires_at, consumed_at"

func scanCredential(row pgx.Row) (*models.AccessCredential, error) {
	var c models.AccessCredential
	err := row.Scan(&c.ID, &c.Token, &c.Password, &c.VisitorName, &c.VisitorType,
		&c.Note, &c.IssuerID, &c.State, &c.CreatedAt, &c.ExpiresAt, &c.ConsumedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) CreateCredential(ctx context.Context, c *models.AccessCredential) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx,
		`INSERT INTO access_credentials
		   (id, token, password, visitor_name, visitor_type, note, issuer_id, state, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.Token, c.Password, c.VisitorName, c.VisitorType, c.Note,
		c.IssuerID, c.State, c.CreatedAt, c.ExpiresAt)
	if err != nil {
		if mapped := mapErr(err); errors.Is(mapped, store.ErrDuplicate) {
			return mapped
		}
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

func (s *Store) GetCredentialByID(ctx context.Context, id uuid.UUID) (*models.AccessCredential, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	c, err := scanCredential(s.db.QueryRow(ctx,
		"SELECT "+credentialColumns+" FROM access_credentials WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

func (s *Store) GetCredentialByPassword(ctx context.Context, password string) (*models.AccessCredential, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	c, err := scanCredential(s.db.QueryRow(ctx,
		"SELECT "+credentialColumns+" FROM access_credentials WHERE password = $1", password))
	if err != nil {
		return nil, fmt.Errorf("get credential by password: %w", err)
	}
	return c, nil
}

func (s *Store) GetCredentialByToken(ctx context.Context, token string) (*models.AccessCredential, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	c, err := scanCredential(s.db.QueryRow(ctx,
		"SELECT "+credentialColumns+" FROM access_credentials WHERE token = $1", token))
	if err != nil {
		return nil, fmt.Errorf("get credential by token: %w", err)
	}
	return c, nil
}

func (s *Store) listCredentials(ctx context.Context, query string, args ...any) ([]models.AccessCredential, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.AccessCredential
	for rows.Next() {
		var c models.AccessCredential
		if err := rows.Scan(&c.ID, &c.Token, &c.Password, &c.VisitorName, &c.VisitorType,
			&c.Note, &c.IssuerID, &c.State, &c.CreatedAt, &c.ExpiresAt, &c.ConsumedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (s *Store) ListCredentialsByIssuer(ctx context.Context, issuerID uuid.UUID) ([]models.AccessCredential, error) {
	return s.listCredentials(ctx,
		"SELECT "+credentialColumns+" FROM access_credentials WHERE issuer_id = $1 ORDER BY created_at DESC",
		issuerID)
}

func (s *Store) ListAllCredentials(ctx context.Context) ([]models.AccessCredential, error) {
	return s.listCredentials(ctx,
		"SELECT "+credentialColumns+" FROM access_credentials ORDER BY created_at DESC")
}

func (s *Store) CompareAndSetCredentialState(ctx context.Context, id uuid.UUID, expected, next models.CredentialState, consumedAt time.Time) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		tag pgconn.CommandTag
		err error
	)
	if next == models.StateUsed {
		tag, err = s.db.Exec(ctx,
			"UPDATE access_credentials SET state = $3, consumed_at = $4 WHERE id = $1 AND state = $2",
			id, expected, next, consumedAt)
	} else {
		tag, err = s.db.Exec(ctx,
			"UPDATE access_credentials SET state = $3 WHERE id = $1 AND state = $2",
			id, expected, next)
	}
	if err != nil {
		return 0, fmt.Errorf("compare-and-set credential state: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) AppendAccessEvent(ctx context.Context, e *models.AccessEvent) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx,
		`INSERT INTO access_events (id, credential_id, guard_id, entry_mode, plates, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.CredentialID, e.GuardID, e.EntryMode, e.Plates, e.Note, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append access event: %w", err)
	}
	return nil
}

func (s *Store) ListRecentAccessEvents(ctx context.Context, windowDays int) ([]models.AccessEventDetail, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT e.id, e.credential_id, e.guard_id, e.entry_mode, e.plates, e.note, e.created_at,
		        c.visitor_name, c.visitor_type, g.name
		 FROM access_events e
		 JOIN access_credentials c ON c.id = e.credential_id
		 JOIN users g ON g.id = e.guard_id
		 WHERE e.created_at >= now() - make_interval(days => $1)
		 ORDER BY e.created_at DESC`,
		windowDays)
	if err != nil {
		return nil, fmt.Errorf("list recent access events: %w", err)
	}
	defer rows.Close()

	var events []models.AccessEventDetail
	for rows.Next() {
		var d models.AccessEventDetail
		if err := rows.Scan(&d.ID, &d.CredentialID, &d.GuardID, &d.EntryMode, &d.Plates, &d.Note,
			&d.CreatedAt, &d.VisitorName, &d.VisitorType, &d.GuardName); err != nil {
			return nil, fmt.Errorf("scan access event: %w", err)
		}
		events = append(events, d)
	}
	return events, rows.Err()
}

func (s *Store) ComputeDashboardCounters(ctx context.Context, asOf time.Time) (*store.DashboardCounters, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	dc := &store.DashboardCounters{UsersByRole: map[string]int{}}

	// Expired counts logically: passive expiry may not have reached rows yet.
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE state = 'unused' AND expires_at > $1),
		        COUNT(*) FILTER (WHERE state = 'used'),
		        COUNT(*) FILTER (WHERE state = 'expired' OR (state = 'unused' AND expires_at <= $1))
		 FROM access_credentials`, asOf,
	).Scan(&dc.CredentialsTotal, &dc.CredentialsUnused, &dc.CredentialsUsed, &dc.CredentialsExpired)
	if err != nil {
		return nil, fmt.Errorf("count credentials: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE created_at >= date_trunc('day', $1::timestamptz)),
		        COUNT(*) FILTER (WHERE created_at >= $1::timestamptz - interval '7 days')
		 FROM access_events`, asOf,
	).Scan(&dc.EventsToday, &dc.EventsWeek)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	rows, err := s.db.Query(ctx, "SELECT role, COUNT(*) FROM users GROUP BY role")
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("scan user count: %w", err)
		}
		dc.UsersByRole[role] = n
	}
	return dc, rows.Err()
}
