// Package pgstore implements store.Store on PostgreSQL through database/sql
// and the pgx stdlib driver.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrEthical07/rolegate/internal/ids"
	"github.com/MrEthical07/rolegate/store"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Schema creates the tables the store reads and writes.
const Schema = `
create table if not exists roles (
	id          text primary key,
	name        text not null,
	description text not null default '',
	protected   boolean not null default false,
	updated_at  timestamptz not null
);

create table if not exists role_permissions (
	role_id    text not null references roles(id) on delete cascade,
	permission text not null,
	primary key (role_id, permission)
);

create table if not exists identities (
	id              text primary key,
	email           text not null unique,
	name            text not null default '',
	password_hash   text not null default '',
	status          text not null,
	role_id         text not null references roles(id),
	account_version bigint not null default 1,
	created_at      timestamptz not null default now()
);

create index if not exists identities_role_id_idx on identities(role_id);
`

// Role versions are stored with microsecond precision.
const versionStep = time.Microsecond

// roleSelect reads a role and its permissions in one statement so both come
// from the same snapshot.
const roleSelect = `
	select r.id, r.name, r.description, r.protected, r.updated_at,
	       coalesce(json_agg(p.permission order by p.permission) filter (where p.permission is not null), '[]')
	from roles r
	left join role_permissions p on p.role_id = r.id
`

const identitySelect = `
	select id, email, name, password_hash, status, role_id, account_version, created_at
	from identities
`

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects using the pgx driver with pool defaults for a session
// service.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return NewWithClock(db, time.Now)
}

// NewWithClock wraps db and reads time from now.
func NewWithClock(db *sql.DB, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, now: now}
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) FindRole(ctx context.Context, id string) (store.Role, error) {
	row := s.db.QueryRowContext(ctx, roleSelect+`
		where r.id = $1
		group by r.id
	`, id)
	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Role{}, store.ErrNotFound
	}
	if err != nil {
		return store.Role{}, unavailable(err)
	}
	return role, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]store.Role, error) {
	rows, err := s.db.QueryContext(ctx, roleSelect+`
		group by r.id
		order by r.name
	`)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	result := []store.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return result, nil
}

func (s *Store) CreateRole(ctx context.Context, role store.Role) (store.Role, error) {
	if role.ID == "" {
		role.ID = ids.New()
	}
	role.Permissions = store.NormalizeKeys(role.Permissions)
	role.UpdatedAt = store.NextVersion(time.Time{}, s.now(), versionStep).UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Role{}, unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into roles (id, name, description, protected, updated_at)
		values ($1, $2, $3, $4, $5)
	`, role.ID, role.Name, role.Description, role.Protected, role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return store.Role{}, store.ErrConflict
		}
		return store.Role{}, unavailable(err)
	}
	if err := insertPermissions(ctx, tx, role.ID, role.Permissions); err != nil {
		return store.Role{}, err
	}
	if err := tx.Commit(); err != nil {
		return store.Role{}, unavailable(err)
	}
	return role, nil
}

// ReplaceRolePermissions locks the role row, swaps the permission rows and
// advances updated_at inside one transaction.
func (s *Store) ReplaceRolePermissions(ctx context.Context, roleID string, keys []string) (store.Role, error) {
	keys = store.NormalizeKeys(keys)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Role{}, unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	var role store.Role
	err = tx.QueryRowContext(ctx, `
		select id, name, description, protected, updated_at
		from roles
		where id = $1
		for update
	`, roleID).Scan(&role.ID, &role.Name, &role.Description, &role.Protected, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Role{}, store.ErrNotFound
	}
	if err != nil {
		return store.Role{}, unavailable(err)
	}

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return store.Role{}, unavailable(err)
	}
	if err := insertPermissions(ctx, tx, roleID, keys); err != nil {
		return store.Role{}, err
	}

	next := store.NextVersion(role.UpdatedAt, s.now(), versionStep).UTC()
	if _, err := tx.ExecContext(ctx, `update roles set updated_at = $2 where id = $1`, roleID, next); err != nil {
		return store.Role{}, unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return store.Role{}, unavailable(err)
	}

	role.Permissions = keys
	role.UpdatedAt = next
	return role, nil
}

func (s *Store) TouchRoleVersion(ctx context.Context, roleID string) (time.Time, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	var prev time.Time
	err = tx.QueryRowContext(ctx, `select updated_at from roles where id = $1 for update`, roleID).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, store.ErrNotFound
	}
	if err != nil {
		return time.Time{}, unavailable(err)
	}

	next := store.NextVersion(prev, s.now(), versionStep).UTC()
	if _, err := tx.ExecContext(ctx, `update roles set updated_at = $2 where id = $1`, roleID, next); err != nil {
		return time.Time{}, unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return time.Time{}, unavailable(err)
	}
	return next, nil
}

// DeleteRole refuses protected roles and roles that still have identities.
// The identities foreign key backs up the in-use check against a concurrent
// assignment.
func (s *Store) DeleteRole(ctx context.Context, roleID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	var protected bool
	err = tx.QueryRowContext(ctx, `select protected from roles where id = $1 for update`, roleID).Scan(&protected)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return unavailable(err)
	}
	if protected {
		return store.ErrProtectedRole
	}

	var inUse bool
	if err := tx.QueryRowContext(ctx, `select exists(select 1 from identities where role_id = $1)`, roleID).Scan(&inUse); err != nil {
		return unavailable(err)
	}
	if inUse {
		return store.ErrInUse
	}

	if _, err := tx.ExecContext(ctx, `delete from roles where id = $1`, roleID); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return store.ErrInUse
		}
		return unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) FindIdentity(ctx context.Context, id string) (store.Identity, error) {
	return s.findIdentity(ctx, `where id = $1`, id)
}

func (s *Store) FindIdentityByEmail(ctx context.Context, email string) (store.Identity, error) {
	return s.findIdentity(ctx, `where email = $1`, store.NormalizeEmail(email))
}

func (s *Store) findIdentity(ctx context.Context, where string, arg string) (store.Identity, error) {
	ident, err := scanIdentity(s.db.QueryRowContext(ctx, identitySelect+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Identity{}, store.ErrNotFound
	}
	if err != nil {
		return store.Identity{}, unavailable(err)
	}
	return ident, nil
}

func (s *Store) CreateIdentity(ctx context.Context, ident store.Identity) (store.Identity, error) {
	if ident.ID == "" {
		ident.ID = ids.New()
	}
	ident.Email = store.NormalizeEmail(ident.Email)
	if ident.Status == "" {
		ident.Status = store.StatusActive
	}

	row := s.db.QueryRowContext(ctx, `
		insert into identities (id, email, name, password_hash, status, role_id, account_version, created_at)
		values ($1, $2, $3, $4, $5, $6, 1, $7)
		returning id, email, name, password_hash, status, role_id, account_version, created_at
	`, ident.ID, ident.Email, ident.Name, ident.PasswordHash, string(ident.Status), ident.RoleID, s.now().UTC())
	created, err := scanIdentity(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return store.Identity{}, store.ErrConflict
			case pgErrForeignKeyViolation:
				return store.Identity{}, store.ErrNotFound
			}
		}
		return store.Identity{}, unavailable(err)
	}
	return created, nil
}

func (s *Store) AssignRole(ctx context.Context, identityID, roleID string) (store.Identity, error) {
	row := s.db.QueryRowContext(ctx, `
		update identities
		set role_id = $2, account_version = account_version + 1
		where id = $1 and role_id <> $2
		returning id, email, name, password_hash, status, role_id, account_version, created_at
	`, identityID, roleID)
	return s.finishIdentityUpdate(ctx, row, identityID)
}

func (s *Store) UpdateIdentityStatus(ctx context.Context, identityID string, status store.IdentityStatus) (store.Identity, error) {
	row := s.db.QueryRowContext(ctx, `
		update identities
		set status = $2, account_version = account_version + 1
		where id = $1 and status <> $2
		returning id, email, name, password_hash, status, role_id, account_version, created_at
	`, identityID, string(status))
	return s.finishIdentityUpdate(ctx, row, identityID)
}

// finishIdentityUpdate treats "no row updated" as either a missing identity
// or a no-op and tells the two apart with a follow-up read.
func (s *Store) finishIdentityUpdate(ctx context.Context, row *sql.Row, identityID string) (store.Identity, error) {
	ident, err := scanIdentity(row)
	if err == nil {
		return ident, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return s.FindIdentity(ctx, identityID)
	}
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return store.Identity{}, store.ErrNotFound
	}
	return store.Identity{}, unavailable(err)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, identityID, hash string) error {
	res, err := s.db.ExecContext(ctx, `update identities set password_hash = $2 where id = $1`, identityID, hash)
	return affectedOne(res, err)
}

func (s *Store) DeleteIdentity(ctx context.Context, identityID string) error {
	res, err := s.db.ExecContext(ctx, `delete from identities where id = $1`, identityID)
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return unavailable(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if aff == 0 {
		return store.ErrNotFound
	}
	return nil
}

func insertPermissions(ctx context.Context, tx *sql.Tx, roleID string, keys []string) error {
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission) values ($1, $2)
		`, roleID, key); err != nil {
			return unavailable(err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRole(row scanner) (store.Role, error) {
	var (
		role  store.Role
		perms []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Protected, &role.UpdatedAt, &perms); err != nil {
		return store.Role{}, err
	}
	role.Permissions = []string{}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &role.Permissions); err != nil {
			return store.Role{}, fmt.Errorf("decode permissions: %w", err)
		}
	}
	role.UpdatedAt = role.UpdatedAt.UTC()
	return role, nil
}

func scanIdentity(row scanner) (store.Identity, error) {
	var (
		ident  store.Identity
		status string
		av     int64
	)
	if err := row.Scan(&ident.ID, &ident.Email, &ident.Name, &ident.PasswordHash, &status, &ident.RoleID, &av, &ident.CreatedAt); err != nil {
		return store.Identity{}, err
	}
	ident.Status = store.IdentityStatus(status)
	ident.AccountVersion = uint64(av)
	ident.CreatedAt = ident.CreatedAt.UTC()
	return ident, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
