package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/scolay/storefront/internal/data/pgxutil"
	domainauth "github.com/scolay/storefront/internal/domain/auth"
	apperrors "github.com/scolay/storefront/internal/errors"
	"github.com/scolay/storefront/internal/ports"
)

// ErrProfileNotFound is returned when no profile row exists for a user id.
var ErrProfileNotFound = ports.ErrProfileNotFound

// storedRoleNone is the persisted value for users without a portal role.
const storedRoleNone = "customer"

const profileSelect = `SELECT id::text AS id, role, full_name, school_id::text AS school_id,
	supplier_id::text AS supplier_id, created_at, updated_at FROM profiles`

const profileReturning = `RETURNING id::text AS id, role, full_name, school_id::text AS school_id,
	supplier_id::text AS supplier_id, created_at, updated_at`

// ProfileRepo provides database operations for profiles.
type ProfileRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewProfileRepo creates a ProfileRepo stamping rows with the system clock.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, clock: systemClock{}}
}

// NewProfileRepoWithClock creates a ProfileRepo with a custom clock.
func NewProfileRepoWithClock(db *sql.DB, clock Clock) *ProfileRepo {
	return &ProfileRepo{DB: db, clock: clock}
}

// ProfilePage is one page of profiles plus the total row count, read from one snapshot.
type ProfilePage struct {
	Profiles []*domainauth.Profile
	Total    int
}

// querier is satisfied by both *pgx.Conn and pgx.Tx.
type querier interface {
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

var _ ports.ProfileStore = (*ProfileRepo)(nil)

// UpsertProfileRequest carries the writable profile fields.
type UpsertProfileRequest struct {
	ID       string
	Role     domainauth.Role
	FullName *string
}

// GetByUserID returns the profile whose id equals the auth user id.
func (r *ProfileRepo) GetByUserID(ctx context.Context, userID string) (*domainauth.Profile, error) {
	if userID == "" {
		return nil, ErrProfileNotFound
	}
	var p *domainauth.Profile
	err := pgxutil.WithConn(ctx, r.DB, func(conn *pgx.Conn) error {
		var err error
		p, err = collectOne(ctx, conn, profileSelect+` WHERE id = $1`, userID)
		return err
	})
	return finishOne(p, err)
}

// List returns profiles ordered by creation time together with the total count.
func (r *ProfileRepo) List(ctx context.Context, limit, offset int) (ProfilePage, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var page ProfilePage
	err := pgxutil.WithTx(ctx, r.DB, pgxutil.Snapshot, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM profiles`).Scan(&page.Total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, profileSelect+` ORDER BY created_at ASC, id ASC LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return err
		}
		page.Profiles, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[domainauth.Profile])
		return err
	})
	if err != nil {
		return ProfilePage{}, fmt.Errorf("list profiles: %w", apperrors.MapDBError(err))
	}
	for _, p := range page.Profiles {
		normalizeProfile(p)
	}
	return page, nil
}

// Upsert creates the profile or updates its role and name.
func (r *ProfileRepo) Upsert(ctx context.Context, req UpsertProfileRequest) (*domainauth.Profile, error) {
	if _, err := uuid.Parse(req.ID); err != nil {
		return nil, apperrors.ValidationField("id", "profile id must be a uuid")
	}
	q := `INSERT INTO profiles (id, role, full_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			full_name = COALESCE(EXCLUDED.full_name, profiles.full_name),
			updated_at = EXCLUDED.updated_at
		` + profileReturning
	return r.writeOne(ctx, q, req.ID, storedRole(req.Role), req.FullName, r.clock.Now())
}

// SetRole updates the role of an existing profile.
func (r *ProfileRepo) SetRole(ctx context.Context, userID string, role domainauth.Role) (*domainauth.Profile, error) {
	q := `UPDATE profiles SET role = $2, updated_at = $3 WHERE id = $1 ` + profileReturning
	return r.writeOne(ctx, q, userID, storedRole(role), r.clock.Now())
}

func (r *ProfileRepo) writeOne(ctx context.Context, q string, args ...any) (*domainauth.Profile, error) {
	var p *domainauth.Profile
	err := pgxutil.WithTx(ctx, r.DB, pgxutil.ReadWrite, func(tx pgx.Tx) error {
		var err error
		p, err = collectOne(ctx, tx, q, args...)
		return err
	})
	return finishOne(p, err)
}

func collectOne(ctx context.Context, q querier, query string, args ...any) (*domainauth.Profile, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[domainauth.Profile])
}

func finishOne(p *domainauth.Profile, err error) (*domainauth.Profile, error) {
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsNotFound(mapped) {
			return nil, ErrProfileNotFound
		}
		return nil, mapped
	}
	normalizeProfile(p)
	return p, nil
}

func normalizeProfile(p *domainauth.Profile) {
	p.Role = domainauth.ParseRole(string(p.Role))
}

func storedRole(role domainauth.Role) string {
	if role == domainauth.RoleNone {
		return storedRoleNone
	}
	return string(role)
}

// IsProfileNotFound reports whether err means the profile does not exist.
func IsProfileNotFound(err error) bool {
	return errors.Is(err, ErrProfileNotFound)
}
