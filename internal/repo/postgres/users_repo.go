package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/usershub/internal/apperr"
	"github.com/geocoder89/usershub/internal/domain/user"
	"github.com/geocoder89/usershub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, phone, email, address, city, employer, created_at, updated_at`

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id         BIGSERIAL PRIMARY KEY,
	name       VARCHAR(100) NOT NULL,
	phone      VARCHAR(15)  NOT NULL,
	email      VARCHAR(255) NOT NULL,
	address    TEXT         NOT NULL,
	city       VARCHAR(100) NOT NULL,
	employer   VARCHAR(100) NOT NULL,
	created_at TIMESTAMPTZ  NOT NULL,
	updated_at TIMESTAMPTZ  NOT NULL,
	CONSTRAINT users_phone_uniq UNIQUE (phone),
	CONSTRAINT users_email_uniq UNIQUE (email)
)`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

// EnsureSchema creates the users table when it does not exist yet.
func (r *UsersRepo) EnsureSchema(ctx context.Context) error {
	return r.observe("users.ensure_schema", func() error {
		_, err := r.pool.Exec(ctx, usersSchema)
		return err
	})
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &u.Address, &u.City, &u.Employer, &u.CreatedAt, &u.UpdatedAt)

	// timestamptz scans in the session zone
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, in user.CreateInput) (user.User, error) {
	u := user.NewFromCreateInput(in, now())

	err := r.observe("users.create", func() error {
		row := r.pool.QueryRow(ctx,
			`INSERT INTO users (name, phone, email, address, city, employer, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
			RETURNING `+userColumns,
			u.Name, u.Phone, u.Email, u.Address, u.City, u.Employer, u.CreatedAt,
		)

		var err error
		u, err = scanUser(row)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrConflict
		}
		return user.User{}, apperr.Internal("Failed to create user", err)
	}

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	out := make([]user.User, 0)

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, apperr.Internal("Failed to fetch users", err)
	}

	return out, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, apperr.Internal("Failed to fetch user", err)
	}

	return u, nil
}

// Update resolves the row first so a missing id never reaches the UPDATE.
// The merge happens in SQL: only supplied columns are overwritten.
func (r *UsersRepo) Update(ctx context.Context, id int64, in user.UpdateInput) (user.User, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, err
		}
		return user.User{}, apperr.Internal("Failed to update user", err)
	}

	var u user.User

	err := r.observe("users.update", func() error {
		row := r.pool.QueryRow(ctx,
			`UPDATE users
			SET name = COALESCE($2::varchar, name),
				phone = COALESCE($3::varchar, phone),
				email = COALESCE($4::varchar, email),
				address = COALESCE($5::text, address),
				city = COALESCE($6::varchar, city),
				employer = COALESCE($7::varchar, employer),
				updated_at = $8
			WHERE id = $1
			RETURNING `+userColumns,
			id, in.Name, in.Phone, in.Email, in.Address, in.City, in.Employer, now(),
		)

		var err error
		u, err = scanUser(row)
		return err
	})

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// deleted between the lookup and the write
			return user.User{}, user.ErrNotFound
		case IsUniqueViolation(err):
			return user.User{}, user.ErrConflict
		default:
			return user.User{}, apperr.Internal("Failed to update user", err)
		}
	}

	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return err
		}
		return apperr.Internal("Failed to delete user", err)
	}

	var tag pgconn.CommandTag

	err := r.observe("users.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return apperr.Internal("Failed to delete user", err)
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}

// postgres keeps microseconds; truncating keeps the returned record equal to the stored one.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
