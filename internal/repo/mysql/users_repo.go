package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/geocoder89/usershub/internal/apperr"
	"github.com/geocoder89/usershub/internal/domain/user"
	"github.com/geocoder89/usershub/internal/observability"
	gomysql "github.com/go-sql-driver/mysql"
)

// ER_DUP_ENTRY
const errDupEntry = 1062

const userColumns = `id, name, phone, email, address, city, employer, created_at, updated_at`

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id         BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
	name       VARCHAR(100) NOT NULL,
	phone      VARCHAR(15)  NOT NULL,
	email      VARCHAR(255) NOT NULL,
	address    TEXT         NOT NULL,
	city       VARCHAR(100) NOT NULL,
	employer   VARCHAR(100) NOT NULL,
	created_at DATETIME(6)  NOT NULL,
	updated_at DATETIME(6)  NOT NULL,
	UNIQUE KEY users_phone_uniq (phone),
	UNIQUE KEY users_email_uniq (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

type UsersRepo struct {
	db   *sql.DB
	prom *observability.Prom
}

func NewUsersRepo(db *sql.DB, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsDuplicateEntry(err error) bool {
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDupEntry
}

func (r *UsersRepo) EnsureSchema(ctx context.Context) error {
	return r.observe("users.ensure_schema", func() error {
		_, err := r.db.ExecContext(ctx, usersSchema)
		return err
	})
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &u.Address, &u.City, &u.Employer, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, in user.CreateInput) (user.User, error) {
	u := user.NewFromCreateInput(in, now())

	err := r.observe("users.create", func() error {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO users (name, phone, email, address, city, employer, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			u.Name, u.Phone, u.Email, u.Address, u.City, u.Employer, u.CreatedAt, u.UpdatedAt,
		)
		if err != nil {
			return err
		}

		u.ID, err = res.LastInsertId()
		return err
	})

	if err != nil {
		if IsDuplicateEntry(err) {
			return user.User{}, user.ErrConflict
		}
		return user.User{}, apperr.Internal("Failed to create user", err)
	}

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	out := make([]user.User, 0)

	err := r.observe("users.list", func() error {
		rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
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
		u, err = scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, apperr.Internal("Failed to fetch user", err)
	}

	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, id int64, in user.UpdateInput) (user.User, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, err
		}
		return user.User{}, apperr.Internal("Failed to update user", err)
	}

	err := r.observe("users.update", func() error {
		_, err := r.db.ExecContext(ctx,
			`UPDATE users
			SET name = COALESCE(?, name),
				phone = COALESCE(?, phone),
				email = COALESCE(?, email),
				address = COALESCE(?, address),
				city = COALESCE(?, city),
				employer = COALESCE(?, employer),
				updated_at = ?
			WHERE id = ?`,
			in.Name, in.Phone, in.Email, in.Address, in.City, in.Employer, now(), id,
		)
		return err
	})

	if err != nil {
		if IsDuplicateEntry(err) {
			return user.User{}, user.ErrConflict
		}
		return user.User{}, apperr.Internal("Failed to update user", err)
	}

	// MySQL has no RETURNING; read the merged row back.
	u, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, err
		}
		return user.User{}, apperr.Internal("Failed to update user", err)
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

	var affected int64

	err := r.observe("users.delete", func() error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})

	if err != nil {
		return apperr.Internal("Failed to delete user", err)
	}

	if affected == 0 {
		return user.ErrNotFound
	}

	return nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
