package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/storage"
)

const userColumns = `id, telegram_id, telegram_username, firstname, lastname,
	role_id, company_id, model_id, perms_add, perms_remove,
	terms_accepted, is_active, created_at, last_activity`

// UserByTelegramID fetches a user bound to a live Telegram identity.
func (s *Store) UserByTelegramID(ctx context.Context, telegramID int64) (domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("user by telegram id: %w", err)
	}
	return u, nil
}

// UserByUsername fetches a user by Telegram username, case-insensitively.
func (s *Store) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE lower(telegram_username) = lower($1)`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("user by username: %w", err)
	}
	return u, nil
}

// UserByID fetches a user by primary key.
func (s *Store) UserByID(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("user by id: %w", err)
	}
	return u, nil
}

// CreateUser inserts a pre-registered user. The username must be free.
func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM users WHERE lower(telegram_username) = lower($1))`,
		u.TelegramUsername)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: check username: %w", err)
	}
	if exists {
		return domain.User{}, storage.ErrAlreadyExists
	}

	err = s.db.GetContext(ctx, &u.ID, `
		INSERT INTO users (telegram_id, telegram_username, firstname, lastname,
			role_id, company_id, perms_add, perms_remove, terms_accepted, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		u.TelegramID, u.TelegramUsername, u.Firstname, u.Lastname,
		u.RoleID, u.CompanyID,
		pq.StringArray(u.PermsAdd), pq.StringArray(u.PermsRemove),
		u.TermsAccepted, u.IsActive)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// BindTelegramID attaches a Telegram identity to a pre-registered account.
func (s *Store) BindTelegramID(ctx context.Context, userID, telegramID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET telegram_id = $2 WHERE id = $1`, userID, telegramID)
	if err != nil {
		return fmt.Errorf("bind telegram id: %w", err)
	}
	return requireRowAffected(res, "bind telegram id")
}

// SetUserName stores the onboarding first/last name pair.
func (s *Store) SetUserName(ctx context.Context, userID int64, firstname, lastname string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET firstname = $2, lastname = $3 WHERE id = $1`,
		userID, firstname, lastname)
	if err != nil {
		return fmt.Errorf("set user name: %w", err)
	}
	return requireRowAffected(res, "set user name")
}

// SetTermsAccepted records the terms acceptance flag.
func (s *Store) SetTermsAccepted(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET terms_accepted = true WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("set terms accepted: %w", err)
	}
	return requireRowAffected(res, "set terms accepted")
}

// SetUserModel assigns the active AI model for a user.
func (s *Store) SetUserModel(ctx context.Context, userID, modelID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET model_id = $2 WHERE id = $1`, userID, modelID)
	if err != nil {
		return fmt.Errorf("set user model: %w", err)
	}
	return requireRowAffected(res, "set user model")
}

// TouchUserActivity updates the last-activity timestamp.
func (s *Store) TouchUserActivity(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_activity = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("touch user activity: %w", err)
	}
	return nil
}

// DeleteUser removes a user by username. Returns ErrNotFound if absent.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM users WHERE lower(telegram_username) = lower($1)`, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRowAffected(res, "delete user")
}

// ListUsersByCompany returns company users ordered by username, with a page
// window and the total count for pagination.
func (s *Store) ListUsersByCompany(ctx context.Context, companyID int64, offset, limit int) ([]domain.User, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total,
		`SELECT count(*) FROM users WHERE company_id = $1`, companyID); err != nil {
		return nil, 0, fmt.Errorf("list users: count: %w", err)
	}

	var users []domain.User
	err := s.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users
		 WHERE company_id = $1
		 ORDER BY lower(telegram_username)
		 OFFSET $2 LIMIT $3`, companyID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// AddPermission grants a capability override. The grant also clears any
// revocation of the same capability so the two lists stay disjoint.
func (s *Store) AddPermission(ctx context.Context, userID int64, capability string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			perms_add = array_append(array_remove(perms_add, $2), $2),
			perms_remove = array_remove(perms_remove, $2)
		WHERE id = $1`, userID, capability)
	if err != nil {
		return fmt.Errorf("add permission: %w", err)
	}
	return requireRowAffected(res, "add permission")
}

// RemovePermission revokes a capability. The revocation also clears any
// grant of the same capability so the two lists stay disjoint.
func (s *Store) RemovePermission(ctx context.Context, userID int64, capability string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			perms_remove = array_append(array_remove(perms_remove, $2), $2),
			perms_add = array_remove(perms_add, $2)
		WHERE id = $1`, userID, capability)
	if err != nil {
		return fmt.Errorf("remove permission: %w", err)
	}
	return requireRowAffected(res, "remove permission")
}

func requireRowAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
