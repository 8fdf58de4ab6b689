package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/storage"
)

// RoleByName fetches a role by its unique name.
func (s *Store) RoleByName(ctx context.Context, name string) (domain.Role, error) {
	var r domain.Role
	err := s.db.GetContext(ctx, &r,
		`SELECT id, name, permissions FROM roles WHERE lower(name) = lower($1)`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Role{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Role{}, fmt.Errorf("role by name: %w", err)
	}
	return r, nil
}

// RoleByID fetches a role by primary key.
func (s *Store) RoleByID(ctx context.Context, id int64) (domain.Role, error) {
	var r domain.Role
	err := s.db.GetContext(ctx, &r,
		`SELECT id, name, permissions FROM roles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Role{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Role{}, fmt.Errorf("role by id: %w", err)
	}
	return r, nil
}

// CompanyByName fetches a company by its unique name.
func (s *Store) CompanyByName(ctx context.Context, name string) (domain.Company, error) {
	var c domain.Company
	err := s.db.GetContext(ctx, &c,
		`SELECT id, name, address FROM companies WHERE lower(name) = lower($1)`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Company{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Company{}, fmt.Errorf("company by name: %w", err)
	}
	return c, nil
}

// CompanyByID fetches a company by primary key.
func (s *Store) CompanyByID(ctx context.Context, id int64) (domain.Company, error) {
	var c domain.Company
	err := s.db.GetContext(ctx, &c,
		`SELECT id, name, address FROM companies WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Company{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Company{}, fmt.Errorf("company by id: %w", err)
	}
	return c, nil
}
