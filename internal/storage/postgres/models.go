package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/storage"
)

const modelColumns = `id, name, description, emoji, input_price, output_price`

// ModelByID fetches an AI model by primary key.
func (s *Store) ModelByID(ctx context.Context, id int64) (domain.Model, error) {
	var m domain.Model
	err := s.db.GetContext(ctx, &m,
		`SELECT `+modelColumns+` FROM ai_models WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Model{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Model{}, fmt.Errorf("model by id: %w", err)
	}
	return m, nil
}

// ModelByName fetches an AI model by its unique name.
func (s *Store) ModelByName(ctx context.Context, name string) (domain.Model, error) {
	var m domain.Model
	err := s.db.GetContext(ctx, &m,
		`SELECT `+modelColumns+` FROM ai_models WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Model{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Model{}, fmt.Errorf("model by name: %w", err)
	}
	return m, nil
}

// ListModels returns all models ordered by name.
func (s *Store) ListModels(ctx context.Context) ([]domain.Model, error) {
	var models []domain.Model
	err := s.db.SelectContext(ctx, &models,
		`SELECT `+modelColumns+` FROM ai_models ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// UpsertModel inserts a model or refreshes its pricing, keyed by name.
// Used by the seeder.
func (s *Store) UpsertModel(ctx context.Context, m domain.Model) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_models (name, description, emoji, input_price, output_price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			emoji = EXCLUDED.emoji,
			input_price = EXCLUDED.input_price,
			output_price = EXCLUDED.output_price`,
		m.Name, m.Description, m.Emoji, m.InputPrice, m.OutputPrice)
	if err != nil {
		return fmt.Errorf("upsert model: %w", err)
	}
	return nil
}
