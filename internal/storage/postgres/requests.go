package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/flx-it/assistbot/internal/domain"
)

func insertRequest(ctx context.Context, tx *sqlx.Tx, r domain.Request) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO requests (model, user_id, company_id, input_message, output_message,
			prompt_tokens, completion_tokens, total_tokens, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.Model, r.UserID, r.CompanyID, r.InputMessage, r.OutputMessage,
		r.PromptTokens, r.CompletionTokens, r.TotalTokens, r.Price)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}
