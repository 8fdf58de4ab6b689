package bot

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	corebootstrap "github.com/flx-it/assistbot/core/bootstrap"
	"github.com/flx-it/assistbot/core/logger"
	"log/slog"

	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/storage/postgres"
)

// seedModels is the assignable model catalog with per-token pricing.
var seedModels = []domain.Model{
	{
		Name:        "o1-preview",
		Description: "Deep reasoning for hard problems",
		Emoji:       "🍓",
		InputPrice:  decimal.RequireFromString("0.000015"),
		OutputPrice: decimal.RequireFromString("0.00006"),
	},
	{
		Name:        "o1-mini",
		Description: "Fast reasoning at lower cost",
		Emoji:       "🤖",
		InputPrice:  decimal.RequireFromString("0.000003"),
		OutputPrice: decimal.RequireFromString("0.000012"),
	},
	{
		Name:        "gpt-4o",
		Description: "Flagship general-purpose model",
		Emoji:       "🔥",
		InputPrice:  decimal.RequireFromString("0.0000025"),
		OutputPrice: decimal.RequireFromString("0.00001"),
	},
	{
		Name:        "gpt-4o-mini",
		Description: "Cheap and quick for everyday tasks",
		Emoji:       "✔️",
		InputPrice:  decimal.RequireFromString("0.00000015"),
		OutputPrice: decimal.RequireFromString("0.0000006"),
	},
}

// modelSeeder refreshes the AI model catalog on startup.
func modelSeeder() corebootstrap.Seeder {
	return corebootstrap.SeederFunc(func(ctx context.Context, st corebootstrap.Storage) error {
		store, ok := st.(*postgres.Store)
		if !ok {
			return fmt.Errorf("seed models: unexpected storage %T", st)
		}
		for _, m := range seedModels {
			if err := store.UpsertModel(ctx, m); err != nil {
				return err
			}
		}
		logger.SEED.Info("models seeded",
			slog.String("event", "seed.models"),
			slog.Int("count", len(seedModels)),
		)
		return nil
	})
}
