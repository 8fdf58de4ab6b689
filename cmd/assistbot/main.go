package main

import (
	"log"

	"github.com/joho/godotenv"

	corecmd "github.com/flx-it/assistbot/core/cmd"

	"github.com/flx-it/assistbot/internal/bot"
	"github.com/flx-it/assistbot/internal/config"
)

func main() {
	// Local development convenience; production relies on real env vars.
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg := carrier.(*config.Config)
			return bot.Bootstrap(cfg)
		},
	})
	if err != nil {
		log.Fatalf("assistbot: %v", err)
	}
}
