package main

import (
	"context"
	"log"

	appconfig "paper-intake/config"
	"paper-intake/providers/llm"
	"paper-intake/services"
	"paper-intake/storage"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// matchConfig ergänzt die Dienst-Konfiguration um Batch-Parameter.
type matchConfig struct {
	Limit int `envconfig:"MATCH_LIMIT" default:"0"`
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := appconfig.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}
	var mc matchConfig
	if err := envconfig.Process("", &mc); err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	store, err := storage.Open(cfg.DBPath, logging)
	if err != nil {
		logging.Fatal("Failed to open database", zap.Error(err))
	}

	resolver := services.NewResolver(cfg, store, llm.NewClient(cfg, logging), logging)

	processed, err := resolver.MatchAuthorsBatch(context.Background(), mc.Limit)
	if err != nil {
		logging.Fatal("Batch author matching failed", zap.Int("processed", processed), zap.Error(err))
	}
	logging.Info("Batch author matching completed", zap.Int("processed", processed))
}
