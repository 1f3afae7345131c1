package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	config "github.com/karunya/aid-bridge-go/config"
	core "github.com/karunya/aid-bridge-go/core"
	routes "github.com/karunya/aid-bridge-go/routes"
	store "github.com/karunya/aid-bridge-go/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx := context.Background()

	switch cfg.StoreKind {
	case "memory":
		cfg.Store = store.NewMemory()
		log.Warn().Msg("using in-memory store; state is lost on restart")
	default:
		if err := cfg.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("mongo")
		}
		defer cfg.MongoClient.Disconnect(ctx)

		m := store.NewMongo(cfg.MongoClient, cfg.DBName)
		if err := m.EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("indexes")
		}
		cfg.Store = m
	}

	cfg.Engine = &core.Engine{Store: cfg.Store}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, cfg)

	log.Info().Str("port", cfg.Port).Msg("listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}
