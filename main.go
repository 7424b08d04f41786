package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/httpserver"
	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/session"
	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/sudoku"
	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/ws"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	engine := sudoku.NewEngine()
	store := session.NewStore(log.Logger)
	hub := ws.NewHub(store, []byte(getEnv("JWT_SECRET", "dev_secret_change_me")), log.Logger)
	srv := httpserver.New(store, engine, hub)

	port := getEnv("PORT", "5175")
	log.Info().Str("port", port).Msg("starting go-server")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
