// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/avramenko-d/durak/internal/auth"
	"github.com/avramenko-d/durak/internal/cache"
	"github.com/avramenko-d/durak/internal/database"
	"github.com/avramenko-d/durak/internal/game"
	"github.com/avramenko-d/durak/internal/handlers"
	"github.com/avramenko-d/durak/internal/lobby"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	st := database.NewStore(database.DB)
	engine := game.New(st, logger)

	if err := cache.ConnectRedis(); err != nil {
		logger.WithError(err).Warn("redis unavailable, action history disabled")
	} else {
		engine.SetActionLog(cache.Publisher{})
	}

	lobbies := lobby.NewService(st, engine, logger)
	srv := handlers.NewServer(st, engine, lobbies, logger)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
