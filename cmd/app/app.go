package main

import (
	"os"

	"github.com/DRSN-tech/recommender/internal/app"
	config "github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/pkg/logger"
)

// @title			Recommender API
// @version		1.0
// @description	Гибридные рекомендации товаров: коллаборативная фильтрация и контентная модель.
// @host			localhost:8080
// @BasePath		/api/v1
func main() {
	log := logger.New(logger.Options{
		Level:   os.Getenv("LOG_LEVEL"),
		Console: os.Getenv("APP_ENV") == "dev",
	})

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		os.Exit(1)
	}
}
