package main

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"

	"github.com/justwannacode/kpo-hw4/internal/app"
	"github.com/justwannacode/kpo-hw4/internal/config"
	"github.com/justwannacode/kpo-hw4/internal/logger"
)

func main() {
	_ = godotenv.Load()

	conf := config.MustLoadConfig(config.Defaults{
		RunAddress:    "localhost:8080",
		MigrationsDir: "internal/db/migrations/orders",
	})
	l := logger.New(os.Stdout)

	if err := app.NewOrders(conf, l).Run(); err != nil {
		if errors.Is(err, context.Canceled) {
			l.Info("graceful shutdown")
			os.Exit(0)
		}
		panic(err)
	}
}
