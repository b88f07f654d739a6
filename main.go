package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashback-platform/internal/config"
	"cashback-platform/internal/db"
	"cashback-platform/internal/logger"
	"cashback-platform/internal/router"
	"cashback-platform/internal/seed"

	"github.com/rs/zerolog"
	"github.com/urfave/cli"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.InitLogger(cfg.LogLevel, cfg.LogPretty)

	app := cli.NewApp()
	app.Name = "cashback"
	app.Usage = "cashback platform API"
	app.Action = func(c *cli.Context) error {
		return serve(cfg, log)
	}
	app.Commands = []cli.Command{
		{
			Name:  "serve",
			Usage: "run migrations and start the HTTP server",
			Action: func(c *cli.Context) error {
				return serve(cfg, log)
			},
		},
		{
			Name:  "migrate",
			Usage: "create or update the database schema",
			Action: func(c *cli.Context) error {
				database := db.InitDB(cfg.DBUrl, log)
				defer database.Close()
				return db.RunMigrations(database, log)
			},
		},
		{
			Name:  "seed",
			Usage: "fill the database with development data",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "stores", Value: 3},
				cli.IntFlag{Name: "clients", Value: 10},
				cli.StringFlag{Name: "admin-email", Value: "admin@cashback.local"},
				cli.StringFlag{Name: "admin-password", Value: "senha123"},
			},
			Action: func(c *cli.Context) error {
				database := db.InitDB(cfg.DBUrl, log)
				defer database.Close()

				if err := db.RunMigrations(database, log); err != nil {
					return err
				}
				return seed.Run(context.Background(), database, log, seed.Options{
					AdminEmail:    c.String("admin-email"),
					AdminPassword: c.String("admin-password"),
					Stores:        c.Int("stores"),
					Clients:       c.Int("clients"),
				})
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func serve(cfg config.Config, log zerolog.Logger) error {
	log.Info().Msg("Starting cashback API")

	database := db.InitDB(cfg.DBUrl, log)
	defer database.Close()

	if err := db.RunMigrations(database, log); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.SetupRouter(database, cfg, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}
