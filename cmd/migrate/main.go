package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/ridebroker/backend/internal/config"
	"github.com/ridebroker/backend/internal/database"
	"github.com/ridebroker/backend/internal/logger"
	"github.com/ridebroker/backend/migrations"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo")
	version := flag.String("version", "", "target version for -cmd=version")
	flag.Parse()

	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()
	config.BindEnv()

	log := logger.New(logger.Config{
		Level:   viper.GetString("log.level"),
		Format:  viper.GetString("log.format"),
		Service: "ridebroker-migrate",
	}).With().Str("cmd", *cmd).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.GetConfig(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	switch *cmd {
	case "up", "down", "status", "redo":
		err = database.Migrate(ctx, db, migrations.FS, *cmd)
	case "version":
		if *version == "" {
			log.Fatal().Msg("missing -version for version command")
		}
		err = database.MigrateToVersion(ctx, db, migrations.FS, *version)
	default:
		log.Fatal().Msg("unknown -cmd value")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("migration finished")
}
