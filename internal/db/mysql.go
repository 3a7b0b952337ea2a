package db

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/emandor/quiz_service/internal/telemetry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MustConnect opens the MySQL pool and pings it; the process cannot run without the store.
func MustConnect(dsn string) *sqlx.DB {
	log := telemetry.Module("db")
	db, err := Connect(dsn, false)
	if err != nil {
		log.Fatal().Err(err).Msg("db_connect_failed")
	}
	return db
}

// Connect opens a pool. multiStatements is only enabled for the migration connection.
func Connect(dsn string, multiStatements bool) (*sqlx.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	// results, progress and stats carry DATETIME columns
	cfg.ParseTime = true
	cfg.MultiStatements = multiStatements
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func MustMigrate(dsn string) {
	log := telemetry.Module("db")
	db, err := Connect(dsn, true)
	if err != nil {
		log.Fatal().Err(err).Msg("db_connect_failed")
	}
	defer db.Close()
	if err := Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate_failed")
	}
}

func Migrate(db *sqlx.DB) error {
	d, err := migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	if err != nil {
		return err
	}
	s, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", s, "mysql", d)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
