package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"auth-service/internal/db/migrations"
)

// OpenSQL abre un *sql.DB sobre el driver pgx para goose.
func OpenSQL(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return conn, nil
}

func setupGoose() error {
	goose.SetBaseFS(migrations.FS)
	return goose.SetDialect("postgres")
}

// MigrateUp aplica todas las migraciones pendientes.
func MigrateUp(ctx context.Context, conn *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	return goose.UpContext(ctx, conn, ".")
}

// MigrateDown revierte la última migración aplicada.
func MigrateDown(ctx context.Context, conn *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	return goose.DownContext(ctx, conn, ".")
}

func MigrationStatus(ctx context.Context, conn *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, conn, ".")
}

func MigrationVersion(ctx context.Context, conn *sql.DB) (int64, error) {
	if err := setupGoose(); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, conn)
}
