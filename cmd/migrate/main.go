package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"auth-service/internal/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dsn string
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Aplica las migraciones del esquema de usuarios",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dsn, "database-url", os.Getenv("DATABASE_URL"), "postgres DSN (default $DATABASE_URL)")

	root.AddCommand(
		migrationCmd("up", "Aplica todas las migraciones pendientes", &dsn, func(ctx context.Context, conn *sql.DB) error {
			return db.MigrateUp(ctx, conn)
		}),
		migrationCmd("down", "Revierte la última migración", &dsn, func(ctx context.Context, conn *sql.DB) error {
			return db.MigrateDown(ctx, conn)
		}),
		migrationCmd("status", "Muestra el estado de cada migración", &dsn, func(ctx context.Context, conn *sql.DB) error {
			return db.MigrationStatus(ctx, conn)
		}),
		migrationCmd("version", "Imprime la versión actual del esquema", &dsn, func(ctx context.Context, conn *sql.DB) error {
			version, err := db.MigrationVersion(ctx, conn)
			if err != nil {
				return err
			}
			fmt.Println(version)
			return nil
		}),
	)
	return root
}

func migrationCmd(use, short string, dsn *string, run func(ctx context.Context, conn *sql.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if *dsn == "" {
				return fmt.Errorf("database url is required (--database-url or DATABASE_URL)")
			}
			conn, err := db.OpenSQL(*dsn)
			if err != nil {
				return err
			}
			defer conn.Close()
			return run(cmd.Context(), conn)
		},
	}
}
