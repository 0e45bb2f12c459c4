package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ButasRafael/LLM-knowledge-base/internal/infra"
	"github.com/ButasRafael/LLM-knowledge-base/internal/repository"
	"github.com/ButasRafael/LLM-knowledge-base/internal/usecase"
	"github.com/ButasRafael/LLM-knowledge-base/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  "Manage user store migrations for the knowledge base service",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateStatusCmd())
	return cmd
}

// migrationSource はMIGRATIONS_DIRが設定されていればそのディレクトリを、
// なければバイナリに埋め込んだ接続先方言のSQLを返す。
func migrationSource(db *gorm.DB) (fs.FS, error) {
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		return os.DirFS(dir), nil
	}
	return migrations.ForDialect(infra.Dialect(db))
}

func newMigrationService() (*usecase.MigrationService, func(), error) {
	db, closeDB, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	source, err := migrationSource(db)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return usecase.NewMigrationService(repository.NewMigrationRepository(db), db, source), closeDB, nil
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Long:  "Apply all pending migrations to the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, closeDB, err := newMigrationService()
			if err != nil {
				return err
			}
			defer closeDB()

			appliedCount, err := service.ApplyMigrations(context.Background())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			if appliedCount == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", appliedCount)
			}
			return nil
		},
	}
}

func migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  "Show the status of all migrations (applied/pending)",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, closeDB, err := newMigrationService()
			if err != nil {
				return err
			}
			defer closeDB()

			statuses, err := service.GetMigrationStatus(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			// テーブル形式で出力
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
			fmt.Fprintln(w, "-------\t----\t------\t----------")

			for _, migration := range statuses {
				appliedAt := "-"
				if migration.AppliedAt != nil {
					appliedAt = migration.AppliedAt.Format("2006-01-02 15:04:05")
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", migration.Version, migration.Name, migration.Status, appliedAt)
			}

			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to flush output: %w", err)
			}
			return nil
		},
	}
}
