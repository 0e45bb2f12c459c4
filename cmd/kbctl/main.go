// Package main は運用CLIツールのエントリポイント。
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ButasRafael/LLM-knowledge-base/internal/crypt"
	"github.com/ButasRafael/LLM-knowledge-base/internal/infra"
	"github.com/ButasRafael/LLM-knowledge-base/internal/usecase"
)

const version = "1.0.0"

var (
	apiURL  string
	output  string
	timeout time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kbctl",
		Short:         "Knowledge base auth service CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .envファイルを読み込む（既存の環境変数は上書きしない）
			_ = godotenv.Load()
			if apiURL == "" {
				apiURL = os.Getenv("KBCTL_API_URL")
			}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set KBCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(hashPasswordCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kbctl version %s\n", version)
		},
	}
}

// keygenCmd はサービス鍵の生成コマンド。
func keygenCmd() *cobra.Command {
	var wrap bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a service key for SERVICE_PWD_KEY or SERVICE_TOKEN_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			var kmsClient usecase.KMSClient
			if wrap {
				client, err := infra.NewKMSClient(ctx, os.Getenv("KMS_KEY_NAME"))
				if err != nil {
					return fmt.Errorf("failed to init KMS client: %w", err)
				}
				defer client.Close()
				kmsClient = client
			}

			key, err := usecase.NewKeyService(kmsClient).GenerateKey(ctx, wrap)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wrap, "kms", false, "Wrap the key with Cloud KMS (KMS_KEY_NAME)")
	return cmd
}

// hashPasswordCmd は保存用パスワードハッシュの計算コマンド。
func hashPasswordCmd() *cobra.Command {
	var salt, password string
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the stored hash of a password under SERVICE_PWD_KEY (unwrapped with KMS_KEY_NAME if set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			hasher, err := passwordHasher(context.Background())
			if err != nil {
				return err
			}

			hash, err := hasher.Hash(crypt.EncryptContent{Content: password, Salt: salt})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&salt, "salt", "", "Per-user password salt (required)")
	cmd.Flags().StringVar(&password, "password", "", "Clear password (required)")
	cmd.MarkFlagRequired("salt")
	cmd.MarkFlagRequired("password")
	return cmd
}
