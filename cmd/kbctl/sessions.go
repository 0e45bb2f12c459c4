package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ButasRafael/LLM-knowledge-base/internal/crypt"
	"github.com/ButasRafael/LLM-knowledge-base/internal/repository"
	"github.com/ButasRafael/LLM-knowledge-base/internal/usecase"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage user sessions",
	}
	cmd.AddCommand(sessionsRevokeCmd())
	return cmd
}

// sessionsRevokeCmd はユーザーのトークンソルトを更新し、全セッションを失効させる。
func sessionsRevokeCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke every session of a user by rotating their token salt",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			// セッション失効ではパスワード鍵を使わない
			service := usecase.NewAuthService(repository.NewUserRepository(db), crypt.NewPasswordHasher(nil))

			userID, err := service.RevokeSessionsByUsername(context.Background(), username)
			if err != nil {
				return fmt.Errorf("failed to revoke sessions: %w", err)
			}

			if output == "json" {
				fmt.Fprintf(cmd.OutOrStdout(), "{\"user_id\":%d,\"revoked\":true}\n", userID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked all sessions of %q (user_id: %d)\n", username, userID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Username (required)")
	cmd.MarkFlagRequired("username")
	return cmd
}
