package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
	"github.com/ButasRafael/LLM-knowledge-base/internal/repository"
	"github.com/ButasRafael/LLM-knowledge-base/internal/usecase"
)

// apiClient はCookieでセッションを保持するAPIクライアント。
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) (*apiClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout, Jar: jar},
	}, nil
}

// login はログインしてセッションCookieをjarに保存する。
func (c *apiClient) login(username, password string) error {
	reqBody, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.http.Post(c.baseURL+"/api/login", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return handleErrorResponse(resp.StatusCode, body)
	}
	return nil
}

type userEntry struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// listUsers は管理者APIからユーザー一覧を取得する。生のレスポンスも返す。
func (c *apiClient) listUsers() ([]userEntry, []byte, error) {
	resp, err := c.http.Get(c.baseURL + "/admin/users")
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, handleErrorResponse(resp.StatusCode, body)
	}

	var result struct {
		Users []userEntry `json:"users"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Users, body, nil
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Create users in the store or inspect them through the admin API",
	}
	cmd.AddCommand(usersListCmd())
	cmd.AddCommand(usersCreateCmd())
	return cmd
}

// usersCreateCmd はストアに直接ユーザーを作成する。最初の管理者はこのコマンドで作る。
func usersCreateCmd() *cobra.Command {
	var username, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user directly in the store (password from KBCTL_NEW_PASSWORD)",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := domain.ParseRole(role)
			if err != nil {
				return fmt.Errorf("--role must be user or admin: %w", err)
			}
			password := os.Getenv("KBCTL_NEW_PASSWORD")
			if password == "" {
				return fmt.Errorf("KBCTL_NEW_PASSWORD environment variable is required")
			}

			ctx := context.Background()
			hasher, err := passwordHasher(ctx)
			if err != nil {
				return err
			}
			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			service := usecase.NewAuthService(repository.NewUserRepository(db), hasher)
			user, err := service.CreateUser(ctx, username, password, parsed)
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			if output == "json" {
				fmt.Fprintf(cmd.OutOrStdout(), "{\"id\":%d,\"username\":%q,\"role\":%q}\n", user.ID, user.Username, user.Role)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q (user_id: %d)\n", user.Role, user.Username, user.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "Role: user or admin")
	cmd.MarkFlagRequired("username")
	return cmd
}

func usersListCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users (requires an admin account)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set KBCTL_API_URL)")
			}
			password := os.Getenv("KBCTL_PASSWORD")
			if password == "" {
				return fmt.Errorf("KBCTL_PASSWORD environment variable is required")
			}

			client, err := newAPIClient(apiURL, timeout)
			if err != nil {
				return err
			}
			if err := client.login(username, password); err != nil {
				return err
			}

			users, raw, err := client.listUsers()
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprint(cmd.OutOrStdout(), string(raw))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tCREATED AT")
			fmt.Fprintln(w, "--\t--------\t----\t----------")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Role, u.CreatedAt)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Admin username (required)")
	cmd.MarkFlagRequired("username")
	return cmd
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("Error: %s (%s)", errResp.Message, errResp.Code)
	}
	return fmt.Errorf("Error: server returned status %d", statusCode)
}
