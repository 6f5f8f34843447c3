// Command contactsctl runs administrative tasks against the contacts
// database: schema migrations, bootstrapping an admin and changing roles.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"go-contacts-api/internal/auth"
	"go-contacts-api/internal/cache"
	"go-contacts-api/internal/config"
	"go-contacts-api/internal/database"
	"go-contacts-api/internal/logger"
	"go-contacts-api/internal/model"
	"go-contacts-api/internal/repository"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

type env struct {
	cfg *config.Config
	db  *database.DB
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "contactsctl",
		Short:         "Administrative tasks for the contacts API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			slog.SetDefault(logger.New(os.Stderr, cfg.LogFormat, cfg.LogLevel))

			db, err := database.New(cmd.Context(), database.Options{URL: cfg.DatabaseURL, MaxConns: 2})
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.db = db
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			e.db.Close()
		},
	}

	root.AddCommand(newMigrateCmd(e), newCreateAdminCmd(e), newSetRoleCmd(e))
	return root
}

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newCreateAdminCmd(e *env) *cobra.Command {
	var username, emailAddr, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a confirmed admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				p, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				password = p
			}

			req := model.SignupRequest{Username: username, Email: emailAddr, Password: password}
			req.Normalize()
			if field, msg := req.Validate(); field != "" {
				return fmt.Errorf("%s %s", field, msg)
			}

			hash, err := auth.NewHasher(0).Hash(req.Password)
			if err != nil {
				return err
			}

			created, err := repository.NewUserRepository(e.db.Pool).Create(cmd.Context(), model.User{
				Username:     req.Username,
				Email:        req.Email,
				PasswordHash: hash,
				Role:         model.RoleAdmin,
				Confirmed:    true,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", created.Email, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Display name (5-16 characters)")
	cmd.Flags().StringVar(&emailAddr, "email", "", "Login email")
	cmd.Flags().StringVar(&password, "password", "", "Password; prompted for when omitted")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSetRoleCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-role <email> <role>",
		Short: "Change the role of an existing account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := model.ParseRole(args[1])
			if !ok {
				return fmt.Errorf("role must be one of admin, moderator, user")
			}

			users := repository.NewUserRepository(e.db.Pool)
			user, err := users.FindByEmail(cmd.Context(), model.NormalizeEmail(args[0]))
			if err != nil {
				return err
			}
			updated, err := users.UpdateRole(cmd.Context(), user.ID, role)
			if err != nil {
				return err
			}

			if err := invalidateCachedUser(cmd.Context(), e.cfg, updated.Email); err != nil {
				slog.Warn("role changed but cached identity was not evicted", "email", updated.Email, "error", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", updated.Email, updated.Role)
			return nil
		},
	}
	return cmd
}

func invalidateCachedUser(ctx context.Context, cfg *config.Config, emailAddr string) error {
	client, err := cache.New(ctx, cache.Config{
		Driver:   cfg.CacheDriver,
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   "contacts",
	})
	if err != nil {
		return err
	}
	defer client.Close()

	return cache.NewUserCache(client, cfg.UserCacheTTL).Invalidate(ctx, emailAddr)
}

// readPassword prompts without echo on a terminal and reads a single line
// otherwise, so the command also works with piped input.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
