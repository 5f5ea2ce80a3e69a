package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"scout-portal/internal/child"
	"scout-portal/internal/config"
	"scout-portal/internal/db"
	"scout-portal/internal/domain"
	"scout-portal/internal/logger"
	"scout-portal/internal/notify"
	"scout-portal/internal/user"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// opener returns a database handle and a function releasing it.
type opener func() (*gorm.DB, func(), error)

func postgresOpener(cfg config.Config) opener {
	return func() (*gorm.DB, func(), error) {
		gdb, err := db.ConnectDb(cfg)
		if err != nil {
			return nil, nil, err
		}
		return gdb, func() { db.CloseDb(gdb) }, nil
	}
}

func main() {
	config.LoadConfig()
	logger.Init(config.AppConfig.Environment, config.AppConfig.LogLevel)

	if err := rootCommand(config.AppConfig, postgresOpener(config.AppConfig)).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand(cfg config.Config, open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "scout-admin",
		Short:         "Operator tasks for the scout document portal",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		migrateCommand(open),
		createUserCommand(open),
		linkGuardianCommand(open),
		notifyCommand(cfg),
	)
	return root
}

func migrateCommand(open opener) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, closeDb, err := open()
			if err != nil {
				return err
			}
			defer closeDb()

			if err := db.Migrate(gdb); err != nil {
				return err
			}
			if seed {
				return db.SeedData(cmd.Context(), gdb)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "also create the development reviewer account")
	return cmd
}

func createUserCommand(open opener) *cobra.Command {
	var (
		name     string
		email    string
		password string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a guardian, scouter or admin account",
		Long: `Create an account. Scouter and admin accounts can only be created here.

Example:
  scout-admin create-user --name="Akela" --email=akela@example.com --password=secret --role=scouter`,
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, closeDb, err := open()
			if err != nil {
				return err
			}
			defer closeDb()

			u := &domain.User{
				Name:     name,
				Email:    email,
				Password: password,
				Role:     domain.Role(role),
			}
			if err := user.NewService(user.NewRepository(gdb), nil).CreateAccount(cmd.Context(), u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (id %d)\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleScouter), "guardian, scouter or admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func linkGuardianCommand(open opener) *cobra.Command {
	var (
		childID    uint64
		guardianID uint64
		relation   string
	)

	cmd := &cobra.Command{
		Use:   "link-guardian",
		Short: "Link a guardian account to a child",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, closeDb, err := open()
			if err != nil {
				return err
			}
			defer closeDb()

			users := user.NewService(user.NewRepository(gdb), nil)
			children := child.NewService(child.NewRepository(gdb), users)

			// operators act with admin rights
			operator := domain.Actor{Role: domain.RoleAdmin}
			link, err := children.LinkGuardian(cmd.Context(), operator, childID, guardianID, relation)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "linked guardian %d to child %d\n", link.GuardianID, link.ChildID)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&childID, "child", 0, "child id")
	cmd.Flags().Uint64Var(&guardianID, "guardian", 0, "guardian user id")
	cmd.Flags().StringVar(&relation, "relation", "", "relation to the child, e.g. mother")
	_ = cmd.MarkFlagRequired("child")
	_ = cmd.MarkFlagRequired("guardian")
	return cmd
}

func notifyCommand(cfg config.Config) *cobra.Command {
	var urls []string

	cmd := &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test notification through the configured channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(urls) == 0 {
				urls = cfg.NotifyURLs
			}
			var notifiers []notify.Notifier
			if len(urls) > 0 {
				sn, err := notify.NewShoutrrrNotifier(urls, 10*time.Second)
				if err != nil {
					return err
				}
				notifiers = append(notifiers, sn)
			}
			if cfg.NotifyWebhookURL != "" {
				notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.NotifyWebhookURL))
			}
			if len(notifiers) == 0 {
				return fmt.Errorf("no notification channel configured")
			}

			event := notify.Event{
				Type:       notify.EventDocumentSubmitted,
				DocType:    domain.DocDNI,
				Note:       "test notification",
				OccurredAt: time.Now().UTC(),
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			for _, n := range notifiers {
				if err := n.Notify(ctx, event); err != nil {
					return fmt.Errorf("%s: %w", n.Name(), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent via %s\n", n.Name())
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&urls, "url", nil, "shoutrrr URL, overrides NOTIFY_URLS")
	return cmd
}
