package main

import (
	"context"
	"fmt"
	"strings"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/FlameGreat-1/nswcleaningcompany-sub001/config"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "accountsctl",
		Short:         "Maintenance tasks for the account core",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to accounts.yaml")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newMigrateCmd(flags),
		newSweepCmd(flags),
		newConfigCmd(flags),
		newUsersCmd(flags),
	)
	return root
}

// withApp loads options, builds the app and closes it after run
func withApp(cmd *cobra.Command, flags *rootFlags, run func(ctx context.Context, a *app) error) error {
	opts, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	a, err := newApp(opts, newLogger(flags.verbose))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := run(cmd.Context(), a); err != nil {
		return err
	}
	if flags.verbose {
		return a.writeMetrics(cmd.ErrOrStderr())
	}
	return nil
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the account tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func newSweepCmd(flags *rootFlags) *cobra.Command {
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired tokens and stale sessions",
	}

	tokens := &cobra.Command{
		Use:   "tokens",
		Short: "Delete verification and reset tokens past their expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				n, err := a.tokens.SweepExpired(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired tokens\n", n)
				return nil
			})
		},
	}

	var days int
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Delete sessions without activity for the given number of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				maxAge := days
				if !cmd.Flags().Changed("days") {
					maxAge = a.opts.Sessions.StaleAfterDays
				}
				n, err := a.sessions.SweepStale(ctx, maxAge)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d sessions idle for %d days\n", n, maxAge)
				return nil
			})
		},
	}
	sessions.Flags().IntVar(&days, "days", 30, "inactivity age in days, defaults to sessions.stale_after_days")

	sweep.AddCommand(tokens, sessions)
	return sweep
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration, secrets omitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(opts))
			return nil
		},
	}
}

func newUsersCmd(flags *rootFlags) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Administrative account actions",
	}

	var reason string
	deactivate := &cobra.Command{
		Use:   "deactivate <email>",
		Short: "Deactivate an identity, closing its sessions and social links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				user, err := a.repo.Users().GetByEmail(ctx, args[0])
				if err != nil {
					return lookupError(args[0], err)
				}
				_, err = a.lifecycle.Deactivate(ctx, operator(), user, auth.WithTransitionReason(reason))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deactivated %s\n", user.Email)
				return nil
			})
		},
	}
	deactivate.Flags().StringVar(&reason, "reason", "", "reason recorded with the transition")

	reactivate := &cobra.Command{
		Use:   "reactivate <email>",
		Short: "Restore a deactivated identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				user, err := a.repo.Users().GetByEmail(ctx, args[0])
				if err != nil {
					return lookupError(args[0], err)
				}
				if _, err := a.lifecycle.Reactivate(ctx, operator(), user); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reactivated %s\n", user.Email)
				return nil
			})
		},
	}

	users.AddCommand(deactivate, reactivate)
	return users
}

func operator() auth.ActorRef {
	return auth.ActorRef{ID: "accountsctl", Type: "operator"}
}

func lookupError(email string, err error) error {
	if auth.IsRecordNotFound(err) {
		return fmt.Errorf("no identity with email %s", strings.TrimSpace(email))
	}
	return err
}
