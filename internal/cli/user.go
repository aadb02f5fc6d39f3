package cli

import (
	"github.com/spf13/cobra"

	"github.com/weavefeed/accounts/internal/cache"
	"github.com/weavefeed/accounts/internal/metrics"
	"github.com/weavefeed/accounts/internal/repository"
	"github.com/weavefeed/accounts/internal/service"
)

func (a *app) userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Create, authenticate and inspect accounts",
	}
	cmd.AddCommand(
		a.userCreateCommand(),
		a.userLoginCommand(),
		a.userShowCommand(),
	)
	return cmd
}

// withService opens the database, and Redis when configured, and runs fn
// with an AccountService over them.
func (a *app) withService(cmd *cobra.Command, fn func(svc *service.AccountService) error) error {
	ctx, cancel := a.context(cmd)
	defer cancel()

	db, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close() //nolint: errcheck

	var throttle service.Throttle
	if c := a.openCache(ctx); c != nil {
		defer c.Close() //nolint: errcheck
		throttle = cache.NewLoginThrottle(c, a.cfg.Login.RatePerMinute, a.cfg.Login.Burst)
	}

	repo := repository.New(db.SQL(), db.Dialect())
	svc := service.NewAccountService(repo, a.opts.Hasher, throttle, nil, metrics.NewNoop(), a.logger)

	cmd.SetContext(ctx)
	return fn(svc)
}

func (a *app) userCreateCommand() *cobra.Command {
	var req service.SignupRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Password == "" {
				pw, err := a.readPassword("Password: ")
				if err != nil {
					return err
				}
				req.Password = pw
			}

			return a.withService(cmd, func(svc *service.AccountService) error {
				acct, err := svc.Signup(cmd.Context(), req)
				if err != nil {
					return err
				}
				return a.printJSON(acct)
			})
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "Username (3-32 letters, digits, '_', '.', '-')")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.DisplayName, "display-name", "", "Profile display name (defaults to the username)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func (a *app) userLoginCommand() *cobra.Command {
	var login, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check a username or email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				pw, err := a.readPassword("Password: ")
				if err != nil {
					return err
				}
				password = pw
			}

			return a.withService(cmd, func(svc *service.AccountService) error {
				user, err := svc.Login(cmd.Context(), login, password)
				if err != nil {
					return err
				}
				return a.printJSON(user)
			})
		},
	}

	cmd.Flags().StringVar(&login, "login", "", "Username or email")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("login")

	return cmd
}

func (a *app) userShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <username>",
		Short: "Print an account and its profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(svc *service.AccountService) error {
				acct, err := svc.GetAccount(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printJSON(acct)
			})
		},
	}
}
