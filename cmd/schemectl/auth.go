package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scheme-admin/internal/adminapi"
	"scheme-admin/internal/apiclient"
	"scheme-admin/internal/cache"
	"scheme-admin/internal/tokenwatch"
)

func newLoginCmd(a *app) *cobra.Command {
	var creds adminapi.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds.Password = envOr(creds.Password, "SCHEME_ADMIN_PASSWORD")
			if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
				return errors.New("email and password are required")
			}
			res, err := a.api.Login(cmd.Context(), creds)
			if err != nil {
				return errors.New(apiclient.UserMessage(err))
			}
			fmt.Fprintf(a.out, "logged in as %s (%s)\n", res.User.Email, res.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password (or SCHEME_ADMIN_PASSWORD)")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var reg adminapi.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg.Password = envOr(reg.Password, "SCHEME_ADMIN_PASSWORD")
			reg.SetupKey = envOr(reg.SetupKey, "SCHEME_ADMIN_SETUP_KEY")
			if strings.TrimSpace(reg.Email) == "" || reg.Password == "" {
				return errors.New("email and password are required")
			}
			res, err := a.api.Register(cmd.Context(), reg)
			if err != nil {
				return errors.New(apiclient.UserMessage(err))
			}
			fmt.Fprintf(a.out, "registered %s (%s)\n", res.User.Email, res.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "display name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "account password (or SCHEME_ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&reg.SetupKey, "setup-key", "", "admin setup key (or SCHEME_ADMIN_SETUP_KEY)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := a.store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Verify the stored token against the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			watcher := tokenwatch.New(a.api, a.store, tokenwatch.WithLogger(a.log))
			res, err := watcher.Check(cmd.Context())
			if err != nil {
				if res == tokenwatch.ResultLoggedOut {
					return errors.New("session expired; run schemectl login")
				}
				return errors.New(apiclient.UserMessage(err))
			}
			s, err := a.store.Load()
			if err != nil || s.User.Email == "" {
				fmt.Fprintln(a.out, "token valid")
				return nil
			}
			fmt.Fprintf(a.out, "%s (%s)\n", s.User.Email, s.User.Role)
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Revalidate the session token in the foreground until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			validations, closeCache, err := a.tokenCache(ctx)
			if err != nil {
				return err
			}
			defer closeCache()

			var logoutErr error
			watcher := tokenwatch.New(a.api, a.store,
				tokenwatch.WithInterval(a.cfg.TokenCheckEvery),
				tokenwatch.WithCacheTTL(a.cfg.TokenCacheTTL),
				tokenwatch.WithCache(validations),
				tokenwatch.WithLogger(a.log),
				tokenwatch.OnLogout(func(err error) {
					logoutErr = err
					cancel()
				}),
			)
			fmt.Fprintf(a.out, "watching session every %s\n", a.cfg.TokenCheckEvery)
			watcher.Start(ctx)
			<-ctx.Done()
			watcher.Stop()

			if logoutErr != nil {
				return errors.New("session expired; run schemectl login")
			}
			return nil
		},
	}
}

// tokenCache uses Redis when configured, memory otherwise.
func (a *app) tokenCache(ctx context.Context) (cache.Cache, func() error, error) {
	if a.cfg.RedisURL == "" && a.cfg.RedisAddr == "" {
		return cache.NewMemory(), func() error { return nil }, nil
	}
	var (
		rc  *cache.RedisCache
		err error
	)
	if a.cfg.RedisURL != "" {
		rc, err = cache.NewRedisFromURL(a.cfg.RedisURL)
	} else {
		rc = cache.NewRedis(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("token cache: %w", err)
	}
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("token cache: %w", err)
	}
	return rc, rc.Close, nil
}
