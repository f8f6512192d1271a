// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/holomush/identity/internal/identity"
	"github.com/holomush/identity/internal/token"
)

func (a *app) newRegisterCmd() *cobra.Command {
	var login, pass string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user with a username and password",
		Long: `Register creates a user, its username credential and its password.
The password is read from the first line of standard input unless
--password is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := newLineReader(cmd.InOrStdin()).
				valueOrLine(pass, cmd.Flags().Changed("password"), "password")
			if err != nil {
				return err
			}

			svc, cleanup, err := a.buildServices(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.register.Register(cmd.Context(), login, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", identity.NormalizeLogin(login))
			return nil
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "username to register")
	cmd.Flags().StringVar(&pass, "password", "", "password (default: read from stdin)")
	_ = cmd.MarkFlagRequired("login") //nolint:errcheck // flag is defined above
	return cmd
}

func (a *app) newLoginCmd() *cobra.Command {
	var login, pass string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and print an access and refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := newLineReader(cmd.InOrStdin()).
				valueOrLine(pass, cmd.Flags().Changed("password"), "password")
			if err != nil {
				return err
			}

			svc, cleanup, err := a.buildServices(cmd.Context(), cmd, true)
			if err != nil {
				return err
			}
			defer cleanup()

			tokens, err := svc.auth.Authenticate(cmd.Context(), login, password)
			if err != nil {
				return err
			}
			printTokens(cmd.OutOrStdout(), tokens)
			return nil
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "username")
	cmd.Flags().StringVar(&pass, "password", "", "password (default: read from stdin)")
	_ = cmd.MarkFlagRequired("login") //nolint:errcheck // flag is defined above
	return cmd
}

func (a *app) newRefreshCmd() *cobra.Command {
	var refreshToken string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange a refresh token for a new token pair",
		Long: `Refresh consumes a refresh token and prints a new access and refresh
token. The old refresh token stops working whatever the outcome.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := newLineReader(cmd.InOrStdin()).
				valueOrLine(refreshToken, cmd.Flags().Changed("token"), "refresh token")
			if err != nil {
				return err
			}

			svc, cleanup, err := a.buildServices(cmd.Context(), cmd, true)
			if err != nil {
				return err
			}
			defer cleanup()

			tokens, err := svc.refresh.Refresh(cmd.Context(), tok)
			if err != nil {
				return err
			}
			printTokens(cmd.OutOrStdout(), tokens)
			return nil
		},
	}
	cmd.Flags().StringVar(&refreshToken, "token", "", "refresh token (default: read from stdin)")
	return cmd
}

func (a *app) newPasswdCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of a user",
		Long: `Passwd reads the current password and then the new password from
standard input, one per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseUserID(userID)
			if err != nil {
				return err
			}
			lines := newLineReader(cmd.InOrStdin())
			current, err := lines.next("current password")
			if err != nil {
				return err
			}
			next, err := lines.next("new password")
			if err != nil {
				return err
			}

			svc, cleanup, err := a.buildServices(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.password.ChangePassword(cmd.Context(), id, current, next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password changed")
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user") //nolint:errcheck // flag is defined above
	return cmd
}

func (a *app) newWhoamiCmd() *cobra.Command {
	var accessToken string
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Verify an access token and print its user id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := newLineReader(cmd.InOrStdin()).
				valueOrLine(accessToken, cmd.Flags().Changed("token"), "access token")
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			issuer, err := token.NewAccessIssuer(cfg.AccessConfig())
			if err != nil {
				return err
			}
			userID, err := issuer.Parse(tok)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), userID.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&accessToken, "token", "", "access token (default: read from stdin)")
	return cmd
}

func printTokens(w io.Writer, tokens *identity.Tokens) {
	fmt.Fprintf(w, "user_id: %s\n", tokens.UserID)
	fmt.Fprintf(w, "access_token: %s\n", tokens.AccessToken)
	fmt.Fprintf(w, "refresh_token: %s\n", tokens.RefreshToken)
}
