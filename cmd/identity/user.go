// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/holomush/identity/internal/identity"
)

func (a *app) newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect and manage user accounts",
	}
	cmd.AddCommand(a.newUserShowCmd())
	cmd.AddCommand(a.newUserDeleteCmd())
	cmd.AddCommand(a.newUserRestoreCmd())
	return cmd
}

func (a *app) newUserShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a user, including blocked and deleted ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := a.buildServices(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()

			user, err := svc.account.FindUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), user)
			return nil
		},
	}
}

func (a *app) newUserDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Soft delete a user",
		Long:  `Delete marks a user deleted. Its logins and refresh tokens stop working until it is restored.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := a.buildServices(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.account.SoftDelete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
}

func (a *app) newUserRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore ID",
		Short: "Undo a soft delete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := a.buildServices(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.account.Restore(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", id)
			return nil
		},
	}
}

func printUser(w io.Writer, user *identity.User) {
	state := "active"
	switch {
	case user.DeletedAt != nil:
		state = "deleted"
	case user.BlockedAt != nil:
		state = "blocked"
	}
	fmt.Fprintf(w, "id:         %s\n", user.ID)
	fmt.Fprintf(w, "state:      %s\n", state)
	fmt.Fprintf(w, "created_at: %s\n", user.CreatedAt.UTC().Format(time.RFC3339))
	if user.DeletedAt != nil {
		fmt.Fprintf(w, "deleted_at: %s\n", user.DeletedAt.UTC().Format(time.RFC3339))
	}
	if user.BlockedAt != nil {
		fmt.Fprintf(w, "blocked_at: %s\n", user.BlockedAt.UTC().Format(time.RFC3339))
	}
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"first_name", user.FirstName},
		{"middle_name", user.MiddleName},
		{"last_name", user.LastName},
		{"gender", user.Gender},
	} {
		if field.value != nil {
			fmt.Fprintf(w, "%-11s %s\n", field.name+":", *field.value)
		}
	}
	if user.Birthdate != nil {
		fmt.Fprintf(w, "birthdate:  %s\n", user.Birthdate.Format(time.DateOnly))
	}
}
