package commands

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/redochen/ccnetcore/internal/cli/ui"
	"github.com/redochen/ccnetcore/internal/domain"
	"github.com/redochen/ccnetcore/internal/orm/crud"
)

// NewUserCommand creates the user command group
func NewUserCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Add users and change their passwords",
	}
	cmd.AddCommand(newUserAddCommand(opts))
	cmd.AddCommand(newUserPasswdCommand(opts))
	return cmd
}

func newUserAddCommand(opts *rootOptions) *cobra.Command {
	var (
		user     domain.User
		email    string
		roleUid  string
		password string
		by       string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := askMissing(&user.Account, "Account:"); err != nil {
				return err
			}
			if password == "" {
				var err error
				if password, err = askNewPassword("Password:"); err != nil {
					return err
				}
			}
			if email != "" {
				user.Email = &email
			}
			if roleUid != "" {
				user.RoleUid = &roleUid
			}

			return withDeadline(cmd, opts, func(ctx context.Context, a *app) error {
				users, err := a.users(ctx)
				if err != nil {
					return err
				}
				if err := users.Register(ctx, &user, password, by); err != nil {
					return err
				}
				ui.WriteSuccess(a.out, fmt.Sprintf("Created user %s (%s)", user.Account, user.Uid), a.noColor)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user.Account, "account", "", "sign-in account")
	cmd.Flags().StringVar(&user.Name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&roleUid, "role", "", "uid of the user's role")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&by, "by", "cli", "recorded as the creator")
	return cmd
}

func newUserPasswdCommand(opts *rootOptions) *cobra.Command {
	var account, current, next string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change a user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := askMissing(&account, "Account:"); err != nil {
				return err
			}
			if current == "" {
				if err := survey.AskOne(&survey.Password{Message: "Current password:"}, &current); err != nil {
					return err
				}
			}
			if next == "" {
				var err error
				if next, err = askNewPassword("New password:"); err != nil {
					return err
				}
			}

			return withDeadline(cmd, opts, func(ctx context.Context, a *app) error {
				users, err := a.users(ctx)
				if err != nil {
					return err
				}
				u, err := users.Authenticate(ctx, account, current)
				if err != nil {
					return err
				}
				if err := users.ChangePassword(ctx, u.Uid, current, next, u.Uid); err != nil {
					return err
				}
				ui.WriteSuccess(a.out, "Password changed for "+account, a.noColor)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "sign-in account")
	cmd.Flags().StringVar(&current, "current", "", "current password (prompted when omitted)")
	cmd.Flags().StringVar(&next, "new", "", "new password (prompted when omitted)")
	return cmd
}

var errPasswordMismatch = fmt.Errorf("passwords do not match: %w", crud.ErrInvalidParam)

func askNewPassword(message string) (string, error) {
	var first, second string
	if err := survey.AskOne(&survey.Password{Message: message}, &first, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	if err := survey.AskOne(&survey.Password{Message: "Repeat:"}, &second); err != nil {
		return "", err
	}
	if first != second {
		return "", errPasswordMismatch
	}
	return first, nil
}

