package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/redochen/ccnetcore/internal/cli/ui"
	"github.com/redochen/ccnetcore/internal/domain"
	"github.com/redochen/ccnetcore/internal/orm/crud"
	"github.com/redochen/ccnetcore/internal/orm/dialect"
)

// NewRoleCommand creates the role command group
func NewRoleCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "List and add roles",
	}
	cmd.AddCommand(newRoleListCommand(opts))
	cmd.AddCommand(newRoleAddCommand(opts))
	return cmd
}

func newRoleListCommand(opts *rootOptions) *cobra.Command {
	var size, page int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List roles that are not deleted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeadline(cmd, opts, func(ctx context.Context, a *app) error {
				roles, err := a.roles(ctx)
				if err != nil {
					return err
				}

				var items []domain.Role
				footer := ""
				if size > 0 {
					p, err := roles.List(ctx, crud.FindOptions{
						OrderBy:   []dialect.Order{dialect.Asc("Sort"), dialect.Asc("Name")},
						PageSize:  size,
						PageIndex: page,
					})
					if err != nil {
						return err
					}
					items = p.Items
					footer = fmt.Sprintf("page %d of %d, %d roles", p.PageIndex+1, p.TotalPages, p.TotalCount)
				} else {
					items, err = roles.All(ctx)
					if err != nil {
						return err
					}
				}

				t := ui.NewTable(a.out, a.noColor, "Uid", "Name", "Code", "Sort", "Status")
				for _, r := range items {
					t.AddRow(r.Uid, r.Name, r.Code, strconv.Itoa(r.Sort), r.Status.String())
				}
				t.Render()
				if footer != "" {
					fmt.Fprintln(a.out, footer)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&size, "size", 0, "page size; 0 lists every role")
	cmd.Flags().IntVar(&page, "page", 0, "0-based page index")
	return cmd
}

func newRoleAddCommand(opts *rootOptions) *cobra.Command {
	var (
		role   domain.Role
		remark string
		by     string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a role",
		Long: `Add a role. Name and Code together must be unique; missing values are
prompted for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := askMissing(&role.Name, "Role name:"); err != nil {
				return err
			}
			if err := askMissing(&role.Code, "Role code:"); err != nil {
				return err
			}
			if cmd.Flags().Changed("remark") {
				role.Remark = &remark
			}

			return withDeadline(cmd, opts, func(ctx context.Context, a *app) error {
				roles, err := a.roles(ctx)
				if err != nil {
					return err
				}
				if err := roles.Create(ctx, &role, by); err != nil {
					return err
				}
				ui.WriteSuccess(a.out, fmt.Sprintf("Created role %s (%s)", role.Name, role.Uid), a.noColor)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role.Name, "name", "", "role name")
	cmd.Flags().StringVar(&role.Code, "code", "", "role code")
	cmd.Flags().IntVar(&role.Sort, "sort", 0, "display order")
	cmd.Flags().StringVar(&remark, "remark", "", "free-form remark")
	cmd.Flags().StringVar(&by, "by", "cli", "recorded as the creator")
	return cmd
}

// askMissing prompts for *dst when it is empty
func askMissing(dst *string, message string) error {
	if *dst != "" {
		return nil
	}
	return survey.AskOne(&survey.Input{Message: message}, dst, survey.WithValidator(survey.Required))
}
