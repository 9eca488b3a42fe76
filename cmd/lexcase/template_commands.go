package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lexcase/internal/store"
	"lexcase/internal/textutil"
)

func newTemplateCommand(ctx *commandContext) *cobra.Command {
	templateCmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"templates"},
		Short:   "Manage document templates",
		Long: "Templates are rendered by `lexcase case export --template`.\n" +
			"Placeholders: " + store.PlaceholderCaseName + " and " + store.PlaceholderStageSummaries + ".",
	}

	var content, file string
	var update bool
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Store a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readFacts(cmd.InOrStdin(), content, file)
			if err != nil {
				return fmt.Errorf("template content: %w", err)
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if update {
				existing, err := st.Template(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if existing != nil {
					if err := st.UpdateTemplate(cmd.Context(), existing.ID, body); err != nil {
						return err
					}
					fmt.Fprintf(out, "Updated template %s\n", existing.Name)
					return nil
				}
			}
			tmpl, err := st.CreateTemplate(cmd.Context(), args[0], body)
			if errors.Is(err, store.ErrDuplicateName) {
				return fmt.Errorf("a template named %q already exists (use --update to replace it)", strings.TrimSpace(args[0]))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Added template %s (%s)\n", tmpl.Name, tmpl.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&content, "content", "", "Template text")
	addCmd.Flags().StringVarP(&file, "file", "f", "", "Read the template from a file (- for stdin)")
	addCmd.Flags().BoolVar(&update, "update", false, "Replace the content of an existing template")

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			templates, err := st.ListTemplates(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(templates) == 0 {
				fmt.Fprintln(out, "No templates stored")
				return nil
			}
			rows := make([][]string, 0, len(templates))
			for _, tmpl := range templates {
				rows = append(rows, []string{
					tmpl.Name,
					humanize.Comma(int64(textutil.RuneLen(tmpl.Content))),
					humanize.Time(tmpl.UpdatedAt),
					shortID(tmpl.ID),
				})
			}
			fmt.Fprint(out, renderTable(
				[]tableColumn{wrapCol("Name", 32), numCol("Chars"), col("Updated"), col("ID")},
				rows,
			))
			fmt.Fprintln(out)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <template>",
		Short: "Print a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := resolveTemplate(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tmpl.Content)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:     "delete <template>",
		Aliases: []string{"rm"},
		Short:   "Delete a template",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := resolveTemplate(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			if _, err := st.DeleteTemplate(cmd.Context(), tmpl.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted template %s\n", tmpl.Name)
			return nil
		},
	}

	templateCmd.AddCommand(addCmd, listCmd, showCmd, deleteCmd)
	return templateCmd
}

func resolveTemplate(cmd *cobra.Command, ctx *commandContext, ref string) (*store.Template, error) {
	st, err := ctx.openStore()
	if err != nil {
		return nil, err
	}
	tmpl, err := st.Template(cmd.Context(), ref)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, fmt.Errorf("template %q not found", ref)
	}
	return tmpl, nil
}
