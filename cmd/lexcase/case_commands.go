package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lexcase/internal/api"
	"lexcase/internal/casetype"
	"lexcase/internal/config"
	"lexcase/internal/store"
)

func newCaseCommand(ctx *commandContext) *cobra.Command {
	caseCmd := &cobra.Command{
		Use:     "case",
		Aliases: []string{"cases"},
		Short:   "Manage stored cases",
	}
	caseCmd.AddCommand(
		newCaseNewCommand(ctx),
		newCaseListCommand(ctx),
		newCaseShowCommand(ctx),
		newCaseResetCommand(ctx),
		newCaseDeleteCommand(ctx),
		newCaseClearCommand(ctx),
		newCaseExportCommand(ctx),
	)
	return caseCmd
}

func newCaseNewCommand(ctx *commandContext) *cobra.Command {
	var facts, factsFile, role, caseType string
	var tags []string

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a case from its facts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readFacts(cmd.InOrStdin(), facts, factsFile)
			if err != nil {
				return err
			}
			detected := false
			if strings.TrimSpace(caseType) == "" {
				caseType = casetype.Determine(text)
				detected = true
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			created, err := st.CreateCase(cmd.Context(), store.NewCase{
				Name:      args[0],
				Facts:     text,
				PartyRole: role,
				CaseType:  caseType,
				Tags:      tags,
			})
			if errors.Is(err, store.ErrDuplicateName) {
				return fmt.Errorf("a case named %q already exists", strings.TrimSpace(args[0]))
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created case %s (%s)\n", created.Name, created.ID)
			if detected {
				fmt.Fprintf(out, "Detected case type: %s\n", created.CaseType)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&facts, "facts", "", "Case facts text")
	cmd.Flags().StringVarP(&factsFile, "file", "f", "", "Read the facts from a file (- for stdin)")
	cmd.Flags().StringVar(&role, "role", "", "Party the analysis is written for (e.g. مدعي)")
	cmd.Flags().StringVar(&caseType, "type", "", "Case type (detected from the facts when omitted)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag to attach (repeatable)")
	return cmd
}

func readFacts(stdin io.Reader, inline, path string) (string, error) {
	if text := strings.TrimSpace(inline); text != "" {
		return text, nil
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("case facts are required (use --facts or --file)")
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		var expanded string
		expanded, err = config.ExpandPath(path)
		if err == nil {
			data, err = os.ReadFile(expanded)
		}
	}
	if err != nil {
		return "", fmt.Errorf("read facts: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("case facts are empty")
	}
	return text, nil
}

func newCaseListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cases, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			cases, err := st.ListCases(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				summaries := make([]api.CaseSummary, 0, len(cases))
				for _, c := range cases {
					summaries = append(summaries, api.SummarizeCase(c))
				}
				return writeJSON(cmd, summaries)
			}
			out := cmd.OutOrStdout()
			if len(cases) == 0 {
				fmt.Fprintln(out, "No cases yet; create one with `lexcase case new`")
				return nil
			}
			total := 0
			if catalog, err := ctx.catalog(); err == nil {
				total = catalog.Len()
			}
			rows := make([][]string, 0, len(cases))
			for _, c := range cases {
				rows = append(rows, []string{
					c.Name,
					c.CaseType,
					stageProgress(len(c.CompletedOutputs()), total),
					yesNo(strings.TrimSpace(c.Petition) != ""),
					humanize.Time(c.UpdatedAt),
					shortID(c.ID),
				})
			}
			fmt.Fprint(out, renderTable(
				[]tableColumn{wrapCol("Name", 32), col("Type"), numCol("Stages"), col("Petition"), col("Updated"), col("ID")},
				rows,
			))
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func stageProgress(completed, total int) string {
	if total <= 0 {
		return strconv.Itoa(completed)
	}
	return fmt.Sprintf("%d/%d", completed, total)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newCaseShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var stageNumber int
	cmd := &cobra.Command{
		Use:   "show <case>",
		Short: "Show a case and its stage results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.resolveCase(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if stageNumber > 0 {
				result, ok := c.Stage(stageNumber - 1)
				if !ok {
					return fmt.Errorf("stage %d has not been analysed for %s", stageNumber, c.Name)
				}
				if asJSON {
					return writeJSON(cmd, api.FromStage(result))
				}
				printMarkdown(out, stageMarkdown(result))
				return nil
			}
			if asJSON {
				return writeJSON(cmd, api.FromCase(c))
			}
			printMarkdown(out, caseMarkdown(c))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&stageNumber, "stage", 0, "Show only this stage (1-based)")
	return cmd
}

func newCaseResetCommand(ctx *commandContext) *cobra.Command {
	var stageNumber int
	cmd := &cobra.Command{
		Use:   "reset <case>",
		Short: "Discard stored stage results so they are analysed again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.resolveCase(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			indices := make([]int, 0, len(c.Stages))
			if stageNumber > 0 {
				indices = append(indices, stageNumber-1)
			} else {
				for _, result := range c.Stages {
					indices = append(indices, result.Index)
				}
			}
			removed := 0
			for _, index := range indices {
				ok, err := st.DeleteStage(cmd.Context(), c.ID, index)
				if err != nil {
					return err
				}
				if ok {
					removed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stage result(s) from %s\n", removed, c.Name)
			return nil
		},
	}
	cmd.Flags().IntVar(&stageNumber, "stage", 0, "Reset only this stage (1-based)")
	return cmd
}

func newCaseDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <case>",
		Aliases: []string{"rm"},
		Short:   "Delete a case and its stage results",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.resolveCase(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			if _, err := st.DeleteCase(cmd.Context(), c.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted case %s\n", c.Name)
			return nil
		},
	}
}

func newCaseClearCommand(ctx *commandContext) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every case",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to delete all cases without --yes")
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			n, err := st.ClearCases(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d case(s)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm deletion")
	return cmd
}

func newCaseExportCommand(ctx *commandContext) *cobra.Command {
	var format, output, templateRef string
	cmd := &cobra.Command{
		Use:   "export <case>",
		Short: "Export a case as Markdown, JSON or a rendered template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.resolveCase(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			content, err := exportCase(cmd, ctx, c, format, templateRef)
			if err != nil {
				return err
			}
			if strings.TrimSpace(output) == "" || output == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), content)
				return err
			}
			path, err := config.ExpandPath(output)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", c.Name, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "Export format: markdown or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().StringVar(&templateRef, "template", "", "Render this stored template instead")
	return cmd
}

func exportCase(cmd *cobra.Command, ctx *commandContext, c *store.Case, format, templateRef string) (string, error) {
	if ref := strings.TrimSpace(templateRef); ref != "" {
		st, err := ctx.openStore()
		if err != nil {
			return "", err
		}
		tmpl, err := st.Template(cmd.Context(), ref)
		if err != nil {
			return "", err
		}
		if tmpl == nil {
			return "", fmt.Errorf("template %q not found", ref)
		}
		return tmpl.Render(c), nil
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "markdown", "md":
		return caseMarkdown(c), nil
	case "json":
		var b strings.Builder
		if err := encodeJSON(&b, api.FromCase(c)); err != nil {
			return "", err
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("unsupported export format %q (use markdown or json)", format)
}
