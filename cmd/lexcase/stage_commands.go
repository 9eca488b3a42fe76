package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lexcase/internal/api"
	"lexcase/internal/casetype"
	"lexcase/internal/stage"
)

func newStagesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List the analysis stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			infos := api.FromCatalog(catalog)
			if asJSON {
				return writeJSON(cmd, infos)
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					strconv.Itoa(info.Index + 1),
					info.Name,
					yesNo(info.Critical),
					formatDependencies(info.Dependencies),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(
				[]tableColumn{numCol("#"), wrapCol("Stage", 48), col("Critical"), col("Depends on")},
				rows,
			))
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// formatDependencies prints zero-based indices as 1-based stage numbers.
func formatDependencies(deps []int) string {
	if len(deps) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(deps))
	for _, dep := range deps {
		parts = append(parts, strconv.Itoa(dep+1))
	}
	return strings.Join(parts, ", ")
}

type detectReport struct {
	Detection       casetype.Detection        `json:"detection"`
	Complexity      casetype.ComplexityReport `json:"complexity"`
	AdditionalTypes []string                  `json:"additionalTypes,omitempty"`
	SuggestedStages []string                  `json:"suggestedStages,omitempty"`
}

func buildDetectReport(text string) detectReport {
	detection := casetype.Detect(text)
	types := []string{detection.Type}
	for _, alt := range detection.Alternatives {
		types = append(types, alt.Type)
	}
	return detectReport{
		Detection:       detection,
		Complexity:      casetype.AnalyzeComplexity(text, types),
		AdditionalTypes: casetype.SuggestAdditional(text, detection.Type),
		SuggestedStages: casetype.SuggestCustomStages(types),
	}
}

func newDetectCommand() *cobra.Command {
	var file string
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "detect [text]",
		Short:       "Detect the case type and complexity of a text",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inline := ""
			if len(args) == 1 {
				inline = args[0]
			}
			text, err := readFacts(cmd.InOrStdin(), inline, file)
			if err != nil {
				return err
			}
			report := buildDetectReport(text)
			if asJSON {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Case type:  %s (%d%%)\n", report.Detection.Type, report.Detection.Confidence)
			for _, reason := range report.Detection.Reasons {
				fmt.Fprintf(out, "  - %s\n", reason)
			}
			for _, alt := range report.Detection.Alternatives {
				fmt.Fprintf(out, "Alternative: %s (%d%%)\n", alt.Type, alt.Confidence)
			}
			fmt.Fprintf(out, "Complexity: %s (score %d, estimated %s)\n",
				report.Complexity.Level, report.Complexity.Score, report.Complexity.EstimatedDuration)
			for _, factor := range report.Complexity.Factors {
				fmt.Fprintf(out, "  - %s\n", factor)
			}
			if len(report.AdditionalTypes) > 0 {
				fmt.Fprintf(out, "Also consider: %s\n", strings.Join(report.AdditionalTypes, "، "))
			}
			if len(report.SuggestedStages) > 0 {
				fmt.Fprintln(out, "Suggested extra stages:")
				for _, name := range report.SuggestedStages {
					fmt.Fprintf(out, "  - %s\n", name)
				}
			}
			fmt.Fprintf(out, "Critical stages: %s\n", criticalStageList())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the text from a file (- for stdin)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func criticalStageList() string {
	total := stage.Default().Len()
	parts := make([]string, 0, total)
	for i := range total {
		if stage.IsCritical(i) {
			parts = append(parts, strconv.Itoa(i+1))
		}
	}
	return strings.Join(parts, ", ")
}
