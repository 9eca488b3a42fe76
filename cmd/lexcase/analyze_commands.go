package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lexcase/internal/analysis"
	"lexcase/internal/api"
	"lexcase/internal/logging"
	"lexcase/internal/services"
	"lexcase/internal/stage"
	"lexcase/internal/store"
)

type analyzeOptions struct {
	mode       string
	profile    string
	recovery   string
	stage      string
	resumeFrom int
	model      string
	remote     bool
	asJSON     bool
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze <case>",
		Short: "Run the staged analysis for a case",
		Long: "Runs every analysis stage for the case in order, saving each finished stage.\n" +
			"Use --stage to analyse a single stage or --resume-from to continue an earlier run.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := ctx.resolveCase(runCtx, args[0])
			if err != nil {
				return err
			}
			analyzer, catalog, err := ctx.analyzer(opts.remote)
			if err != nil {
				return err
			}
			apiKey, err := ctx.apiKey(runCtx)
			if err != nil && !opts.remote {
				return err
			}
			model := strings.TrimSpace(opts.model)
			if model == "" {
				model = ctx.preferredModel(runCtx)
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			runCtx = services.WithCaseID(runCtx, c.ID)

			if strings.TrimSpace(opts.stage) != "" {
				index, err := resolveStageRef(catalog, opts.stage)
				if err != nil {
					return err
				}
				return analyzeSingleStage(cmd, runCtx, st, analyzer, catalog, c, index, apiKey, model, opts.asJSON)
			}
			return runAllStages(cmd, runCtx, ctx, st, analyzer, catalog, c, apiKey, model, opts)
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Orchestrator: smart or sequential (default from config)")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "Retry profile: default, robust or patient")
	cmd.Flags().StringVar(&opts.recovery, "policy", "", "Failure policy: skip, retry_with_context or block_until_success")
	cmd.Flags().StringVar(&opts.stage, "stage", "", "Analyse only this stage (1-based number or name)")
	cmd.Flags().IntVar(&opts.resumeFrom, "resume-from", 0, "Continue from this stage (1-based), reusing stored results")
	cmd.Flags().StringVar(&opts.model, "model", "", "Gemini model (default from settings)")
	cmd.Flags().BoolVar(&opts.remote, "remote", false, "Send stage requests to the running daemon")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Output the result as JSON")
	return cmd
}

// resolveStageRef accepts a 1-based stage number or a stage name.
func resolveStageRef(catalog *stage.Catalog, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > catalog.Len() {
			return 0, fmt.Errorf("stage %d is out of range (1-%d)", n, catalog.Len())
		}
		return n - 1, nil
	}
	if index := catalog.Index(ref); index >= 0 {
		return index, nil
	}
	return 0, fmt.Errorf("unknown stage %q", ref)
}

// previousOutputs returns the stored completed outputs of stages before
// limit, indexed by stage.
func previousOutputs(c *store.Case, limit int) []string {
	out := make([]string, limit)
	for _, result := range c.Stages {
		if result.Index < limit && result.Status == store.StageCompleted {
			out[result.Index] = result.Output
		}
	}
	return out
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func analyzeSingleStage(cmd *cobra.Command, ctx context.Context, st *store.Store, analyzer analysis.Analyzer, catalog *stage.Catalog, c *store.Case, index int, apiKey, model string, asJSON bool) error {
	def, _ := catalog.At(index)
	began := time.Now()
	resp, err := analyzer.Analyze(ctx, analysis.Request{
		Text:              c.Facts,
		StageIndex:        index,
		APIKey:            apiKey,
		Model:             model,
		PreviousSummaries: nonEmpty(previousOutputs(c, index)),
		PartyRole:         c.PartyRole,
	})
	if err != nil {
		return fmt.Errorf("analyse stage %d (%s): %w", index+1, def.Name, err)
	}
	saved, err := st.PutStage(ctx, store.StageResult{
		CaseID:   c.ID,
		Index:    index,
		Name:     def.Name,
		Input:    c.Facts,
		Output:   resp.Analysis,
		Status:   store.StageCompleted,
		Duration: time.Since(began),
	})
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd, api.FromResponse(resp))
	}
	printMarkdown(cmd.OutOrStdout(), stageMarkdown(*saved))
	if resp.Cached {
		fmt.Fprintln(cmd.ErrOrStderr(), "(served from the analysis cache)")
	}
	return nil
}

func runAllStages(cmd *cobra.Command, runCtx context.Context, ctx *commandContext, st *store.Store, analyzer analysis.Analyzer, catalog *stage.Catalog, c *store.Case, apiKey, model string, opts analyzeOptions) error {
	settings := analysis.SettingsFromConfig(ctx.configValue())
	if v := strings.ToLower(strings.TrimSpace(opts.mode)); v != "" {
		settings.Mode = v
	}
	if v := strings.ToLower(strings.TrimSpace(opts.profile)); v != "" {
		settings.Profile = v
	}
	if v := strings.TrimSpace(opts.recovery); v != "" {
		settings.Recovery = strings.ReplaceAll(strings.ToLower(v), "-", "_")
	}

	progressOut := cmd.OutOrStdout()
	if opts.asJSON {
		progressOut = cmd.ErrOrStderr()
	}
	logger := ctx.loggerValue()
	managerOpts := []analysis.Option{
		analysis.WithLogger(logger),
		analysis.WithObserver(analysis.NewRecorder(st, c.ID, logger)),
		analysis.WithObserver(newProgressPrinter(progressOut, catalog.Len())),
	}
	if runSleeper != nil {
		managerOpts = append(managerOpts, analysis.WithSleeper(runSleeper))
	}
	manager, err := analysis.NewManager(settings, analyzer, catalog, managerOpts...)
	if err != nil {
		return err
	}

	in := analysis.Input{Text: c.Facts, APIKey: apiKey, Model: model, PartyRole: c.PartyRole}
	logging.WithContext(runCtx, logger).Info("analysis requested",
		logging.String(logging.FieldEventType, "cli_analyze"),
		logging.String("mode", settings.Mode),
		logging.Int("resume_from", opts.resumeFrom),
	)

	var result *analysis.Result
	if opts.resumeFrom > 0 {
		start := opts.resumeFrom - 1
		if start >= catalog.Len() {
			return fmt.Errorf("stage %d is out of range (1-%d)", opts.resumeFrom, catalog.Len())
		}
		result, err = manager.ResumeFromStage(runCtx, in, start, previousOutputs(c, start))
	} else {
		result, err = manager.Run(runCtx, in)
	}
	if result != nil {
		if opts.asJSON {
			if jsonErr := writeJSON(cmd, result); jsonErr != nil {
				return jsonErr
			}
		} else {
			printResult(cmd.OutOrStdout(), result, shouldColorize(cmd.OutOrStdout()))
		}
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("analysis interrupted; continue with --resume-from: %w", err)
	}
	if err != nil {
		return err
	}
	if !result.Success && !result.Stopped {
		return fmt.Errorf("analysis incomplete: %d of %d stage(s) failed", result.Summary.Failed, result.Summary.Total)
	}
	return nil
}

type progressPrinter struct {
	out   io.Writer
	total int
}

func newProgressPrinter(out io.Writer, total int) *progressPrinter {
	return &progressPrinter{out: out, total: total}
}

func (p *progressPrinter) ProgressChanged(context.Context, analysis.Progress) {}

func (p *progressPrinter) StageFinished(_ context.Context, state analysis.StageState) {
	line := fmt.Sprintf("[%d/%d] %s: %s", state.Index+1, p.total, state.Name, state.Status)
	if state.RetryCount > 0 {
		line += fmt.Sprintf(" (%d retries)", state.RetryCount)
	}
	if state.Duration > 0 {
		line += " " + analysis.FormatDuration(state.Duration)
	}
	fmt.Fprintln(p.out, line)
}

func printResult(out io.Writer, result *analysis.Result, colorize bool) {
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Analysis Summary", colorize) {
		fmt.Fprintln(out, line)
	}
	kind := statusOK
	switch {
	case result.Stopped:
		kind = statusInfo
	case !result.Success:
		kind = statusError
	case result.Summary.Skipped > 0:
		kind = statusWarn
	}
	s := result.Summary
	fmt.Fprintln(out, renderStatusLine("Stages", kind,
		fmt.Sprintf("%d completed, %d failed, %d skipped of %d (%d%%)", s.Completed, s.Failed, s.Skipped, s.Total, s.SuccessRate), colorize))
	fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, s.TotalTime, colorize))
	if result.Stopped {
		fmt.Fprintln(out, renderStatusLine("Run", statusInfo, "stopped before completion", colorize))
	}
	for _, stageErr := range result.Errors {
		fmt.Fprintln(out, renderStatusLine(fmt.Sprintf("Stage %d", stageErr.StageIndex+1), statusError,
			fmt.Sprintf("%s (after %d retries)", stageErr.Error, stageErr.RetryCount), colorize))
	}
	for _, rec := range result.Recommendations {
		fmt.Fprintln(out, renderStatusLine("Recommendation", statusWarn, rec, colorize))
	}
}

func newPetitionCommand(ctx *commandContext) *cobra.Command {
	var model string
	var remote, asJSON bool
	cmd := &cobra.Command{
		Use:   "petition <case>",
		Short: "Draft the final petition from the completed stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()
			c, err := ctx.resolveCase(runCtx, args[0])
			if err != nil {
				return err
			}
			summaries := c.CompletedOutputs()
			if len(summaries) == 0 {
				return fmt.Errorf("case %s has no completed stages; run `lexcase analyze` first", c.Name)
			}
			analyzer, _, err := ctx.analyzer(remote)
			if err != nil {
				return err
			}
			apiKey, err := ctx.apiKey(runCtx)
			if err != nil && !remote {
				return err
			}
			if strings.TrimSpace(model) == "" {
				model = ctx.preferredModel(runCtx)
			}
			resp, err := analyzer.Analyze(services.WithCaseID(runCtx, c.ID), analysis.Request{
				Text:              c.Facts,
				StageIndex:        analysis.PetitionStageIndex,
				APIKey:            apiKey,
				Model:             model,
				PreviousSummaries: summaries,
				PartyRole:         c.PartyRole,
				FinalPetition:     true,
			})
			if err != nil {
				return fmt.Errorf("draft petition: %w", err)
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			if err := st.SetPetition(runCtx, c.ID, resp.Analysis); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.FromResponse(resp))
			}
			printMarkdown(cmd.OutOrStdout(), "# "+analysis.PetitionStageName+"\n\n"+resp.Analysis+"\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Gemini model (default from settings)")
	cmd.Flags().BoolVar(&remote, "remote", false, "Send the request to the running daemon")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
