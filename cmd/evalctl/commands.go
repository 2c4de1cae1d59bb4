package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/nl2sql-api/internal/config"
	"github.com/noah-isme/nl2sql-api/internal/evaluation"
	"github.com/noah-isme/nl2sql-api/internal/generation"
	"github.com/noah-isme/nl2sql-api/internal/grammar"
	"github.com/noah-isme/nl2sql-api/pkg/ai"
)

type evalOptions struct {
	CorpusPath string
	Format     string
	Verbose    bool
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "evalctl",
		Short:         "Evaluate grammar-constrained NL to SQL generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEvalCommand(), newGrammarCommand())
	return root
}

func newEvalCommand() *cobra.Command {
	opts := &evalOptions{}
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run the evaluation corpus against the configured generation service",
		Example: `  # Run the built-in corpus
  evalctl eval

  # Run a custom corpus and print JSON
  evalctl eval --corpus cases.yaml --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEval(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.CorpusPath, "corpus", "c", "", "YAML corpus file (defaults to the built-in corpus)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log every case to stderr")

	return cmd
}

func newGrammarCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "grammar",
		Short: "Print the grammar attached to generation requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), grammar.ClickHouse.Definition())
			return err
		},
	}
}

func runEval(cmd *cobra.Command, opts *evalOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := zerolog.WarnLevel
	if opts.Verbose {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(level).With().Timestamp().Logger()

	corpusPath := opts.CorpusPath
	if corpusPath == "" {
		corpusPath = cfg.CorpusPath
	}
	corpus := evaluation.DefaultCorpus()
	if corpusPath != "" {
		if corpus, err = evaluation.LoadCorpus(corpusPath); err != nil {
			return err
		}
	}

	var generator ai.Generator
	if cfg.OpenAIAPIKey != "" {
		generator, err = ai.NewGenerator(cfg.OpenAIAPI, ai.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.OpenAIModel,
			BaseURL:   cfg.OpenAIBaseURL,
			MaxTokens: cfg.OpenAIMaxTokens,
			Timeout:   cfg.GenerationTimeout,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
	}

	policy := generation.DefaultClarificationPolicy()
	if len(cfg.ClarificationWords) > 0 {
		policy = generation.NewClarificationPolicy(cfg.ClarificationWords...)
	}
	orchestrator := generation.NewOrchestrator(generator, grammar.ClickHouse, policy, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := evaluation.NewHarness(orchestrator, corpus, logger).Run(ctx, func(index, total int, description, status string, _ evaluation.Result) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s %s\n", index, total, status, description)
	})

	if err := renderReport(cmd.OutOrStdout(), report, opts.Format); err != nil {
		return err
	}
	if report.Error != "" {
		return errors.New(report.Error)
	}
	return nil
}

func renderReport(w io.Writer, report evaluation.Report, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "", "table":
		renderTable(w, report)
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderTable(w io.Writer, report evaluation.Report) {
	cases := table.NewWriter()
	cases.SetOutputMirror(w)
	cases.SetStyle(table.StyleLight)
	cases.AppendHeader(table.Row{"ID", "Category", "Result", "Latency (ms)", "Generated"})
	for _, result := range report.Results {
		status := evaluation.StatusFail
		if result.IsCorrect {
			status = evaluation.StatusPass
		}
		generated := result.GeneratedQuery
		switch {
		case result.Error != "":
			generated = "error: " + result.Error
		case generated == "" && result.Clarification != "":
			generated = "clarification: " + result.Clarification
		}
		cases.AppendRow(table.Row{result.ID, result.Category, status, fmt.Sprintf("%.0f", result.LatencyMs), generated})
	}
	cases.Render()

	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetStyle(table.StyleLight)
	summary.AppendHeader(table.Row{"Category", "Passed", "Total", "Accuracy"})
	for _, category := range evaluation.Categories {
		breakdown := report.Metrics.CategoryBreakdown[category]
		summary.AppendRow(table.Row{category, breakdown.Passed, breakdown.Total, percent(breakdown.Accuracy)})
	}
	summary.AppendFooter(table.Row{"overall", report.Metrics.PassedTests, report.Metrics.TotalTests, percent(report.Metrics.Accuracy)})
	summary.Render()

	fmt.Fprintf(w, "average latency: %.1f ms\n", report.Metrics.AverageExecutionTime)
}

func percent(value float64) string {
	return fmt.Sprintf("%.1f%%", value*100)
}
