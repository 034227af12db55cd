package main

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/skillsense/internal/observability"
	"github.com/jonathan/skillsense/internal/pipeline"
	"github.com/jonathan/skillsense/internal/server"
	"github.com/spf13/cobra"
)

func newExtractCmd(root *rootOptions) *cobra.Command {
	var (
		input  inputOptions
		format string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Detect the canonical skills in a document",
		Long:  "Normalize the text, match each phrase against the ontology and print the deduplicated skill set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalysis(cmd, root, &input, "", format)
		},
	}
	input.register(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var (
		input  inputOptions
		role   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compare a document's skills with a target role",
		Long: `Extract the skills in a document and report which of the role's required skills are
matched or missing, the weighted coverage, and recommendations for each gap.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalysis(cmd, root, &input, role, format)
		},
	}
	input.register(cmd)
	cmd.Flags().StringVarP(&role, "role", "r", "", "Target role ID (see 'skillsense roles')")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or summary")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

// runAnalysis runs extraction, or a full analysis when roleID is set, and prints the result.
func runAnalysis(cmd *cobra.Command, root *rootOptions, input *inputOptions, roleID, format string) error {
	if roleID == "" {
		if err := checkFormat(format, "text", "json"); err != nil {
			return err
		}
	} else if err := checkFormat(format, "text", "json", "summary"); err != nil {
		return err
	}

	cfg, err := root.resolve(cmd)
	if err != nil {
		return err
	}
	text, err := input.read(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	engine, err := pipeline.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close() //nolint:errcheck

	req := pipeline.Request{Text: text, RoleID: roleID}
	if cfg.Verbose {
		req.OnProgress = func(ev pipeline.ProgressEvent) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", ev.Step, ev.Message)
		}
	}

	var a *pipeline.Analysis
	if roleID == "" {
		a, err = engine.Extract(cmd.Context(), req)
	} else {
		a, err = engine.Analyze(cmd.Context(), req)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if a.Extraction.Degraded && format != "json" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: semantic matching unavailable, results use fast mode: %s\n", a.Extraction.DegradedReason)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(server.NewAnalysisResponse(a))
	case "summary":
		_, err := fmt.Fprintln(out, observability.Summary(a.Report, a.Extraction.Skills))
		return err
	default:
		p := observability.NewPrinter(out)
		p.PrintExtraction(a.Extraction)
		p.PrintGapReport(a.Report)
		return nil
	}
}
