// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/orchestrator"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research [question]",
	Short: "Research a question and print a cited Markdown report",
	Long: `Research plans three sub-questions, researches them in parallel, and
writes a report with numbered citations and an APA reference list.

Progress is printed to stderr; the report goes to stdout. A sub-question
whose search fails is reported as unanswered rather than failing the run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().Bool("json", false, "print the full report as JSON")
	researchCmd.Flags().String("csl", "", "also write the bibliography as CSL-YAML to this file")
	researchCmd.Flags().Bool("quiet", false, "suppress progress output")

	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	cslPath, _ := cmd.Flags().GetString("csl")
	quiet, _ := cmd.Flags().GetBool("quiet")

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	var opts []orchestrator.Option
	if !quiet {
		opts = append(opts, orchestrator.WithProgress(func(ev orchestrator.ProgressEvent) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.State, ev.Message)
		}))
	}
	o := newPipeline(c, cfg, nil, opts...)

	res := o.Run(ctx, types.Query{Text: strings.Join(args, " ")})
	if err := res.Err(); err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Report); err != nil {
			return err
		}
	} else {
		fmt.Println(res.Report.Markdown)
	}

	if cslPath != "" {
		f, err := os.Create(cslPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", cslPath, err)
		}
		defer f.Close()
		if err := search.FormatCSL(res.Report.Bibliography, f); err != nil {
			return fmt.Errorf("writing CSL: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "Done in %s: %d source(s), %d unanswered sub-question(s)\n",
		res.Duration.Round(time.Millisecond), len(res.Report.Bibliography), res.Report.DegradedCount())
	return nil
}
