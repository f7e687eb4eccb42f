package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cartographer/internal/api"
	"cartographer/internal/consumer"
	"cartographer/internal/progress"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		clientName string
		categories []string
		mode       string
		outputDir  string
		noPairs    bool
		retry      string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run an extraction job and follow its progress",
		Long: `Submit an extraction job to the daemon and stream its progress.

Each --category runs one model call. Interrupting the command (Ctrl-C)
disconnects the stream, which cancels the job on the daemon.`,
		Example: `  cartographer extract --client Acme --category faq=ID1,ID2 --category legal=ID3 -o out/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(clientName) == "" {
				return fmt.Errorf("--client is required")
			}
			parsed, err := parseCategoryFlags(categories)
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}

			paired := map[string]api.PairedFile{}
			if !noPairs {
				resp, err := client.Pairs(cmd.Context(), allFileIDs(parsed))
				if err != nil {
					return wrapDaemonError(err)
				}
				for _, f := range resp.Files {
					paired[f.ID] = f
				}
			}

			req := api.ExtractionRequest{
				ClientName:    clientName,
				Mode:          mode,
				Categories:    documentSets(parsed, paired),
				RetryCategory: retry,
			}
			var progressOut io.Writer = cmd.OutOrStdout()
			if asJSON {
				progressOut = io.Discard
			}
			printer := &progressPrinter{out: progressOut}
			view, err := client.Stream(cmd.Context(), req, consumer.NewMachine(), printer.update)
			if err != nil {
				return wrapDaemonError(err)
			}

			if outputDir != "" && len(view.Outcomes) > 0 {
				written, err := writeOutcomes(outputDir, view.Outcomes)
				if err != nil {
					return err
				}
				if !asJSON {
					for _, path := range written {
						fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
					}
				}
			}
			if asJSON {
				return writeJSON(cmd, extractionSummary(view))
			}
			fmt.Fprint(cmd.OutOrStdout(), renderOutcomes(view))

			switch view.State {
			case consumer.StateCancelled:
				return fmt.Errorf("job %s cancelled", view.JobID)
			case consumer.StateError:
				return fmt.Errorf("job %s failed: %s", view.JobID, view.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&clientName, "client", "", "Client name the rules are extracted for")
	cmd.Flags().StringArrayVar(&categories, "category", nil, "Category and its file ids as name=id,id (repeatable)")
	cmd.Flags().StringVar(&mode, "mode", "", "batch (default) or individual")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Write each category's artifacts under this directory")
	cmd.Flags().StringVar(&retry, "retry", "", "Run only this category (resubmit a failed one)")
	cmd.Flags().BoolVar(&noPairs, "no-pairs", false, "Skip language detection and translation pairing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the final result as JSON")
	return cmd
}

// progressPrinter prints one line per change in the folded view.
type progressPrinter struct {
	out      io.Writer
	started  bool
	current  string
	finished int
}

func (p *progressPrinter) update(v consumer.View) {
	if v.JobID != "" && !p.started && len(v.Categories) > 0 {
		p.started = true
		fmt.Fprintf(p.out, "Job %s: %d categories\n", v.JobID, len(v.Categories))
	}
	if v.Current != "" && v.Current != p.current {
		p.current = v.Current
		fmt.Fprintf(p.out, "[%d/%d] Extracting %s...\n", v.Index+1, v.Total, categoryTitle(v.Current))
	}
	for p.finished < len(v.Outcomes) {
		o := v.Outcomes[p.finished]
		p.finished++
		fmt.Fprintf(p.out, "  done: %s (%s in / %s out)\n", categoryTitle(o.Category), formatTokens(o.InputTokens), formatTokens(o.OutputTokens))
	}
	if v.State == consumer.StateCancelled {
		fmt.Fprintln(p.out, "Cancelled")
	}
}

func renderOutcomes(v consumer.View) string {
	var b strings.Builder
	if len(v.Outcomes) > 0 || len(v.Failed) > 0 {
		rows := make([][]string, 0, len(v.Outcomes)+len(v.Failed))
		for _, o := range v.Outcomes {
			rows = append(rows, []string{categoryTitle(o.Category), "ok", formatTokens(o.InputTokens), formatTokens(o.OutputTokens)})
		}
		for _, name := range v.Categories {
			if reason, ok := v.Failed[name]; ok {
				rows = append(rows, []string{categoryTitle(name), "failed: " + reason, "-", "-"})
			}
		}
		b.WriteString(renderTable(
			[]string{"Category", "Result", "Input", "Output"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			[]string{"Total", formatCost(v.Totals.EstimatedCost), formatTokens(v.Totals.InputTokens), formatTokens(v.Totals.OutputTokens)},
		))
	}
	fmt.Fprintf(&b, "Job %s: %s\n", v.JobID, v.State)
	return b.String()
}

type extractionResult struct {
	JobID    string             `json:"job_id"`
	State    consumer.State     `json:"state"`
	Outcomes []progress.Outcome `json:"outcomes"`
	Failed   map[string]string  `json:"failed,omitempty"`
	Totals   progress.Totals    `json:"totals"`
	Error    string             `json:"error,omitempty"`
}

func extractionSummary(v consumer.View) extractionResult {
	out := extractionResult{
		JobID:    v.JobID,
		State:    v.State,
		Outcomes: v.Outcomes,
		Totals:   v.Totals,
		Error:    v.Error,
	}
	if out.Outcomes == nil {
		out.Outcomes = []progress.Outcome{}
	}
	if len(v.Failed) > 0 {
		out.Failed = v.Failed
	}
	return out
}

// writeOutcomes stores each outcome as <dir>/<category>/rules.js and
// guidelines.md, returning the written paths.
func writeOutcomes(dir string, outcomes []progress.Outcome) ([]string, error) {
	var written []string
	for _, o := range outcomes {
		target := filepath.Join(dir, safeName(o.Category))
		if err := os.MkdirAll(target, 0o755); err != nil {
			return written, fmt.Errorf("create %s: %w", target, err)
		}
		files := map[string]string{
			"rules.js":      o.PrimaryArtifact,
			"guidelines.md": o.SecondaryArtifact,
		}
		for _, name := range []string{"rules.js", "guidelines.md"} {
			path := filepath.Join(target, name)
			if err := os.WriteFile(path, []byte(files[name]), 0o644); err != nil {
				return written, fmt.Errorf("write %s: %w", path, err)
			}
			written = append(written, path)
		}
	}
	return written, nil
}

func safeName(category string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == 0:
			return '_'
		default:
			return r
		}
	}, strings.TrimSpace(category))
	if name == "" || name == "." || name == ".." {
		return "category"
	}
	return name
}
