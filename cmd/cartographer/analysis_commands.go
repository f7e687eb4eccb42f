package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"cartographer/internal/api"
	"cartographer/internal/estimate"
)

func newPairsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "pairs <id>...",
		Short: "Detect languages and pair translations among cached documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Pairs(cmd.Context(), args)
			if err != nil {
				return wrapDaemonError(err)
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			stdout := cmd.OutOrStdout()
			rows := make([][]string, 0, len(resp.Files))
			for _, f := range resp.Files {
				role := "target"
				if f.IsSource {
					role = "source"
				}
				pair := f.PairID
				if pair == "" {
					pair = "-"
				}
				rows = append(rows, []string{f.ID, f.SourceName, f.LanguageName, role, pair})
			}
			fmt.Fprint(stdout, renderTable([]string{"ID", "File", "Language", "Role", "Pair"}, rows, nil, nil))
			fmt.Fprintf(stdout, "Situation: %s (%d pairs)\n", resp.Situation, resp.Pairs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newEstimateCommand(ctx *commandContext) *cobra.Command {
	var (
		categories []string
		mode       string
		model      string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate input tokens and cost for an extraction",
		Example: `  cartographer estimate --category faq=ID1,ID2 --category legal=ID3
  cartographer estimate --mode individual --category faq=ID1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseCategoryFlags(categories)
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			quote, err := client.Estimate(cmd.Context(), api.EstimateRequest{Mode: mode, Model: model, Categories: parsed})
			if err != nil {
				return wrapDaemonError(err)
			}
			if asJSON {
				return writeJSON(cmd, quote)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderQuote(quote))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&categories, "category", nil, "Category and its file ids as name=id,id (repeatable)")
	cmd.Flags().StringVar(&mode, "mode", "", "batch (default) or individual")
	cmd.Flags().StringVar(&model, "model", "", "Price against this model instead of llm.model")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func renderQuote(quote *api.EstimateResponse) string {
	names := make([]string, 0, len(quote.Sections))
	for name := range quote.Sections {
		names = append(names, name)
	}
	// Instructions first, then categories by name.
	slices.SortFunc(names, func(a, b string) int {
		switch {
		case a == estimate.SectionInstructions:
			return -1
		case b == estimate.SectionInstructions:
			return 1
		default:
			return strings.Compare(a, b)
		}
	})
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		label := name
		if category, ok := strings.CutPrefix(name, estimate.CategorySection("")); ok {
			label = categoryTitle(category)
		} else if name == estimate.SectionInstructions {
			label = "Instructions"
		}
		rows = append(rows, []string{label, formatTokens(quote.Sections[name])})
	}
	var b strings.Builder
	b.WriteString(renderTable(
		[]string{"Section", "Input tokens"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
		[]string{"Total", formatTokens(quote.Total)},
	))
	fmt.Fprintf(&b, "Mode: %s  Model: %s\n", quote.Mode, quote.Model)
	fmt.Fprintf(&b, "Estimated output tokens: %s  Estimated cost: %s\n", formatTokens(quote.EstimatedOutputTokens), formatCost(quote.EstimatedCost))
	if quote.ExceedsLimit {
		fmt.Fprintf(&b, "Warning: a request exceeds the %s token input limit\n", formatTokens(quote.MaxInputTokens))
	}
	return b.String()
}
