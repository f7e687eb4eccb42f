package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cartographer/internal/artifactcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Artifact cache maintenance",
	}

	var asJSON bool
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired and malformed artifacts now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cache, err := artifactcache.New(cfg.Cache.Dir, cfg.CacheTTL())
			if err != nil {
				return err
			}
			report, err := cache.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired and %d malformed artifacts; kept %d (%d skipped, %d errors) in %s\n",
				report.RemovedExpired, report.RemovedMalformed, report.Kept, report.Skipped, report.Errors, report.Elapsed)
			return nil
		},
	}
	sweepCmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	cacheCmd.AddCommand(sweepCmd)
	return cacheCmd
}
