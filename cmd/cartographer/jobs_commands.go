package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cartographer/internal/api"
	"cartographer/internal/jobaccess"
	"cartographer/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect extraction job history",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx), newJobsShowCommand(ctx), newJobsRemoveCommand(ctx), newJobsPruneCommand(ctx))
	return jobsCmd
}

func (c *commandContext) openJobs(cmd *cobra.Command) (jobaccess.Session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return jobaccess.Session{}, err
	}
	client, err := c.client()
	if err != nil {
		return jobaccess.Session{}, err
	}
	return jobaccess.OpenWithFallback(cmd.Context(), client, func() (*jobs.Store, error) {
		return jobs.Open(cfg.JobsDBPath())
	})
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		states []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openJobs(cmd)
			if err != nil {
				return err
			}
			defer session.Close()
			list, err := session.Access.List(cmd.Context(), limit, states)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.JobListResponse{Jobs: list})
			}
			stdout := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(stdout, "No jobs recorded")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, job := range list {
				rows = append(rows, []string{
					shortID(job.ID),
					job.ClientName,
					job.State,
					strconv.Itoa(len(job.Categories)),
					formatTokens(job.InputTokens),
					formatTokens(job.OutputTokens),
					formatCost(job.EstimatedCost),
					job.CreatedAt,
				})
			}
			fmt.Fprint(stdout, renderTable(
				[]string{"ID", "Client", "State", "Categories", "Input", "Output", "Cost", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				nil,
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum jobs to show (0 for all)")
	cmd.Flags().StringArrayVar(&states, "state", nil, "Only jobs in this state (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job and its per-category results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openJobs(cmd)
			if err != nil {
				return err
			}
			defer session.Close()
			job, err := session.Access.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.JobResponse{Job: *job})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderJob(job))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func renderJob(job *api.Job) string {
	out := fmt.Sprintf("Job:      %s\nClient:   %s\nState:    %s\nMode:     %s\nModel:    %s\nCreated:  %s\n",
		job.ID, job.ClientName, job.State, job.Mode, job.Model, job.CreatedAt)
	if job.FinishedAt != "" {
		out += fmt.Sprintf("Finished: %s\n", job.FinishedAt)
	}
	if job.Reason != "" {
		out += fmt.Sprintf("Reason:   %s\n", job.Reason)
	}
	if len(job.Results) == 0 {
		return out
	}
	rows := make([][]string, 0, len(job.Results))
	for _, r := range job.Results {
		result := "ok"
		if r.Failed {
			result = "failed: " + r.Reason
		}
		rows = append(rows, []string{
			categoryTitle(r.Category),
			result,
			formatTokens(r.InputTokens),
			formatTokens(r.OutputTokens),
			(time.Duration(r.ElapsedMillis) * time.Millisecond).String(),
		})
	}
	return out + renderTable(
		[]string{"Category", "Result", "Input", "Output", "Elapsed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
		[]string{"Total", formatCost(job.EstimatedCost), formatTokens(job.InputTokens), formatTokens(job.OutputTokens), ""},
	)
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Delete jobs from history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobs.Open(cfg.JobsDBPath())
			if err != nil {
				return err
			}
			defer store.Close()
			stdout := cmd.OutOrStdout()
			for _, id := range args {
				removed, err := store.Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(stdout, "Job %s not found\n", id)
					continue
				}
				fmt.Fprintf(stdout, "Removed job %s\n", id)
			}
			return nil
		},
	}
}

func newJobsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished jobs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// SQLite allows this alongside a running daemon.
			store, err := jobs.Open(cfg.JobsDBPath())
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.PruneBefore(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d jobs\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff, e.g. 720h")
	return cmd
}
