package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cartographer/internal/daemonctl"
	"cartographer/internal/jobaccess"
	"cartographer/internal/jobs"
	"cartographer/internal/preflight"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGracePeriod  = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the cartographer daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, daemonLaunchOptions(ctx, startLogLevel), startWaitTimeout)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d) at %s\n", result.PID, result.Address)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d) at %s\n", result.PID, result.Address)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override logging.level for the daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the cartographer daemon (running jobs are cancelled)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := daemonctl.StopAndTerminate(cmd.Context(), ctx.configValue(), client, stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in %s; killed pid %d\n", stopGracePeriod, result.PID)
				return nil
			}
			fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", result.PID)
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the cartographer daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stop, err := daemonctl.StopAndTerminate(cmd.Context(), ctx.configValue(), client, stopGracePeriod)
			switch {
			case errors.Is(err, daemonctl.ErrDaemonNotRunning):
			case err != nil:
				return err
			default:
				fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", stop.PID)
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, daemonLaunchOptions(ctx, restartLogLevel), startWaitTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d) at %s\n", result.PID, result.Address)
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Override logging.level for the daemon")

	var probe bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, readiness and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var report statusReport
			daemon := report.section("Daemon", "")
			health, healthErr := client.Health(cmd.Context())
			switch {
			case errors.Is(healthErr, daemonctl.ErrDaemonNotRunning):
				daemon.add("Daemon", levelWarn, "not running")
			case healthErr != nil:
				daemon.add("Daemon", levelFail, healthErr.Error())
			default:
				level := levelPass
				if health.Status != "ok" {
					level = levelWarn
				}
				daemon.add("Daemon", level, fmt.Sprintf("%s (pid %d) at %s", health.Status, health.PID, client.BaseURL()))
				daemon.add("Model", levelNone, health.Model)
				daemon.add("Debug mode", levelNone, yesNo(health.Debug))
				daemon.add("Cached artifacts", levelNone, fmt.Sprintf("%d (ttl %s)", health.Artifacts, health.CacheTTL))
				daemon.add("Active jobs", levelNone, strconv.Itoa(health.ActiveJobs))
			}

			readiness := report.section("Readiness", "")
			var opts []preflight.Option
			if probe {
				opts = append(opts, preflight.WithModelProbe())
			}
			for _, result := range preflight.RunAll(cmd.Context(), cfg, opts...) {
				readiness.add(result.Name, levelFor(result.Passed), result.Detail)
			}

			session, err := jobaccess.OpenWithFallback(cmd.Context(), client, func() (*jobs.Store, error) {
				return jobs.Open(cfg.JobsDBPath())
			})
			if err != nil {
				return err
			}
			defer session.Close()
			stats, err := session.Access.Stats(cmd.Context())
			if err != nil {
				return err
			}
			jobSection := report.section("Jobs", "No jobs recorded")
			for _, row := range buildJobStatusRows(stats) {
				jobSection.add(row[0], levelNone, row[1])
			}

			fmt.Fprint(stdout, report.render(colorEnabled(stdout)))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&probe, "probe", false, "Also send a health prompt to the extraction model")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func buildJobStatusRows(stats map[string]int) [][]string {
	states := make([]string, 0, len(stats))
	for state, count := range stats {
		if count > 0 {
			states = append(states, state)
		}
	}
	slices.Sort(states)
	rows := make([][]string, 0, len(states))
	for _, state := range states {
		rows = append(rows, []string{state, strconv.Itoa(stats[state])})
	}
	return rows
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   logLevel,
	}
	if ctx.addressFlag != nil {
		opts.Address = *ctx.addressFlag
	}
	return opts
}
