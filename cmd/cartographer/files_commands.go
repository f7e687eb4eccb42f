package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cartographer/internal/api"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Parse documents and cache their text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Upload(cmd.Context(), args...)
			if err != nil {
				return wrapDaemonError(err)
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}

			stdout := cmd.OutOrStdout()
			rows := make([][]string, 0, len(resp.Files))
			failed := 0
			for _, result := range resp.Files {
				if result.File == nil {
					failed++
					rows = append(rows, []string{result.Name, "-", "-", "-", "failed: " + result.Error})
					continue
				}
				f := result.File
				rows = append(rows, []string{f.SourceName, f.ID, languageLabel(f), formatTokens(f.TokenCount), "cached"})
			}
			fmt.Fprint(stdout, renderTable(
				[]string{"File", "ID", "Language", "Tokens", "Result"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				nil,
			))
			if failed > 0 {
				fmt.Fprintf(stdout, "%d of %d files failed\n", failed, len(resp.Files))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw response")
	return cmd
}

func newFilesCommand(ctx *commandContext) *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect and remove cached documents",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached documents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			files, err := client.Files(cmd.Context())
			if err != nil {
				return wrapDaemonError(err)
			}
			if asJSON {
				return writeJSON(cmd, api.FileListResponse{Files: files})
			}
			stdout := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(stdout, "No cached documents")
				return nil
			}
			rows := make([][]string, 0, len(files))
			for _, f := range files {
				rows = append(rows, []string{f.ID, f.SourceName, languageLabel(&f), formatTokens(f.TokenCount), f.ExpiresAt})
			}
			fmt.Fprint(stdout, renderTable(
				[]string{"ID", "File", "Language", "Tokens", "Expires"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				nil,
			))
			return nil
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Remove cached documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			var failures []string
			for _, id := range args {
				if err := client.DeleteFile(cmd.Context(), id); err != nil {
					failures = append(failures, fmt.Sprintf("%s: %v", id, wrapDaemonError(err)))
					continue
				}
				fmt.Fprintf(stdout, "Deleted %s\n", id)
			}
			if len(failures) > 0 {
				return fmt.Errorf("delete failed for %s", strings.Join(failures, "; "))
			}
			return nil
		},
	}

	filesCmd.AddCommand(listCmd, deleteCmd)
	return filesCmd
}

func languageLabel(f *api.FileInfo) string {
	switch {
	case f.LanguageName != "":
		return f.LanguageName
	case f.Language != "":
		return f.Language
	default:
		return "-"
	}
}
