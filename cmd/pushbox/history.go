package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushbox/pushbox/internal/journal"
	"github.com/pushbox/pushbox/internal/project"
	"github.com/pushbox/pushbox/internal/utils"
)

func init() {
	rootCmd.AddCommand(newHistoryCmd())
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pushes recorded in the project journal",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			sourceDir, err := utils.ResolvePath(viper.GetString("source_dir"))
			if err != nil {
				return err
			}

			proj, err := project.New(sourceDir)
			if err != nil {
				return err
			}

			if !utils.FileExists(proj.JournalPath) {
				fmt.Fprintln(cmd.OutOrStdout(), "No pushes recorded yet")
				return nil
			}

			jrnl := journal.NewJournal(proj.JournalPath)
			if err := jrnl.Open(); err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer jrnl.Close()

			runs, err := jrnl.Recent(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pushes recorded yet")
				return nil
			}

			renderRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("source", "s", ".", "Local source directory")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")

	return cmd
}

func renderRuns(out io.Writer, runs []*journal.Run) {
	for _, run := range runs {
		var status string
		switch run.Status {
		case journal.StatusCompleted:
			status = green.Render("completed")
		case journal.StatusDryRun:
			status = cyan.Render("dry-run  ")
		default:
			status = red.Render(fmt.Sprintf("failed %-2d", run.ExitCode))
		}

		fmt.Fprintf(out, "%s  %s  %s  %d files, %s in %s\n",
			gray.Render(run.StartedAt.Local().Format(time.DateTime)),
			status,
			run.Target,
			run.FilesTransferred,
			humanize.Bytes(uint64(run.BytesSent)),
			run.Duration.Round(10*time.Millisecond),
		)
		fmt.Fprintf(out, "%s  %s\n",
			gray.Render(humanize.Time(run.StartedAt)),
			lightGray.Render(run.Command),
		)
	}
}
