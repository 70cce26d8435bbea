package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abhisek/prepwise/internal/session"
	"github.com/abhisek/prepwise/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Reports over stored sessions",
}

var reportPromptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Compare answer outcomes across evaluation prompt versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		svc := session.NewService(session.ReposFrom(s), zerolog.Nop(), nil)
		stats, err := svc.PromptVersions(cmd.Context())
		if err != nil {
			return fmt.Errorf("query prompt versions: %w", err)
		}
		writeVersionStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func writeVersionStats(w io.Writer, stats []store.VersionStat) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No evaluated answers yet.")
		return
	}

	rule := strings.Repeat("─", 62)
	fmt.Fprintf(w, "%-12s  %8s  %9s  %8s  %8s  %6s\n", "Version", "Answers", "Completed", "Mean", "Failed", "Rate")
	fmt.Fprintln(w, rule)
	for _, st := range stats {
		version := st.Version
		if version == "" {
			version = "(none)"
		}
		rate := 0.0
		if st.Answers > 0 {
			rate = 100 * float64(st.Failed) / float64(st.Answers)
		}
		fmt.Fprintf(w, "%-12s  %8d  %9d  %8.1f  %8d  %5.1f%%\n",
			version, st.Answers, st.Completed, st.AvgScore, st.Failed, rate)
	}
}

func init() {
	reportCmd.AddCommand(reportPromptsCmd)
}
