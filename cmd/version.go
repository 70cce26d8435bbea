package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepwise/internal/prompt"
)

// version is set via -ldflags at build time.
var version = ""

func buildVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the binary and prompt versions",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "prepwise", buildVersion())
		fmt.Fprintf(w, "question prompt %s, evaluation prompt %s\n", prompt.QuestionVersion, prompt.EvaluationVersion)
	},
}
