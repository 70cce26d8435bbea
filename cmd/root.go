package cmd

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abhisek/prepwise/internal/config"
	"github.com/abhisek/prepwise/internal/logger"
	"github.com/abhisek/prepwise/internal/store"
)

var (
	cfg       config.Config
	log       zerolog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "prepwise",
	Short: "Interview practice with AI-generated questions and feedback",
	Long: "prepwise generates interview questions on your topics, scores your answers " +
		"and suggests what difficulty to practice next.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		var err error
		cfg, err = config.Load(path, cmd.Flags())
		if err != nil {
			return err
		}
		log, logCloser = logger.Setup(logger.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			File:   cfg.Log.File,
		})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config", "", "Path to config file (default ./prepwise.yaml)")
	f.String("db", "", "Database path or DSN (overrides PREPWISE_STORE_DSN)")
	f.String("db-driver", "", "Database driver: sqlite or postgres")
	f.String("provider", "", "LLM provider: anthropic, openai, gemini, openrouter or mock")
	f.String("model", "", "Model for the selected provider")
	f.String("log-level", "", "Log level: debug, info, warn or error")
	f.String("log-format", "", "Log format: pretty or json")
	f.String("log-file", "", "Also write JSON logs to this file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(practiceCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore opens the configured database without building the LLM
// backend, for commands that only read.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	return store.Open(cmd.Context(), cfg.Store)
}
