package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// NewRootCommand 构建 hannactl 的根命令。
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:     "hannactl",
		Short:   "HannaChatBot command-line client",
		Version: version,
		Long: `A command-line client for the HannaChatBot backend. Conversations are
persisted locally and survive restarts; code review, improvement and test
generation are available through the review command.`,
		Example: `  # Start an interactive chat
  $ hannactl chat

  # Ask a single question at the advanced level
  $ hannactl send --level Advanced "What is a goroutine leak?"

  # Review a file and show a diff against the improved version
  $ hannactl review --kind code-improve --file main.go --diff`,
		SilenceUsage: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", defaultConfigPath(), "config file")
	pf.StringVar(&flags.endpoint, "endpoint", "", "backend chat endpoint (overrides config)")
	pf.StringVar(&flags.level, "level", "", "experience level: Beginner, Intermediate or Advanced")
	pf.StringVar(&flags.driver, "store", "", "persistence driver: sqlite, file, redis, mysql or memory")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newChatCommand(flags),
		newSendCommand(flags),
		newRegenerateCommand(flags),
		newQuizCommand(flags),
		newHistoryCommand(flags),
		newClearCommand(flags),
		newExportCommand(flags),
		newReviewCommand(flags),
	)
	return root
}

// Execute 运行 hannactl。
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
