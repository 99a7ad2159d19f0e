package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"hanna-chat-go/internal/transcript"
	"hanna-chat-go/internal/transport"

	"github.com/spf13/cobra"
)

// withApp 创建 app，执行 fn 后释放资源。
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(a *app) error) error {
	a, err := newApp(cmd.Context(), flags, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newSendCommand(flags *globalFlags) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				ex, err := a.client.Send(cmd.Context(), strings.Join(args, " "), "")
				return a.printExchange(ex, err, raw)
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the reply without Markdown rendering")
	return cmd
}

func newRegenerateCommand(flags *globalFlags) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "regenerate the last assistant reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				ex, err := a.client.Regenerate(cmd.Context(), "")
				return a.printExchange(ex, err, raw)
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the reply without Markdown rendering")
	return cmd
}

func newQuizCommand(flags *globalFlags) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "generate a short quiz about the recent conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				ex, err := a.client.Quiz(cmd.Context(), "")
				return a.printExchange(ex, err, raw)
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the reply without Markdown rendering")
	return cmd
}

func (a *app) printExchange(ex transport.Exchange, err error, raw bool) error {
	if err != nil {
		return err
	}
	if ex.MessageID == "" {
		fmt.Fprintln(a.out, mutedStyle.Render("nothing to do"))
		return nil
	}
	if ex.Failed {
		fmt.Fprintln(a.out, errorStyle.Render(ex.Content))
		return nil
	}
	fmt.Fprintln(a.out, newRenderer(raw).markdown(ex.Content))
	return nil
}

func newHistoryCommand(flags *globalFlags) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "print the stored conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				r := newRenderer(raw)
				for _, m := range a.store.All() {
					r.printMessage(a.out, m)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print messages without Markdown rendering")
	return cmd
}

func newClearCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "reset the conversation to the greeting message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				a.store.Clear()
				if err := a.store.Flush(cmd.Context()); err != nil {
					return fmt.Errorf("conversation cleared in memory but not saved: %w", err)
				}
				fmt.Fprintln(a.out, mutedStyle.Render("conversation cleared"))
				return nil
			})
		},
	}
}

func newExportCommand(flags *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "export the conversation as Markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				return a.export(output)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file (\"-\" for stdout; default hannabot-<time>.md)")
	return cmd
}

func (a *app) export(output string) error {
	md := transcript.Markdown(a.store.All())
	if output == "-" {
		_, err := fmt.Fprint(a.out, md)
		return err
	}
	if output == "" {
		output = transcript.FileName(time.Now())
	}
	if err := os.WriteFile(output, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	fmt.Fprintln(a.out, mutedStyle.Render("transcript written to "+output))
	return nil
}

// isBusy 把 ErrExchangeInFlight 转换为更友好的提示。
func isBusy(err error) bool {
	return errors.Is(err, transport.ErrExchangeInFlight)
}
