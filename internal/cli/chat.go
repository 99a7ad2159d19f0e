package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hanna-chat-go/internal/repository"
	"hanna-chat-go/internal/transport"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

// lineReader 读取 REPL 的一行输入，结束时返回 io.EOF。
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linerReader 在终端中提供行编辑与历史记录，历史保存在 ~/.hanna/chat_history。
type linerReader struct {
	state       *liner.State
	historyFile string
}

func historyFile() string {
	return filepath.Join(repository.DefaultDataDir(), "chat_history")
}

func newLinerReader() *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	r := &linerReader{state: state, historyFile: historyFile()}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = state.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if err != nil {
		return "", promptError(err)
	}
	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

// Close 保存历史并恢复终端模式。
func (r *linerReader) Close() error {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = r.state.WriteHistory(f)
			f.Close()
		}
	}
	return r.state.Close()
}

// promptError 把 Ctrl+C 视为正常退出。
func promptError(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) {
		return io.EOF
	}
	return err
}

// scannerReader 用于 stdin 不是终端的情况（管道、测试）。
type scannerReader struct {
	sc *bufio.Scanner
}

func newScannerReader(in io.Reader) *scannerReader {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	return &scannerReader{sc: sc}
}

func (r *scannerReader) Prompt(string) (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *scannerReader) Close() error { return nil }

func newChatCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "start an interactive chat session",
		Long: `Start an interactive chat session. Replies are printed as they stream in.

Commands:
  /regen       regenerate the last reply
  /quiz        quiz me on the recent conversation
  /clear       reset the conversation
  /export [f]  export the conversation as Markdown
  /level <L>   switch level (Beginner, Intermediate, Advanced)
  /quit        leave the session`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				return a.repl(cmd, cmd.InOrStdin())
			})
		},
	}
}

func (a *app) repl(cmd *cobra.Command, in io.Reader) error {
	ctx := cmd.Context()
	interactive := stdinIsTerminal()
	r := newRenderer(!interactive)

	fmt.Fprintln(a.out, banner(a.client.Level()))
	for _, m := range a.store.All() {
		r.printMessage(a.out, m)
	}

	var reader lineReader
	if interactive {
		reader = newLinerReader()
	} else {
		reader = newScannerReader(in)
	}
	defer reader.Close()

	for {
		text, err := reader.Prompt("> ")
		if errors.Is(err, io.EOF) {
			if interactive {
				fmt.Fprintln(a.out)
			}
			return nil
		}
		if err != nil {
			return err
		}
		line := strings.TrimSpace(text)
		if line == "" {
			continue
		}

		var run func() (transport.Exchange, error)
		switch cmdName, arg, _ := strings.Cut(line, " "); cmdName {
		case "/quit", "/exit":
			return nil
		case "/clear":
			a.store.Clear()
			fmt.Fprintln(a.out, mutedStyle.Render("conversation cleared"))
			continue
		case "/export":
			if err := a.export(strings.TrimSpace(arg)); err != nil {
				fmt.Fprintln(a.out, errorStyle.Render(err.Error()))
			}
			continue
		case "/level":
			if arg = strings.TrimSpace(arg); arg == "" {
				fmt.Fprintln(a.out, mutedStyle.Render("level: "+a.client.Level()))
			} else {
				a.client.SetLevel(arg)
				fmt.Fprintln(a.out, mutedStyle.Render("level set to "+arg))
			}
			continue
		case "/regen":
			run = func() (transport.Exchange, error) { return a.client.Regenerate(ctx, "") }
		case "/quiz":
			run = func() (transport.Exchange, error) { return a.client.Quiz(ctx, "") }
		default:
			run = func() (transport.Exchange, error) { return a.client.Send(ctx, line, "") }
		}

		p := &streamPrinter{out: a.out}
		fmt.Fprintln(a.out, roleLabel("assistant"))
		var ex transport.Exchange
		err = a.watch(p.observe, func() error {
			var err error
			ex, err = run()
			return err
		})
		fmt.Fprint(a.out, "\n\n")
		switch {
		case isBusy(err):
			fmt.Fprintln(a.out, errorStyle.Render("still waiting for the previous reply"))
		case err != nil:
			return err
		case ex.MessageID == "":
			fmt.Fprintln(a.out, mutedStyle.Render("nothing to regenerate"))
		}
	}
}
