package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hanna-chat-go/internal/diff"
	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/store"
	"hanna-chat-go/internal/transport"
	"hanna-chat-go/pkg/log"

	"github.com/spf13/cobra"
)

// ReviewStateKey 是代码助手状态在 blob 存储中的 key。
const ReviewStateKey = "code-assistant-state"

// reviewState 是最近一次代码助手请求及其结果。
type reviewState struct {
	Kind     model.CodeKind             `json:"kind"`
	Language string                     `json:"language"`
	Level    string                     `json:"level"`
	Code     string                     `json:"code"`
	Result   *model.CodeAssistantResult `json:"result,omitempty"`
}

type reviewOptions struct {
	kind     string
	file     string
	language string
	level    string
	showDiff bool
	lcs      bool
	raw      bool
	last     bool
}

func newReviewCommand(flags *globalFlags) *cobra.Command {
	opts := &reviewOptions{}
	cmd := &cobra.Command{
		Use:   "review",
		Short: "review, improve or write tests for a source file",
		Example: `  $ hannactl review --file main.go
  $ hannactl review --kind code-improve --file main.go --diff
  $ cat util.py | hannactl review --kind tests --file - --language python
  $ hannactl review --last --diff`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				return a.review(cmd.Context(), cmd.InOrStdin(), opts)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.kind, "kind", string(model.KindCodeReview), "code-review, code-improve or tests")
	f.StringVar(&opts.file, "file", "", "source file (\"-\" reads stdin)")
	f.StringVar(&opts.language, "language", "", "language tag (default: from the file extension)")
	f.StringVar(&opts.level, "experience", "", "experience level: beginner, intermediate or advanced")
	f.BoolVar(&opts.showDiff, "diff", false, "show a line diff between the source and the improved code")
	f.BoolVar(&opts.lcs, "lcs", false, "align the diff by longest common subsequence instead of line position")
	f.BoolVar(&opts.raw, "raw", false, "print without Markdown rendering")
	f.BoolVar(&opts.last, "last", false, "show the last saved result instead of sending a request")
	return cmd
}

func (a *app) review(ctx context.Context, stdin io.Reader, opts *reviewOptions) error {
	r := newRenderer(opts.raw)

	if opts.last {
		st, err := loadReviewState(ctx, a.blob)
		if err != nil {
			return err
		}
		if st.Result == nil {
			return errors.New("no saved review result")
		}
		a.printReview(r, st.Code, *st.Result, opts)
		return nil
	}

	if !model.IsCodeKind(opts.kind) {
		return fmt.Errorf("unknown kind %q", opts.kind)
	}
	code, err := readSource(opts.file, stdin)
	if err != nil {
		return err
	}
	if strings.TrimSpace(code) == "" {
		return errors.New("code required")
	}
	language := opts.language
	if language == "" {
		language = languageFromPath(opts.file)
	}
	level := opts.level
	if level == "" {
		level = strings.ToLower(a.cfg.Client.Level)
	}

	st := reviewState{Kind: model.CodeKind(opts.kind), Language: language, Level: level, Code: code}
	res, err := a.client.CodeAssist(ctx, transport.CodeRequest{
		Kind:            st.Kind,
		Code:            code,
		Language:        language,
		ExperienceLevel: level,
	})
	if err != nil {
		return err
	}
	st.Result = &res
	saveReviewState(ctx, a.blob, st)

	a.printReview(r, code, res, opts)
	return nil
}

func (a *app) printReview(r *renderer, code string, res model.CodeAssistantResult, opts *reviewOptions) {
	r.printResult(a.out, res)
	if res.ImprovedCode == "" {
		return
	}
	fmt.Fprintln(a.out)
	if !opts.showDiff {
		fmt.Fprintln(a.out, r.markdown("## Improved code\n\n```\n"+res.ImprovedCode+"\n```"))
		return
	}
	mode := diff.ModePositional
	if opts.lcs {
		mode = diff.ModeLCS
	}
	renderDiff(a.out, diff.Compute(code, res.ImprovedCode, mode))
}

func readSource(path string, stdin io.Reader) (string, error) {
	if path == "" {
		return "", errors.New("--file is required")
	}
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return string(b), nil
}

var extLanguages = map[string]string{
	".go": "go", ".py": "python", ".js": "javascript", ".jsx": "javascript",
	".ts": "typescript", ".tsx": "typescript", ".java": "java", ".rs": "rust",
	".c": "c", ".h": "c", ".cpp": "cpp", ".cs": "csharp", ".rb": "ruby",
	".php": "php", ".kt": "kotlin", ".swift": "swift", ".sh": "bash",
}

func languageFromPath(path string) string {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return ""
}

func loadReviewState(ctx context.Context, blob store.BlobStore) (reviewState, error) {
	var st reviewState
	data, err := blob.Load(ctx, ReviewStateKey)
	if err != nil {
		if errors.Is(err, store.ErrBlobNotFound) {
			return st, errors.New("no saved review result")
		}
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("saved review state is corrupt: %w", err)
	}
	return st, nil
}

// saveReviewState 尽力保存，失败只记日志。
func saveReviewState(ctx context.Context, blob store.BlobStore, st reviewState) {
	data, err := json.Marshal(st)
	if err == nil {
		err = blob.Save(ctx, ReviewStateKey, data)
	}
	if err != nil {
		log.Warnf("保存代码助手状态失败: %v", err)
	}
}
