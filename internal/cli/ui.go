package cli

import (
	"fmt"
	"io"
	"strings"

	"hanna-chat-go/internal/diff"
	"hanna-chat-go/internal/model"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	addStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	delStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	chgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	severityStyles = map[model.Severity]lipgloss.Style{
		model.SeverityInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		model.SeverityMinor:    lipgloss.NewStyle().Foreground(lipgloss.Color("229")),
		model.SeverityMajor:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		model.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}

	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("86")).
			Padding(0, 2)
)

// renderer 渲染 Markdown；plain 为 true 时原样输出（例如输出不是终端时）。
type renderer struct {
	md    *glamour.TermRenderer
	plain bool
}

func newRenderer(plain bool) *renderer {
	r := &renderer{plain: plain}
	if plain {
		return r
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// 渲染器初始化失败时退化为纯文本
		r.plain = true
		return r
	}
	r.md = md
	return r
}

func (r *renderer) markdown(s string) string {
	if r.plain || r.md == nil {
		return s
	}
	out, err := r.md.Render(s)
	if err != nil {
		return s
	}
	return strings.TrimRight(out, "\n")
}

func roleLabel(role model.Role) string {
	if role == model.RoleUser {
		return userStyle.Render("You")
	}
	return assistantStyle.Render("Hanna")
}

func (r *renderer) printMessage(w io.Writer, msg model.Message) {
	fmt.Fprintf(w, "%s %s\n", roleLabel(msg.Role), mutedStyle.Render(msg.CreatedAt.Local().Format("15:04:05")))
	fmt.Fprintln(w, r.markdown(msg.Content))
	fmt.Fprintln(w)
}

func (r *renderer) printResult(w io.Writer, res model.CodeAssistantResult) {
	if res.Failed() {
		fmt.Fprintln(w, errorStyle.Render(res.Summary))
		if res.Raw != "" {
			fmt.Fprintln(w, mutedStyle.Render(res.Raw))
		}
		return
	}
	fmt.Fprintln(w, r.markdown("## Summary\n\n"+res.Summary))
	if len(res.Issues) > 0 {
		fmt.Fprintln(w)
		for _, is := range res.Issues {
			style, ok := severityStyles[is.Severity]
			if !ok {
				style = mutedStyle
			}
			line := fmt.Sprintf("[%s] %s", style.Render(string(is.Severity)), is.Message)
			if is.Type != "" {
				line += mutedStyle.Render(" (" + is.Type + ")")
			}
			if is.LineHint != "" {
				line += mutedStyle.Render(" @ " + is.LineHint)
			}
			fmt.Fprintln(w, "  "+line)
		}
	}
	if res.Tests != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, r.markdown("## Tests\n\n```\n"+res.Tests+"\n```"))
	}
}

// renderDiff 以两列格式输出 diff 行，并按类型着色。
func renderDiff(w io.Writer, rows []model.DiffRow) {
	for _, row := range rows {
		var mark string
		var style lipgloss.Style
		switch row.Kind {
		case model.DiffAdd:
			mark, style = "+", addStyle
		case model.DiffDel:
			mark, style = "-", delStyle
		case model.DiffChg:
			mark, style = "~", chgStyle
		default:
			mark, style = " ", mutedStyle
		}
		fmt.Fprintf(w, "%4d %s %s\n", row.LineIndex, style.Render(mark), style.Render(diffText(row)))
	}
	s := diff.Summarize(rows)
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d same, %d added, %d deleted, %d changed", s.Same, s.Added, s.Deleted, s.Changed)))
}

func diffText(row model.DiffRow) string {
	switch row.Kind {
	case model.DiffAdd:
		return row.Modified
	case model.DiffDel:
		return row.Original
	case model.DiffChg:
		return row.Original + "  =>  " + row.Modified
	default:
		return row.Original
	}
}

func banner(level string) string {
	return bannerStyle.Render("HannaChatBot · level " + level + "\n" +
		mutedStyle.Render("/regen /quiz /clear /export /level <L> /quit"))
}
