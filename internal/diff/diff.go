// Package diff 逐行对比原始代码与改写后的代码，用于展示。
//
// 默认按位置对比：原文第 i 行对应改写的第 i 行，插入一行会表现为后续若干行 chg。
// ModeLCS 改为按最长公共子序列对齐。
package diff

import (
	"strings"

	"hanna-chat-go/internal/model"
)

// Mode 选择对比算法。
type Mode int

const (
	// 默认，按行号对比
	ModePositional Mode = iota
	ModeLCS
)

// Stats 按类型统计行数。
type Stats struct {
	Same    int
	Added   int
	Deleted int
	Changed int
}

// Compute 按 mode 计算 diff。
func Compute(original, modified string, mode Mode) []model.DiffRow {
	if mode == ModeLCS {
		return LCS(original, modified)
	}
	return Lines(original, modified)
}

// Lines 按位置对比，缺失的一侧视为空行。
func Lines(original, modified string) []model.DiffRow {
	oldLines := splitLines(original)
	newLines := splitLines(modified)

	n := max(len(oldLines), len(newLines))
	rows := make([]model.DiffRow, 0, n)
	for i := 0; i < n; i++ {
		a := lineAt(oldLines, i)
		b := lineAt(newLines, i)
		rows = append(rows, model.DiffRow{
			LineIndex: i + 1,
			Original:  a,
			Modified:  b,
			Kind:      classify(a, b),
		})
	}
	return rows
}

func classify(a, b string) model.DiffKind {
	switch {
	case a == b:
		return model.DiffSame
	case isBlank(a) && !isBlank(b):
		return model.DiffAdd
	case !isBlank(a) && isBlank(b):
		return model.DiffDel
	default:
		return model.DiffChg
	}
}

func Summarize(rows []model.DiffRow) Stats {
	var s Stats
	for _, r := range rows {
		switch r.Kind {
		case model.DiffSame:
			s.Same++
		case model.DiffAdd:
			s.Added++
		case model.DiffDel:
			s.Deleted++
		case model.DiffChg:
			s.Changed++
		}
	}
	return s
}

// splitLines 按 "\n" 切分并保留所有段："" 是一个空行，末尾换行会多出一个空行。
func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func lineAt(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
