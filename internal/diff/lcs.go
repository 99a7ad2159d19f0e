package diff

import "hanna-chat-go/internal/model"

// LCS 按最长公共子序列对齐两段文本。紧邻的删除行与新增行合并为一行 chg，
// LineIndex 是输出行的序号。
func LCS(original, modified string) []model.DiffRow {
	oldLines := splitLines(original)
	newLines := splitLines(modified)
	table := lcsTable(oldLines, newLines)

	var rows []model.DiffRow
	var dels, adds []string
	flush := func() {
		for len(dels) > 0 && len(adds) > 0 {
			rows = append(rows, model.DiffRow{Original: dels[0], Modified: adds[0], Kind: classify(dels[0], adds[0])})
			dels, adds = dels[1:], adds[1:]
		}
		for _, d := range dels {
			rows = append(rows, model.DiffRow{Original: d, Kind: model.DiffDel})
		}
		for _, a := range adds {
			rows = append(rows, model.DiffRow{Modified: a, Kind: model.DiffAdd})
		}
		dels, adds = nil, nil
	}

	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i < len(oldLines) && j < len(newLines) && oldLines[i] == newLines[j]:
			flush()
			rows = append(rows, model.DiffRow{Original: oldLines[i], Modified: newLines[j], Kind: model.DiffSame})
			i++
			j++
		case j >= len(newLines) || (i < len(oldLines) && table[i+1][j] >= table[i][j+1]):
			dels = append(dels, oldLines[i])
			i++
		default:
			adds = append(adds, newLines[j])
			j++
		}
	}
	flush()

	for k := range rows {
		rows[k].LineIndex = k + 1
	}
	return rows
}

// t[i][j] 为 a[i:] 与 b[j:] 的 LCS 长度
func lcsTable(a, b []string) [][]int {
	m, n := len(a), len(b)
	t := make([][]int, m+1)
	for i := range t {
		t[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if a[i] == b[j] {
				t[i][j] = t[i+1][j+1] + 1
			} else {
				t[i][j] = max(t[i+1][j], t[i][j+1])
			}
		}
	}
	return t
}
