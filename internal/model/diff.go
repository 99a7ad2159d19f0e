package model

// DiffKind 是逐行对比的分类。
type DiffKind string

const (
	DiffSame DiffKind = "same"
	DiffAdd  DiffKind = "add"
	DiffDel  DiffKind = "del"
	DiffChg  DiffKind = "chg"
)

// DiffRow 是派生数据，不做持久化。LineIndex 从 1 开始。
type DiffRow struct {
	LineIndex int      `json:"lineIndex"`
	Original  string   `json:"original"`
	Modified  string   `json:"modified"`
	Kind      DiffKind `json:"kind"`
}
