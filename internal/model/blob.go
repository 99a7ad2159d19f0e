package model

import "time"

// Blob 是 MySQL 中按 key 保存的一段 JSON。
type Blob struct {
	Key       string    `gorm:"primaryKey;size:191" json:"key"`
	Value     string    `gorm:"type:longtext;not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Blob) TableName() string {
	return "blobs"
}
