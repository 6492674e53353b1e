package models

import "time"

// MatchResult ist das persistierte Ergebnis des Batch-Autorenabgleichs.
// Ein bereits vorhandener Autorname wird bei späteren Läufen übersprungen.
type MatchResult struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Author      string    `json:"author" gorm:"column:author;uniqueIndex"`
	KoreanName  string    `json:"korean_name" gorm:"column:korean_name"`
	MatchedID   string    `json:"matched_id" gorm:"column:matched_id"`
	MatchedName string    `json:"matched_name" gorm:"column:matched_name"`
	Similarity  float64   `json:"similarity" gorm:"column:similarity"`
	Exact       bool      `json:"exact" gorm:"column:exact"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName gibt explizit den Tabellennamen an.
func (MatchResult) TableName() string {
	return "match_results"
}
