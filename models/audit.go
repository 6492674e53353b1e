package models

import "time"

// AuditMeta trägt die vier Audit-Spalten, die jede fachliche Tabelle führt.
// REG_* wird beim ersten Schreiben gesetzt und danach nie mehr verändert,
// MOD_* wird bei jedem Schreiben aktualisiert.
type AuditMeta struct {
	RegDT time.Time `json:"reg_dt" gorm:"column:reg_dt"`
	RegID string    `json:"reg_id" gorm:"column:reg_id"`
	ModDT time.Time `json:"mod_dt" gorm:"column:mod_dt"`
	ModID string    `json:"mod_id" gorm:"column:mod_id"`
}

// Audit gibt die eingebetteten Audit-Spalten zur Mutation zurück.
func (a *AuditMeta) Audit() *AuditMeta { return a }

// Auditable wird von allen Records implementiert, die AuditMeta einbetten.
type Auditable interface {
	Audit() *AuditMeta
}
