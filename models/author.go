package models

// AuthorRecord ist eine Autor/Affiliation-Zeile eines Papers. Pro Autor und
// pro Affiliation entsteht eine eigene Zeile; die Identitätsspalten bleiben
// leer, bis ein Claim sie füllt.
type AuthorRecord struct {
	ID uint `json:"id" gorm:"primaryKey"`

	PDFFileName string `json:"pdf_file_name" gorm:"column:pdf_file_name;index"`

	OriFileName     string `json:"ori_file_name" gorm:"column:ori_file_name"`
	JSONFileName    string `json:"json_file_name" gorm:"column:json_file_name"`
	LLMJSONFileName string `json:"llm_json_file_name" gorm:"column:llm_json_file_name"`

	Author      string `json:"author" gorm:"column:author;index"`
	Affiliation string `json:"affiliation" gorm:"column:affiliation"`
	Role        string `json:"role" gorm:"column:role"`

	// Verknüpfung zu einer Identität (leer solange UNLINKED)
	IdentityID   string `json:"identity_id" gorm:"column:identity_id;index"`
	IdentityName string `json:"identity_name" gorm:"column:identity_name"`

	AuditMeta `gorm:"embedded"`
}

// TableName gibt explizit den Tabellennamen an.
func (AuthorRecord) TableName() string {
	return "paper_authors"
}
