package models

// PaperRecord ist der bibliografische Datensatz eines Papers, eine Zeile
// pro eindeutigem PDF (Schlüssel ist der inhaltsadressierte Dateiname).
type PaperRecord struct {
	PDFFileName string `json:"pdf_file_name" gorm:"column:pdf_file_name;primaryKey"`

	// Provenienz der Pipeline-Artefakte
	OriFileName     string `json:"ori_file_name" gorm:"column:ori_file_name"`
	JSONFileName    string `json:"json_file_name" gorm:"column:json_file_name"`
	LLMJSONFileName string `json:"llm_json_file_name" gorm:"column:llm_json_file_name"`

	Title               string `json:"title" gorm:"column:title;type:text"`
	AuthorList          string `json:"author_list" gorm:"column:author_list;type:text"`
	AffiliationList     string `json:"affiliation_list" gorm:"column:affiliation_list;type:text"`
	FirstAuthor         string `json:"first_author" gorm:"column:first_author"`
	CorrespondingAuthor string `json:"corresponding_author" gorm:"column:corresponding_author"`
	CoAuthor            string `json:"co_author" gorm:"column:co_author;type:text"`
	Keywords            string `json:"keywords" gorm:"column:keywords;type:text"`
	DateMetadata        string `json:"date_metadata" gorm:"column:date_metadata;type:text"`
	Bibliography        string `json:"bibliography_information" gorm:"column:bibliography_information;type:text"`
	JournalName         string `json:"journal_name" gorm:"column:journal_name"`
	PublicationYear     string `json:"publication_year" gorm:"column:publication_year;index"`
	Volume              string `json:"volume" gorm:"column:volume"`
	Issue               string `json:"issue" gorm:"column:issue"`
	Page                string `json:"page" gorm:"column:page"`
	DOI                 string `json:"doi" gorm:"column:doi;index"`

	AuditMeta `gorm:"embedded"`
}

// TableName gibt explizit den Tabellennamen an.
func (PaperRecord) TableName() string {
	return "papers"
}
