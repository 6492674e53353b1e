package models

// Identity ist eine registrierte Person (Schlüssel ist die Personalnummer).
// Bis zu vier Namensvarianten decken abweichende Schreibweisen in
// Autorenlisten ab.
type Identity struct {
	ID   string `json:"id" gorm:"column:id;primaryKey"`
	Name string `json:"name" gorm:"column:name;index"`

	NameVariant1 string `json:"name_variant1" gorm:"column:name_variant1"`
	NameVariant2 string `json:"name_variant2" gorm:"column:name_variant2"`
	NameVariant3 string `json:"name_variant3" gorm:"column:name_variant3"`
	NameVariant4 string `json:"name_variant4" gorm:"column:name_variant4"`

	Email      string `json:"email" gorm:"column:email"`
	Department string `json:"department" gorm:"column:department"`
	JobRank    string `json:"job_rank" gorm:"column:job_rank"`
	Duty       string `json:"duty" gorm:"column:duty"`
	State      string `json:"state" gorm:"column:state"`

	AuditMeta `gorm:"embedded"`
}

// TableName gibt explizit den Tabellennamen an.
func (Identity) TableName() string {
	return "identities"
}

// Variants gibt die vier Varianten-Slots in fester Reihenfolge zurück.
func (i *Identity) Variants() [4]*string {
	return [4]*string{&i.NameVariant1, &i.NameVariant2, &i.NameVariant3, &i.NameVariant4}
}
