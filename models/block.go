package models

// TextBlock ist ein Layout-Block aus der Antwort des PDF-Dienstes. Die
// Felder sind bewusst untypisiert, weil der Dienst fehlerhafte Einträge
// liefern kann; der Filter validiert jeden Block einzeln.
type TextBlock struct {
	PageNumber any `json:"page_number"`
	Text       any `json:"text"`
	Type       any `json:"type"`
}
