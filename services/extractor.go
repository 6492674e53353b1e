package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LanguageModel ist die vom Extraktor und Resolver benötigte LLM-Schnittstelle.
type LanguageModel interface {
	// SendFieldRequest schlägt nie fehl; Fehler werden als parsed "ERROR"
	// mit Diagnose in raw gemeldet.
	SendFieldRequest(ctx context.Context, field, instruction, input string) (parsed, raw string)
	Invoke(ctx context.Context, prompt string) (string, error)
}

// FieldSpec beschreibt ein zu extrahierendes Feld samt Anweisungstext.
type FieldSpec struct {
	Name        string `yaml:"name"`
	Instruction string `yaml:"instruction"`
}

type fieldSpecFile struct {
	Fields []FieldSpec `yaml:"fields"`
}

// LoadFieldSpecs lädt die Feld-Registry aus einer YAML-Datei. Die
// Reihenfolge der Datei bestimmt die Extraktionsreihenfolge.
func LoadFieldSpecs(path string) ([]FieldSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("feldregistry lesen: %w", err)
	}
	var f fieldSpecFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("feldregistry parsen: %w", err)
	}
	if len(f.Fields) == 0 {
		return nil, fmt.Errorf("feldregistry %s enthält keine felder", path)
	}
	for _, fs := range f.Fields {
		if fs.Name == "" {
			return nil, fmt.Errorf("feldregistry %s enthält ein feld ohne namen", path)
		}
	}
	return f.Fields, nil
}

// ExtractionResult ist das Ergebnis eines Feldes: der geparste Wert oder
// einer der Sentinels NO_TEXT / ERROR, plus die Rohantwort des Modells.
type ExtractionResult struct {
	Field  string `json:"field"`
	Parsed string `json:"parsed"`
	Raw    string `json:"raw"`
}

// FieldExtractor ruft das Modell feldweise über dem kombinierten Text auf.
type FieldExtractor struct {
	Specs  []FieldSpec
	LLM    LanguageModel
	Logger *zap.Logger
}

// NewFieldExtractor erstellt einen neuen FieldExtractor.
func NewFieldExtractor(specs []FieldSpec, lm LanguageModel, logger *zap.Logger) *FieldExtractor {
	return &FieldExtractor{Specs: specs, LLM: lm, Logger: logger}
}

// ExtractAll extrahiert alle registrierten Felder. Ein leerer Eingabetext
// (nach Whitespace-Trim) liefert für jedes Feld den Sentinel NO_TEXT, ohne
// das Modell aufzurufen.
func (e *FieldExtractor) ExtractAll(ctx context.Context, blob string) []ExtractionResult {
	results := make([]ExtractionResult, 0, len(e.Specs))

	if strings.TrimSpace(blob) == "" {
		for _, spec := range e.Specs {
			results = append(results, ExtractionResult{Field: spec.Name, Parsed: "NO_TEXT"})
		}
		return results
	}

	for _, spec := range e.Specs {
		parsed, raw := e.LLM.SendFieldRequest(ctx, spec.Name, spec.Instruction, blob)
		if parsed == "ERROR" {
			e.Logger.Warn("Feldextraktion lieferte ERROR.", zap.String("field", spec.Name))
		}
		results = append(results, ExtractionResult{Field: spec.Name, Parsed: parsed, Raw: raw})
	}
	return results
}

// CountNoText zählt die NO_TEXT-Sentinels eines Extraktionslaufs.
func CountNoText(results []ExtractionResult) int {
	n := 0
	for _, r := range results {
		if r.Parsed == "NO_TEXT" {
			n++
		}
	}
	return n
}
