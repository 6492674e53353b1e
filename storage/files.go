package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore verwaltet die Pipeline-Artefakte auf der Platte: PDFs und
// Analyse-JSONs im Upload-Verzeichnis, Modellausgaben im
// Resolve-Verzeichnis.
type FileStore struct {
	UploadDir  string
	ResolveDir string
}

// NewFileStore legt die Verzeichnisse an, falls sie fehlen.
func NewFileStore(uploadDir, resolveDir string) (*FileStore, error) {
	for _, dir := range []string{uploadDir, resolveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("verzeichnis %s anlegen: %w", dir, err)
		}
	}
	return &FileStore{UploadDir: uploadDir, ResolveDir: resolveDir}, nil
}

// SavePDF speichert das PDF unter seinem inhaltsadressierten Namen
// (SHA-256 des Inhalts). Existiert die Datei bereits, ist das PDF ein
// Duplikat und wird nicht erneut geschrieben.
func (f *FileStore) SavePDF(data []byte) (pdfFileName string, duplicate bool, err error) {
	sum := sha256.Sum256(data)
	pdfFileName = hex.EncodeToString(sum[:]) + ".pdf"
	path := filepath.Join(f.UploadDir, pdfFileName)

	if _, err := os.Stat(path); err == nil {
		return pdfFileName, true, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", false, fmt.Errorf("pdf speichern: %w", err)
	}
	return pdfFileName, false, nil
}

// SaveAnalysisJSON legt die rohe Antwort des PDF-Dienstes neben dem PDF ab.
func (f *FileStore) SaveAnalysisJSON(pdfFileName string, raw []byte) (string, error) {
	jsonName := strings.TrimSuffix(pdfFileName, ".pdf") + ".json"
	if err := os.WriteFile(filepath.Join(f.UploadDir, jsonName), raw, 0o644); err != nil {
		return "", fmt.Errorf("analyse-json speichern: %w", err)
	}
	return jsonName, nil
}

// SaveLLMOutput persistiert die Extraktionsergebnisse im
// Resolve-Verzeichnis unter {zeitstempel}_{modell}_{basis}_output.json.
func (f *FileStore) SaveLLMOutput(pdfFileName, model string, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(pdfFileName, ".pdf")
	name := fmt.Sprintf("%s_%s_%s_output.json",
		time.Now().Format("20060102_150405"), sanitizeModelName(model), base)
	if err := os.WriteFile(filepath.Join(f.ResolveDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("llm-ausgabe speichern: %w", err)
	}
	return name, nil
}

// DeletePaperFiles entfernt alle Artefakte eines PDFs: die Datei selbst,
// das Analyse-JSON und alle Resolve-Ausgaben, die den Hash enthalten.
func (f *FileStore) DeletePaperFiles(pdfFileName string) error {
	base := strings.TrimSuffix(pdfFileName, ".pdf")

	for _, name := range []string{pdfFileName, base + ".json"} {
		if err := os.Remove(filepath.Join(f.UploadDir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%s entfernen: %w", name, err)
		}
	}

	entries, err := os.ReadDir(f.ResolveDir)
	if err != nil {
		return fmt.Errorf("resolve-verzeichnis lesen: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), base) {
			continue
		}
		if err := os.Remove(filepath.Join(f.ResolveDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%s entfernen: %w", entry.Name(), err)
		}
	}
	return nil
}

// sanitizeModelName macht einen Modellnamen dateinamenstauglich.
func sanitizeModelName(model string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, model)
}
