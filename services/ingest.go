package services

import (
	"context"
	"fmt"

	"paper-intake/config"
	"paper-intake/models"
	"paper-intake/providers/pdfservice"
	"paper-intake/storage"

	"go.uber.org/zap"
)

// LayoutAnalyzer ist die vom IngestService benötigte Schnittstelle zum
// Layout-Analyse-Dienst.
type LayoutAnalyzer interface {
	Analyze(ctx context.Context, fileName string, data []byte) ([]models.TextBlock, []byte, *pdfservice.ServiceError)
}

// RejectionError: zu viele Felder kamen als NO_TEXT zurück, das Dokument
// ist vermutlich kein verwertbares Paper.
type RejectionError struct {
	NoTextCount int
	Threshold   int
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("extraktion abgelehnt: %d felder ohne text (schwelle %d)", e.NoTextCount, e.Threshold)
}

// IngestResult fasst einen Pipeline-Lauf zusammen.
type IngestResult struct {
	PDFFileName     string                `json:"pdf_file_name"`
	Duplicate       bool                  `json:"duplicate"`
	JSONFileName    string                `json:"json_file_name,omitempty"`
	LLMJSONFileName string                `json:"llm_json_file_name,omitempty"`
	BlockTypes      []string              `json:"block_types,omitempty"`
	NoTextCount     int                   `json:"no_text_count"`
	Extractions     []ExtractionResult    `json:"extractions,omitempty"`
	Paper           *models.PaperRecord   `json:"paper,omitempty"`
	Authors         []models.AuthorRecord `json:"authors,omitempty"`
}

// IngestService orchestriert die Pipeline: PDF speichern, Layout-Analyse,
// Blockfilter, Feldextraktion, Normalisierung, Upsert.
type IngestService struct {
	Config     *config.Config
	Store      *storage.Store
	Files      *storage.FileStore
	PDF        LayoutAnalyzer
	Extractor  *FieldExtractor
	Normalizer *Normalizer
	Logger     *zap.Logger
}

// NewIngestService erstellt einen neuen IngestService.
func NewIngestService(cfg *config.Config, store *storage.Store, files *storage.FileStore,
	pdf LayoutAnalyzer, extractor *FieldExtractor, normalizer *Normalizer, logger *zap.Logger) *IngestService {
	return &IngestService{
		Config:     cfg,
		Store:      store,
		Files:      files,
		PDF:        pdf,
		Extractor:  extractor,
		Normalizer: normalizer,
		Logger:     logger,
	}
}

// ProcessPDF führt einen kompletten Pipeline-Lauf aus. Duplikate (gleicher
// Inhalts-Hash) werden ohne force nicht erneut verarbeitet. Provenienz-
// Dateinamen landen auf Paper- und Autorzeilen; der Upsert läuft in einer
// Transaktion.
func (s *IngestService) ProcessPDF(ctx context.Context, oriFileName string, data []byte, actor string, force bool) (*IngestResult, error) {
	pdfName, duplicate, err := s.Files.SavePDF(data)
	if err != nil {
		return nil, err
	}
	log := s.Logger.With(zap.String("pdf", pdfName), zap.String("original", oriFileName))

	result := &IngestResult{PDFFileName: pdfName, Duplicate: duplicate}
	if duplicate && !force {
		log.Info("Duplikat erkannt, Verarbeitung übersprungen.")
		return result, nil
	}

	blocks, raw, serr := s.PDF.Analyze(ctx, oriFileName, data)
	if serr != nil {
		return nil, serr
	}
	jsonName, err := s.Files.SaveAnalysisJSON(pdfName, raw)
	if err != nil {
		return nil, err
	}
	result.JSONFileName = jsonName

	blob, types := FilterTextBlocks(blocks, FilterOptions{
		TargetPages:   s.Config.TargetPages,
		MaxPageNumber: s.Config.MaxPageNumber,
		AllowedTypes:  splitNames(s.Config.AllowedTypes),
	})
	result.BlockTypes = types

	extractions := s.Extractor.ExtractAll(ctx, blob)
	result.Extractions = extractions
	result.NoTextCount = CountNoText(extractions)

	llmName, err := s.Files.SaveLLMOutput(pdfName, s.Config.LLMModel, extractions)
	if err != nil {
		return nil, err
	}
	result.LLMJSONFileName = llmName

	if result.NoTextCount > s.Config.NoTextThreshold {
		log.Warn("Extraktion abgelehnt.", zap.Int("no_text_count", result.NoTextCount))
		return result, &RejectionError{NoTextCount: result.NoTextCount, Threshold: s.Config.NoTextThreshold}
	}

	paper, authors, err := s.Normalizer.Normalize(extractions)
	if err != nil {
		return nil, err
	}

	paper.PDFFileName = pdfName
	paper.OriFileName = oriFileName
	paper.JSONFileName = jsonName
	paper.LLMJSONFileName = llmName
	for i := range authors {
		authors[i].PDFFileName = pdfName
		authors[i].OriFileName = oriFileName
		authors[i].JSONFileName = jsonName
		authors[i].LLMJSONFileName = llmName
	}

	if err := s.Store.UpsertPaperBundle(ctx, *paper, authors, actor); err != nil {
		return nil, fmt.Errorf("datensätze speichern: %w", err)
	}

	result.Paper = paper
	result.Authors = authors
	log.Info("Paper verarbeitet.",
		zap.Int("authors", len(authors)),
		zap.Int("no_text_count", result.NoTextCount))
	return result, nil
}

// DeletePaper entfernt einen Paper-Datensatz samt Autorzeilen und allen
// abgeleiteten Dateien.
func (s *IngestService) DeletePaper(ctx context.Context, pdfFileName string) error {
	if err := s.Store.DeletePaper(ctx, pdfFileName); err != nil {
		return err
	}
	return s.Files.DeletePaperFiles(pdfFileName)
}
