package storage

import (
	"context"
	"path/filepath"
	"testing"

	"paper-intake/models"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestUpsertPapersPreservesRegistrationAudit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper := models.PaperRecord{PDFFileName: "abc.pdf", Title: "First Title"}
	if err := store.UpsertPapers(ctx, []models.PaperRecord{paper}, "U1"); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	first, _, err := store.GetPaper(ctx, "abc.pdf")
	if err != nil {
		t.Fatalf("GetPaper: %v", err)
	}
	if first.RegID != "U1" || first.ModID != "U1" {
		t.Fatalf("audit after insert = %s/%s, want U1/U1", first.RegID, first.ModID)
	}

	// Zweiter Lauf mit anderem Akteur: REG bleibt, MOD wandert.
	paper.Title = "Corrected Title"
	if err := store.UpsertPapers(ctx, []models.PaperRecord{paper}, "U2"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	second, _, err := store.GetPaper(ctx, "abc.pdf")
	if err != nil {
		t.Fatalf("GetPaper: %v", err)
	}
	if second.Title != "Corrected Title" {
		t.Errorf("title = %q, want Corrected Title", second.Title)
	}
	if second.RegID != "U1" {
		t.Errorf("reg_id = %s, want U1", second.RegID)
	}
	if second.ModID != "U2" {
		t.Errorf("mod_id = %s, want U2", second.ModID)
	}
	if !second.RegDT.Equal(first.RegDT) {
		t.Errorf("reg_dt changed: %v -> %v", first.RegDT, second.RegDT)
	}
	if !second.ModDT.After(first.ModDT) && !second.ModDT.Equal(first.ModDT) {
		t.Errorf("mod_dt went backwards: %v -> %v", first.ModDT, second.ModDT)
	}
}

func TestUpsertAuthorsReplacesAllRowsOfKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	firstRun := []models.AuthorRecord{
		{PDFFileName: "abc.pdf", Author: "Kim Minsu", Affiliation: "X", Role: "FIRST_AUTHOR"},
		{PDFFileName: "abc.pdf", Author: "Lee Jiwon", Affiliation: "Y", Role: "CO_AUTHOR"},
		{PDFFileName: "abc.pdf", Author: "Park Chulsoo", Affiliation: "Z", Role: "CO_AUTHOR"},
		{PDFFileName: "other.pdf", Author: "Choi Younghee", Affiliation: "W", Role: "FIRST_AUTHOR"},
	}
	if err := store.UpsertAuthors(ctx, firstRun, "U1"); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Neuer Lauf für abc.pdf mit weniger Zeilen: alte Zeilen verschwinden,
	// other.pdf bleibt unberührt.
	secondRun := []models.AuthorRecord{
		{PDFFileName: "abc.pdf", Author: "Kim Minsu", Affiliation: "X", Role: "FIRST_AUTHOR"},
		{PDFFileName: "abc.pdf", Author: "Lee Jiwon", Affiliation: "Y", Role: "CORRESPONDING_AUTHOR"},
	}
	if err := store.UpsertAuthors(ctx, secondRun, "U2"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var abcRows []models.AuthorRecord
	if err := store.DB().Where("pdf_file_name = ?", "abc.pdf").Order("author").Find(&abcRows).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(abcRows) != 2 {
		t.Fatalf("rows for abc.pdf = %d, want 2", len(abcRows))
	}
	for _, row := range abcRows {
		// REG überlebt den Ersatz des Schlüssels, MOD trägt den neuen Akteur.
		if row.RegID != "U1" {
			t.Errorf("reg_id = %s, want U1", row.RegID)
		}
		if row.ModID != "U2" {
			t.Errorf("mod_id = %s, want U2", row.ModID)
		}
	}
	if abcRows[1].Role != "CORRESPONDING_AUTHOR" {
		t.Errorf("role = %s, want CORRESPONDING_AUTHOR", abcRows[1].Role)
	}

	var otherRows []models.AuthorRecord
	if err := store.DB().Where("pdf_file_name = ?", "other.pdf").Find(&otherRows).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(otherRows) != 1 || otherRows[0].ModID != "U1" {
		t.Errorf("other.pdf rows = %+v, want untouched single row from U1", otherRows)
	}
}

func TestUpsertPaperBundleClearsAuthorsWhenRunHasNone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper := models.PaperRecord{PDFFileName: "abc.pdf", Title: "T"}
	authors := []models.AuthorRecord{{PDFFileName: "abc.pdf", Author: "Kim Minsu", Affiliation: "X"}}
	if err := store.UpsertPaperBundle(ctx, paper, authors, "U1"); err != nil {
		t.Fatalf("first bundle: %v", err)
	}

	if err := store.UpsertPaperBundle(ctx, paper, nil, "U2"); err != nil {
		t.Fatalf("second bundle: %v", err)
	}

	var count int64
	if err := store.DB().Model(&models.AuthorRecord{}).Where("pdf_file_name = ?", "abc.pdf").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("author rows = %d, want 0", count)
	}
}

func TestDeletePaperRemovesBothTables(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertPaperBundle(ctx,
		models.PaperRecord{PDFFileName: "abc.pdf", Title: "T"},
		[]models.AuthorRecord{{PDFFileName: "abc.pdf", Author: "Kim Minsu", Affiliation: "X"}},
		"U1"); err != nil {
		t.Fatalf("bundle: %v", err)
	}

	if err := store.DeletePaper(ctx, "abc.pdf"); err != nil {
		t.Fatalf("DeletePaper: %v", err)
	}

	if _, _, err := store.GetPaper(ctx, "abc.pdf"); err == nil {
		t.Error("paper still present after deletion")
	}
	var count int64
	store.DB().Model(&models.AuthorRecord{}).Where("pdf_file_name = ?", "abc.pdf").Count(&count)
	if count != 0 {
		t.Errorf("author rows = %d, want 0", count)
	}
}

func TestSearchAuthorPapersJoinsAndDeduplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertPaperBundle(ctx,
		models.PaperRecord{PDFFileName: "abc.pdf", Title: "Paper A", PublicationYear: "2023", JournalName: "J. Fish"},
		[]models.AuthorRecord{
			{PDFFileName: "abc.pdf", Author: "Kim Minsu", Affiliation: "X", Role: "FIRST_AUTHOR"},
			{PDFFileName: "abc.pdf", Author: "Lee Jiwon", Affiliation: "Y", Role: "CO_AUTHOR"},
		}, "U1"); err != nil {
		t.Fatalf("bundle: %v", err)
	}

	// Zwei Varianten, die dieselbe Zeile treffen, dürfen nur eine
	// Ergebniszeile liefern.
	rows, err := store.SearchAuthorPapers(ctx, []string{"kim", "minsu"}, "")
	if err != nil {
		t.Fatalf("SearchAuthorPapers: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Title != "Paper A" || rows[0].Author != "Kim Minsu" {
		t.Errorf("row = %+v", rows[0])
	}

	// Leere Suchkriterien liefern nichts.
	rows, err = store.SearchAuthorPapers(ctx, nil, "")
	if err != nil {
		t.Fatalf("SearchAuthorPapers: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}
