package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"paper-intake/models"

	"gorm.io/gorm"
)

// auditColumns ist die Projektion, die beim Upsert aus Bestandszeilen
// gerettet wird.
type auditColumns struct {
	RegDT time.Time `gorm:"column:reg_dt"`
	RegID string    `gorm:"column:reg_id"`
}

// upsertWithAudit ersetzt alle Zeilen der angegebenen Schlüssel durch die
// neuen Zeilen (delete-then-insert). REG_DT/REG_ID überleben aus dem
// Bestand; bei neuen Schlüsseln werden sie auf jetzt/actor gesetzt.
// MOD_DT/MOD_ID werden immer erneuert. Läuft innerhalb der übergebenen
// Transaktion, damit Leser nie einen teilweise ersetzten Zustand sehen.
func upsertWithAudit[T any, PT interface {
	*T
	models.Auditable
}](tx *gorm.DB, table string, keyCols []string, keyOf func(*T) []any, rows []T, actor string, now time.Time) error {
	if len(rows) == 0 {
		return nil
	}

	conds := make([]string, len(keyCols))
	for i, col := range keyCols {
		conds[i] = col + " = ?"
	}
	where := strings.Join(conds, " AND ")

	// Schlüssel deduplizieren, Reihenfolge erhalten
	keyArgs := make(map[string][]any)
	var keyOrder []string
	for i := range rows {
		args := keyOf(&rows[i])
		ks := keyString(args)
		if _, ok := keyArgs[ks]; !ok {
			keyArgs[ks] = args
			keyOrder = append(keyOrder, ks)
		}
	}

	existing := make(map[string]auditColumns)
	for _, ks := range keyOrder {
		var ac auditColumns
		err := tx.Table(table).Select("reg_dt, reg_id").Where(where, keyArgs[ks]...).Take(&ac).Error
		if err == nil {
			existing[ks] = ac
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("bestehende audit-spalten lesen: %w", err)
		}
	}

	for i := range rows {
		audit := PT(&rows[i]).Audit()
		if ac, ok := existing[keyString(keyOf(&rows[i]))]; ok {
			audit.RegDT, audit.RegID = ac.RegDT, ac.RegID
		} else {
			audit.RegDT, audit.RegID = now, actor
		}
		audit.ModDT, audit.ModID = now, actor
	}

	for _, ks := range keyOrder {
		if err := tx.Table(table).Where(where, keyArgs[ks]...).Delete(new(T)).Error; err != nil {
			return fmt.Errorf("bestandszeilen löschen: %w", err)
		}
	}
	if err := tx.Table(table).Create(&rows).Error; err != nil {
		return fmt.Errorf("neue zeilen einfügen: %w", err)
	}
	return nil
}

func keyString(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, "\x1f")
}

// UpsertPapers ersetzt Paper-Datensätze schlüsselweise (PDF-Dateiname).
func (s *Store) UpsertPapers(ctx context.Context, papers []models.PaperRecord, actor string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertWithAudit[models.PaperRecord](tx, models.PaperRecord{}.TableName(),
			[]string{"pdf_file_name"},
			func(p *models.PaperRecord) []any { return []any{p.PDFFileName} },
			papers, actor, time.Now())
	})
}

// UpsertAuthors ersetzt alle Autorzeilen der betroffenen PDFs.
func (s *Store) UpsertAuthors(ctx context.Context, authors []models.AuthorRecord, actor string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertWithAudit[models.AuthorRecord](tx, models.AuthorRecord{}.TableName(),
			[]string{"pdf_file_name"},
			func(a *models.AuthorRecord) []any { return []any{a.PDFFileName} },
			authors, actor, time.Now())
	})
}

// UpsertPaperBundle schreibt Paper und Autorzeilen eines Ingestion-Laufs in
// einer einzigen Transaktion.
func (s *Store) UpsertPaperBundle(ctx context.Context, paper models.PaperRecord, authors []models.AuthorRecord, actor string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		err := upsertWithAudit[models.PaperRecord](tx, models.PaperRecord{}.TableName(),
			[]string{"pdf_file_name"},
			func(p *models.PaperRecord) []any { return []any{p.PDFFileName} },
			[]models.PaperRecord{paper}, actor, now)
		if err != nil {
			return err
		}
		// Auch ohne neue Autorzeilen müssen alte Zeilen des PDFs weichen.
		if len(authors) == 0 {
			return tx.Where("pdf_file_name = ?", paper.PDFFileName).Delete(&models.AuthorRecord{}).Error
		}
		return upsertWithAudit[models.AuthorRecord](tx, models.AuthorRecord{}.TableName(),
			[]string{"pdf_file_name"},
			func(a *models.AuthorRecord) []any { return []any{a.PDFFileName} },
			authors, actor, now)
	})
}

// UpsertIdentities ersetzt Identitäten schlüsselweise (Personalnummer).
func (s *Store) UpsertIdentities(ctx context.Context, identities []models.Identity, actor string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertWithAudit[models.Identity](tx, models.Identity{}.TableName(),
			[]string{"id"},
			func(i *models.Identity) []any { return []any{i.ID} },
			identities, actor, time.Now())
	})
}

// DeletePaper entfernt Paper- und Autorzeilen eines PDFs in einer
// Transaktion.
func (s *Store) DeletePaper(ctx context.Context, pdfFileName string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pdf_file_name = ?", pdfFileName).Delete(&models.AuthorRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("pdf_file_name = ?", pdfFileName).Delete(&models.PaperRecord{}).Error
	})
}
