package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paper-intake/models"
)

// PaperFilter sind die optionalen Suchkriterien der Paper-Abfrage.
type PaperFilter struct {
	Title           string `json:"title"`
	JournalName     string `json:"journal_name"`
	PublicationYear string `json:"publication_year"`
	Author          string `json:"author"`
	Limit           int    `json:"limit"`
}

// QueryPapers listet Paper nach Teilstring-Kriterien, neueste zuerst.
func (s *Store) QueryPapers(ctx context.Context, f PaperFilter) ([]models.PaperRecord, error) {
	q := s.db.WithContext(ctx).Model(&models.PaperRecord{})
	if f.Title != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(f.Title)+"%")
	}
	if f.JournalName != "" {
		q = q.Where("LOWER(journal_name) LIKE ?", "%"+strings.ToLower(f.JournalName)+"%")
	}
	if f.PublicationYear != "" {
		q = q.Where("publication_year = ?", f.PublicationYear)
	}
	if f.Author != "" {
		q = q.Where("LOWER(author_list) LIKE ?", "%"+strings.ToLower(f.Author)+"%")
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	var papers []models.PaperRecord
	err := q.Order("publication_year DESC, title ASC").Limit(f.Limit).Find(&papers).Error
	return papers, err
}

// GetPaper lädt einen Paper-Datensatz samt Autorzeilen.
func (s *Store) GetPaper(ctx context.Context, pdfFileName string) (*models.PaperRecord, []models.AuthorRecord, error) {
	var paper models.PaperRecord
	if err := s.db.WithContext(ctx).First(&paper, "pdf_file_name = ?", pdfFileName).Error; err != nil {
		return nil, nil, err
	}
	var authors []models.AuthorRecord
	if err := s.db.WithContext(ctx).Where("pdf_file_name = ?", pdfFileName).Order("author").Find(&authors).Error; err != nil {
		return nil, nil, err
	}
	return &paper, authors, nil
}

// PapersByIdentity listet alle Paper, auf denen die Identität als Autor
// verknüpft ist.
func (s *Store) PapersByIdentity(ctx context.Context, identityID string) ([]models.PaperRecord, error) {
	var papers []models.PaperRecord
	err := s.db.WithContext(ctx).
		Distinct("papers.*").
		Joins("JOIN paper_authors ON paper_authors.pdf_file_name = papers.pdf_file_name").
		Where("paper_authors.identity_id = ?", identityID).
		Order("papers.publication_year DESC, papers.title ASC").
		Find(&papers).Error
	return papers, err
}

// FindAuthorRow lädt genau eine Autorzeile über ihren fachlichen Schlüssel.
func (s *Store) FindAuthorRow(ctx context.Context, pdfFileName, author, affiliation string) (*models.AuthorRecord, error) {
	var row models.AuthorRecord
	err := s.db.WithContext(ctx).
		Where("pdf_file_name = ? AND author = ? AND affiliation = ?", pdfFileName, author, affiliation).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// LinkAuthorIdentity verknüpft eine Autorzeile mit einer Identität. Nur die
// Identitätsspalten und die MOD-Audit-Spalten ändern sich; REG bleibt
// unberührt. Trifft das Update keine Zeile, ist das ein Fehler.
func (s *Store) LinkAuthorIdentity(ctx context.Context, pdfFileName, author, affiliation, identityID, identityName, actor string) error {
	res := s.db.WithContext(ctx).Model(&models.AuthorRecord{}).
		Where("pdf_file_name = ? AND author = ? AND affiliation = ?", pdfFileName, author, affiliation).
		Updates(map[string]any{
			"identity_id":   identityID,
			"identity_name": identityName,
			"mod_dt":        time.Now(),
			"mod_id":        actor,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("keine autorzeile für %s / %s / %s gefunden", pdfFileName, author, affiliation)
	}
	return nil
}

// GetIdentity lädt eine Identität über die Personalnummer.
func (s *Store) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	var identity models.Identity
	if err := s.db.WithContext(ctx).First(&identity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &identity, nil
}

// IdentitiesByName listet alle Identitäten mit exakt diesem Namen.
func (s *Store) IdentitiesByName(ctx context.Context, name string) ([]models.Identity, error) {
	var identities []models.Identity
	err := s.db.WithContext(ctx).Where("name = ?", name).Order("id").Find(&identities).Error
	return identities, err
}

// ListIdentities lädt alle registrierten Identitäten.
func (s *Store) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	var identities []models.Identity
	err := s.db.WithContext(ctx).Order("id").Find(&identities).Error
	return identities, err
}

// DistinctLinkedAuthors listet alle unterschiedlichen Autoren-Schreibweisen,
// die mit der Identität verknüpft sind.
func (s *Store) DistinctLinkedAuthors(ctx context.Context, identityID string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&models.AuthorRecord{}).
		Distinct("author").
		Where("identity_id = ? AND author <> ''", identityID).
		Order("author").
		Pluck("author", &names).Error
	return names, err
}

// AuthorPaperRow ist eine Zeile der Autorensuche: Autorzeile plus die
// bibliografischen Spalten des zugehörigen Papers.
type AuthorPaperRow struct {
	Author              string `json:"author"`
	IdentityID          string `json:"identity_id"`
	IdentityName        string `json:"identity_name"`
	Role                string `json:"role"`
	Affiliation         string `json:"affiliation"`
	Title               string `json:"title"`
	PublicationYear     string `json:"publication_year"`
	JournalName         string `json:"journal_name"`
	FirstAuthor         string `json:"first_author"`
	CorrespondingAuthor string `json:"corresponding_author"`
	AuthorList          string `json:"author_list"`
	Volume              string `json:"volume"`
	Issue               string `json:"issue"`
	Page                string `json:"page"`
	DOI                 string `json:"doi"`
	PDFFileName         string `json:"pdf_file_name"`
}

// SearchAuthorPapers sucht Autorzeilen über Namensvarianten
// (Teilstring, case-insensitiv) oder den exakten verknüpften Namen und
// verbindet sie mit den Paper-Spalten. Duplikate werden entfernt.
func (s *Store) SearchAuthorPapers(ctx context.Context, nameVariants []string, linkedName string) ([]AuthorPaperRow, error) {
	var conds []string
	var args []any
	for _, v := range nameVariants {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		conds = append(conds, "LOWER(a.author) LIKE LOWER(?)")
		args = append(args, "%"+v+"%")
	}
	if linkedName != "" {
		conds = append(conds, "a.identity_name = ?")
		args = append(args, linkedName)
	}
	if len(conds) == 0 {
		return nil, nil
	}

	query := `
		SELECT a.author, a.identity_id, a.identity_name, a.role, a.affiliation,
		       c.title, c.publication_year, c.journal_name, c.first_author,
		       c.corresponding_author, c.author_list, c.volume, c.issue,
		       c.page, c.doi, a.pdf_file_name
		FROM paper_authors a
		LEFT JOIN papers c ON a.pdf_file_name = c.pdf_file_name
		WHERE ` + strings.Join(conds, " OR ") + `
		ORDER BY c.publication_year, c.title, a.author, a.role`

	var rows []AuthorPaperRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	seen := make(map[AuthorPaperRow]bool, len(rows))
	deduped := rows[:0]
	for _, r := range rows {
		if seen[r] {
			continue
		}
		seen[r] = true
		deduped = append(deduped, r)
	}
	return deduped, nil
}

// AuthorGroup fasst alle Affiliationen einer Autoren-Schreibweise zusammen
// (Eingabe des Batch-Abgleichs).
type AuthorGroup struct {
	Author       string
	Affiliations string
}

// ListAuthorGroups liefert alle Autoren-Schreibweisen mit ihren
// Affiliationen, alphabetisch, optional begrenzt.
func (s *Store) ListAuthorGroups(ctx context.Context, limit int) ([]AuthorGroup, error) {
	q := s.db.WithContext(ctx).Model(&models.AuthorRecord{}).
		Select("author AS author, GROUP_CONCAT(affiliation, ' | ') AS affiliations").
		Where("author <> ''").
		Group("author").
		Order("author")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var groups []AuthorGroup
	err := q.Scan(&groups).Error
	return groups, err
}

// ProcessedAuthors liefert die Autorennamen, für die bereits ein
// Batch-Abgleichsergebnis existiert.
func (s *Store) ProcessedAuthors(ctx context.Context) (map[string]bool, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&models.MatchResult{}).Pluck("author", &names).Error
	if err != nil {
		return nil, err
	}
	processed := make(map[string]bool, len(names))
	for _, n := range names {
		processed[n] = true
	}
	return processed, nil
}

// SaveMatchResult persistiert ein Ergebnis des Batch-Abgleichs.
func (s *Store) SaveMatchResult(ctx context.Context, result *models.MatchResult) error {
	return s.db.WithContext(ctx).Create(result).Error
}
