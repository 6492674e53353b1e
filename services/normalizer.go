package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"paper-intake/models"

	"go.uber.org/zap"
)

// Rollen eines Autors auf einem Paper, geordnet nach Priorität.
const (
	RoleFirst         = "FIRST_AUTHOR"
	RoleCorresponding = "CORRESPONDING_AUTHOR"
	RoleCo            = "CO_AUTHOR"
)

var rolePriority = map[string]int{
	RoleFirst:         1,
	RoleCorresponding: 2,
	RoleCo:            3,
}

// Feldnamen der Extraktions-Registry, die der Normalizer kennt.
const (
	FieldTitle             = "TITLE"
	FieldAuthorList        = "AUTHOR_LIST"
	FieldAffiliationList   = "AFFILIATION_LIST"
	FieldFirstAuthor       = "FIRST_AUTHOR"
	FieldCorresponding     = "CORRESPONDING_AUTHOR"
	FieldKeywords          = "KEYWORDS"
	FieldDateMetadata      = "DATE_METADATA"
	FieldBibliography      = "BIBLIOGRAPHY_INFORMATION"
	FieldJournalName       = "JOURNAL_NAME"
	FieldPublicationYear   = "PUBLICATION_YEAR"
	FieldVolume            = "VOLUME"
	FieldIssue             = "ISSUE"
	FieldPage              = "PAGE"
	FieldDOI               = "DOI"
	FieldAuthorAffiliation = "AUTHOR_AFFILIATION"
)

// authorAffiliation ist ein Eintrag der strukturierten AUTHOR_AFFILIATION-
// Antwort des Modells.
type authorAffiliation struct {
	Author      string `json:"AUTHOR"`
	Affiliation string `json:"AFFILIATION"`
}

// Normalizer formt Extraktionsergebnisse in Paper- und Autor-Datensätze um.
type Normalizer struct {
	Logger *zap.Logger
}

// NewNormalizer erstellt einen neuen Normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{Logger: logger}
}

// Normalize baut aus einem Extraktionslauf den PaperRecord und die
// Autor/Affiliation-Zeilen. CO_AUTHOR wird aus AUTHOR_LIST minus Erst- und
// Korrespondenzautoren abgeleitet; pro Autor und Affiliation entsteht eine
// Zeile. Ein Autor ohne Affiliationseintrag erzeugt keine Zeile. Eine nicht
// parsbare AUTHOR_AFFILIATION-Struktur ist ein harter Fehler.
func (n *Normalizer) Normalize(results []ExtractionResult) (*models.PaperRecord, []models.AuthorRecord, error) {
	fields := make(map[string]string, len(results))
	for _, r := range results {
		fields[r.Field] = r.Parsed
	}

	all := splitNames(fieldValue(fields, FieldAuthorList))
	first := splitNames(fieldValue(fields, FieldFirstAuthor))
	corresponding := splitNames(fieldValue(fields, FieldCorresponding))

	coAuthors := deriveCoAuthors(all, first, corresponding)
	roles := deriveRoles(first, corresponding, coAuthors)

	paper := &models.PaperRecord{
		Title:               fields[FieldTitle],
		AuthorList:          fields[FieldAuthorList],
		AffiliationList:     fields[FieldAffiliationList],
		FirstAuthor:         fields[FieldFirstAuthor],
		CorrespondingAuthor: fields[FieldCorresponding],
		CoAuthor:            strings.Join(coAuthors, "; "),
		Keywords:            fields[FieldKeywords],
		DateMetadata:        fields[FieldDateMetadata],
		Bibliography:        fields[FieldBibliography],
		JournalName:         fields[FieldJournalName],
		PublicationYear:     fields[FieldPublicationYear],
		Volume:              fields[FieldVolume],
		Issue:               fields[FieldIssue],
		Page:                fields[FieldPage],
		DOI:                 fields[FieldDOI],
	}

	authors, err := n.buildAuthorRows(fields[FieldAuthorAffiliation], roles)
	if err != nil {
		return nil, nil, err
	}
	return paper, authors, nil
}

// buildAuthorRows dekodiert die AUTHOR_AFFILIATION-Struktur und spaltet
// mehrfache Affiliationen (";"-getrennt) in eigene Zeilen auf.
func (n *Normalizer) buildAuthorRows(raw string, roles map[string]string) ([]models.AuthorRecord, error) {
	if isSentinel(raw) || strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var entries []authorAffiliation
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("author_affiliation nicht parsbar: %w", err)
	}

	var rows []models.AuthorRecord
	for _, e := range entries {
		author := strings.TrimSpace(e.Author)
		if author == "" {
			continue
		}
		for _, aff := range strings.Split(e.Affiliation, ";") {
			aff = strings.TrimSpace(aff)
			if aff == "" {
				continue
			}
			rows = append(rows, models.AuthorRecord{
				Author:      author,
				Affiliation: aff,
				Role:        roles[author],
			})
		}
	}
	return rows, nil
}

// deriveCoAuthors bildet AUTHOR_LIST minus Erst- und Korrespondenzautoren,
// lexikografisch sortiert.
func deriveCoAuthors(all, first, corresponding []string) []string {
	excluded := make(map[string]bool, len(first)+len(corresponding))
	for _, name := range first {
		excluded[name] = true
	}
	for _, name := range corresponding {
		excluded[name] = true
	}

	var co []string
	seen := make(map[string]bool)
	for _, name := range all {
		if excluded[name] || seen[name] {
			continue
		}
		seen[name] = true
		co = append(co, name)
	}
	sort.Strings(co)
	return co
}

// deriveRoles weist jedem Autor seine Rollen zu. Hält ein Autor bereits
// FIRST oder CORRESPONDING, wird CO_AUTHOR verworfen; mehrere Rollen werden
// nach Priorität sortiert mit "; " verbunden.
func deriveRoles(first, corresponding, co []string) map[string]string {
	sets := make(map[string]map[string]bool)
	add := func(names []string, role string) {
		for _, name := range names {
			if sets[name] == nil {
				sets[name] = make(map[string]bool)
			}
			sets[name][role] = true
		}
	}
	add(first, RoleFirst)
	add(corresponding, RoleCorresponding)
	add(co, RoleCo)

	roles := make(map[string]string, len(sets))
	for name, set := range sets {
		if len(set) > 1 {
			delete(set, RoleCo)
		}
		list := make([]string, 0, len(set))
		for role := range set {
			list = append(list, role)
		}
		sort.Slice(list, func(i, j int) bool {
			return rolePriority[list[i]] < rolePriority[list[j]]
		})
		roles[name] = strings.Join(list, "; ")
	}
	return roles
}

// splitNames zerlegt eine ";"-getrennte Namensliste und entfernt leere
// Einträge.
func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}

// fieldValue behandelt die Sentinels NO_TEXT und ERROR wie leere Werte,
// damit sie nicht als Autorennamen durchrutschen.
func fieldValue(fields map[string]string, key string) string {
	v := fields[key]
	if isSentinel(v) {
		return ""
	}
	return v
}

func isSentinel(v string) bool {
	return v == "NO_TEXT" || v == "ERROR"
}
