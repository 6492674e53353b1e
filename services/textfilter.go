package services

import (
	"encoding/json"
	"sort"
	"strings"

	"paper-intake/models"
)

// FilterOptions steuert, welche Layout-Blöcke in den Extraktionstext
// einfließen. TargetPages hat Vorrang vor MaxPageNumber (0 = unbegrenzt);
// ein leeres AllowedTypes lässt alle Typen durch.
type FilterOptions struct {
	TargetPages   []int
	MaxPageNumber int
	AllowedTypes  []string
}

// FilterTextBlocks validiert jeden Block, wählt Seiten und Typen aus und
// verbindet die Texte mit Zeilenumbrüchen. Zurück kommen der kombinierte
// Text und die sortierte Liste aller im Dokument beobachteten Block-Typen.
// Ungültige Blöcke (Seite keine Ganzzahl, Text kein String) werden still
// übersprungen.
func FilterTextBlocks(blocks []models.TextBlock, opts FilterOptions) (string, []string) {
	targetPages := make(map[int]bool, len(opts.TargetPages))
	for _, p := range opts.TargetPages {
		targetPages[p] = true
	}
	allowed := make(map[string]bool, len(opts.AllowedTypes))
	for _, t := range opts.AllowedTypes {
		allowed[t] = true
	}

	typeSet := make(map[string]bool)
	var parts []string

	for _, b := range blocks {
		typeSet[blockType(b)] = true

		page, ok := asInt(b.PageNumber)
		if !ok {
			continue
		}
		text, ok := b.Text.(string)
		if !ok {
			continue
		}

		if len(opts.TargetPages) > 0 {
			if !targetPages[page] {
				continue
			}
		} else if opts.MaxPageNumber > 0 && page > opts.MaxPageNumber {
			continue
		}

		if len(allowed) > 0 && !allowed[blockType(b)] {
			continue
		}

		parts = append(parts, text)
	}

	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)

	return strings.Join(parts, "\n"), types
}

func blockType(b models.TextBlock) string {
	if s, ok := b.Type.(string); ok {
		return s
	}
	return "Unknown"
}

// asInt akzeptiert nur ganzzahlige Seitennummern.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case float64:
		if n == float64(int64(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}
