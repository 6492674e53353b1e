package services

import (
	"context"
	"fmt"
	"strings"

	"paper-intake/config"
	"paper-intake/models"
	"paper-intake/storage"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const classifyPrompt = `Determine whether the following romanized personal name is a Korean name.
Answer with exactly YES or NO and nothing else.

Name: %s`

const translatePrompt = `The following is a romanized Korean personal name. The last token is the family name.
Convert the name to Hangul, family name first followed by the given name, written without spaces.
Output only the Hangul name and nothing else.

Name: %s`

// Resolver ordnet Autoren-Schreibweisen registrierten Identitäten zu:
// per Namenssuche, per LLM-Klassifikation/-Transliteration und per
// eingeschränktem Fuzzy-Abgleich.
type Resolver struct {
	Config *config.Config
	Store  *storage.Store
	LLM    LanguageModel
	Logger *zap.Logger
}

// NewResolver erstellt einen neuen Resolver.
func NewResolver(cfg *config.Config, store *storage.Store, lm LanguageModel, logger *zap.Logger) *Resolver {
	return &Resolver{Config: cfg, Store: store, LLM: lm, Logger: logger}
}

// SearchAuthors sucht Autorzeilen über Namensvarianten (Teilstring) oder
// den exakt verknüpften Namen und liefert sie mit den Paper-Spalten.
func (r *Resolver) SearchAuthors(ctx context.Context, nameVariants []string, linkedName string) ([]storage.AuthorPaperRow, error) {
	normalized := make([]string, 0, len(nameVariants))
	for _, v := range nameVariants {
		v = norm.NFC.String(strings.TrimSpace(v))
		if v != "" {
			normalized = append(normalized, v)
		}
	}
	return r.Store.SearchAuthorPapers(ctx, normalized, strings.TrimSpace(linkedName))
}

// IsKoreanName klassifiziert eine romanisierte Schreibweise per LLM.
func (r *Resolver) IsKoreanName(ctx context.Context, name string) (bool, error) {
	answer, err := r.LLM.Invoke(ctx, fmt.Sprintf(classifyPrompt, name))
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(answer)), "YES"), nil
}

// TranslateToKorean überträgt eine romanisierte Schreibweise in Hangul
// (Familienname zuerst, ohne Leerzeichen).
func (r *Resolver) TranslateToKorean(ctx context.Context, name string) (string, error) {
	answer, err := r.LLM.Invoke(ctx, fmt.Sprintf(translatePrompt, name))
	if err != nil {
		return "", err
	}
	return norm.NFC.String(strings.TrimSpace(answer)), nil
}

// IdentityMatch ist das Ergebnis des Fuzzy-Abgleichs gegen eine Identität.
type IdentityMatch struct {
	Identity   models.Identity `json:"identity"`
	Similarity float64         `json:"similarity"`
	Exact      bool            `json:"exact"`
}

// MatchIdentity vergleicht einen Hangul-Namen mit allen Kandidaten.
// Kandidaten kommen nur durch das Gate, wenn das erste Zeichen
// (Familienname) übereinstimmt und der Vorname gleich lang ist; unter den
// verbleibenden gewinnt die höchste Ähnlichkeit, bei Gleichstand der
// zuerst gesehene Kandidat. Ohne Kandidaten hinter dem Gate ist das
// Ergebnis nil.
func MatchIdentity(koreanName string, candidates []models.Identity) *IdentityMatch {
	name := []rune(norm.NFC.String(strings.TrimSpace(koreanName)))
	if len(name) < 2 {
		return nil
	}
	family, given := name[0], name[1:]

	var best *IdentityMatch
	for _, cand := range candidates {
		candName := []rune(norm.NFC.String(strings.TrimSpace(cand.Name)))
		if len(candName) < 2 {
			continue
		}
		if candName[0] != family || len(candName)-1 != len(given) {
			continue
		}
		ratio := Ratio(string(name), string(candName))
		if best == nil || ratio > best.Similarity {
			best = &IdentityMatch{Identity: cand, Similarity: ratio, Exact: ratio == 1.0}
		}
	}
	return best
}

// AuthorResolution ist das Ergebnis der Auflösung einer einzelnen
// Autoren-Schreibweise.
type AuthorResolution struct {
	Author     string         `json:"author"`
	Korean     bool           `json:"korean"`
	KoreanName string         `json:"korean_name,omitempty"`
	Match      *IdentityMatch `json:"match,omitempty"`
}

// ResolveAuthor klassifiziert, transliteriert und matcht eine einzelne
// Schreibweise gegen alle registrierten Identitäten.
func (r *Resolver) ResolveAuthor(ctx context.Context, author string) (*AuthorResolution, error) {
	res := &AuthorResolution{Author: author}

	korean, err := r.IsKoreanName(ctx, author)
	if err != nil {
		return nil, fmt.Errorf("klassifikation von %q: %w", author, err)
	}
	res.Korean = korean
	if !korean {
		return res, nil
	}

	koreanName, err := r.TranslateToKorean(ctx, author)
	if err != nil {
		return nil, fmt.Errorf("transliteration von %q: %w", author, err)
	}
	if len([]rune(koreanName)) < 2 {
		return res, nil
	}
	res.KoreanName = koreanName

	identities, err := r.Store.ListIdentities(ctx)
	if err != nil {
		return nil, err
	}
	res.Match = MatchIdentity(koreanName, identities)
	return res, nil
}

// MatchAuthorsBatch läuft über alle noch nicht verarbeiteten
// Autoren-Schreibweisen, deren Affiliation zur Heimat-Institution gehört,
// und persistiert pro Name ein Abgleichsergebnis. LLM-Fehler bei einzelnen
// Namen werden protokolliert und übersprungen.
func (r *Resolver) MatchAuthorsBatch(ctx context.Context, limit int) (processed int, err error) {
	groups, err := r.Store.ListAuthorGroups(ctx, limit)
	if err != nil {
		return 0, err
	}
	done, err := r.Store.ProcessedAuthors(ctx)
	if err != nil {
		return 0, err
	}
	identities, err := r.Store.ListIdentities(ctx)
	if err != nil {
		return 0, err
	}

	home := strings.ToLower(r.Config.HomeAffiliation)
	for _, g := range groups {
		if done[g.Author] {
			continue
		}
		if home != "" && !strings.Contains(strings.ToLower(g.Affiliations), home) {
			continue
		}

		log := r.Logger.With(zap.String("author", g.Author))

		korean, err := r.IsKoreanName(ctx, g.Author)
		if err != nil {
			log.Warn("Klassifikation fehlgeschlagen, Name wird übersprungen.", zap.Error(err))
			continue
		}

		result := models.MatchResult{Author: g.Author}
		if korean {
			koreanName, err := r.TranslateToKorean(ctx, g.Author)
			if err != nil {
				log.Warn("Transliteration fehlgeschlagen, Name wird übersprungen.", zap.Error(err))
				continue
			}
			if len([]rune(koreanName)) >= 2 {
				result.KoreanName = koreanName
				if m := MatchIdentity(koreanName, identities); m != nil {
					result.MatchedID = m.Identity.ID
					result.MatchedName = m.Identity.Name
					result.Similarity = m.Similarity
					result.Exact = m.Exact
				}
			}
		}

		if err := r.Store.SaveMatchResult(ctx, &result); err != nil {
			return processed, fmt.Errorf("abgleichsergebnis für %q speichern: %w", g.Author, err)
		}
		processed++
		log.Info("Autor abgeglichen.",
			zap.String("korean_name", result.KoreanName),
			zap.String("matched_id", result.MatchedID),
			zap.Float64("similarity", result.Similarity))
	}
	return processed, nil
}
