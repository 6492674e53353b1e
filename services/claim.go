package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"paper-intake/models"
	"paper-intake/storage"

	"go.uber.org/zap"
)

// ClaimState ist der Zustand einer Autorzeile im Claim-Ablauf.
type ClaimState string

const (
	// ClaimUnlinked: die Zeile ist keiner Identität zugeordnet.
	ClaimUnlinked ClaimState = "UNLINKED"
	// ClaimAutoLinked: die Zuordnung war eindeutig und wurde geschrieben.
	ClaimAutoLinked ClaimState = "AUTO_LINKED"
	// ClaimAmbiguous: mehrere Namensvettern, der Aufrufer muss wählen.
	ClaimAmbiguous ClaimState = "AMBIGUOUS"
	// ClaimLinked: die Zeile ist (bereits oder nach Auswahl) zugeordnet.
	ClaimLinked ClaimState = "LINKED"
)

// ClaimRequest identifiziert die Autorzeile über ihren fachlichen
// Schlüssel und benennt den handelnden Nutzer.
type ClaimRequest struct {
	PDFFileName string `json:"pdf_file_name" binding:"required"`
	Author      string `json:"author" binding:"required"`
	Affiliation string `json:"affiliation" binding:"required"`
	ActorID     string `json:"actor_id" binding:"required"`
	ActorName   string `json:"actor_name" binding:"required"`
}

// ClaimOutcome beschreibt das Ergebnis eines Claim-Schritts.
type ClaimOutcome struct {
	State      ClaimState        `json:"state"`
	LinkedTo   *models.Identity  `json:"linked_to,omitempty"`
	Candidates []models.Identity `json:"candidates,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// ClaimService führt die Zustandsmaschine
// UNLINKED -> AUTO_LINKED / AMBIGUOUS -> LINKED aus.
type ClaimService struct {
	Store  *storage.Store
	Logger *zap.Logger
}

// NewClaimService erstellt einen neuen ClaimService.
func NewClaimService(store *storage.Store, logger *zap.Logger) *ClaimService {
	return &ClaimService{Store: store, Logger: logger}
}

// IsUnlinked prüft die Sentinel-Werte, die eine fehlende Zuordnung
// anzeigen.
func IsUnlinked(identityID string) bool {
	switch strings.ToLower(strings.TrimSpace(identityID)) {
	case "", "none", "nan", "nat":
		return true
	default:
		return false
	}
}

// Claim startet den Ablauf für eine Autorzeile. Bereits zugeordnete Zeilen
// werden abgewiesen. Gibt es unter dem Namen des Aufrufers keine oder genau
// eine registrierte Identität, wird sofort verknüpft; bei mehreren bleibt
// die Entscheidung beim Aufrufer (AMBIGUOUS).
func (s *ClaimService) Claim(ctx context.Context, req ClaimRequest) (*ClaimOutcome, error) {
	row, err := s.Store.FindAuthorRow(ctx, req.PDFFileName, req.Author, req.Affiliation)
	if err != nil {
		return nil, fmt.Errorf("autorzeile laden: %w", err)
	}
	if !IsUnlinked(row.IdentityID) {
		return &ClaimOutcome{
			State:   ClaimLinked,
			Message: fmt.Sprintf("bereits mit %s verknüpft", row.IdentityID),
		}, nil
	}

	candidates, err := s.Store.IdentitiesByName(ctx, req.ActorName)
	if err != nil {
		return nil, fmt.Errorf("kandidaten laden: %w", err)
	}

	switch len(candidates) {
	case 0:
		// Keine Namensvetter registriert: der Aufrufer selbst ist die
		// Zuordnung.
		self := models.Identity{ID: req.ActorID, Name: req.ActorName}
		if err := s.link(ctx, req, self); err != nil {
			return nil, err
		}
		return &ClaimOutcome{State: ClaimAutoLinked, LinkedTo: &self}, nil
	case 1:
		if err := s.link(ctx, req, candidates[0]); err != nil {
			return nil, err
		}
		return &ClaimOutcome{State: ClaimAutoLinked, LinkedTo: &candidates[0]}, nil
	default:
		return &ClaimOutcome{State: ClaimAmbiguous, Candidates: candidates}, nil
	}
}

// ErrCandidateMismatch: die gewählte Identität gehört nicht zu den
// Namensvettern des Aufrufers.
var ErrCandidateMismatch = errors.New("gewählte identität trägt nicht den namen des aufrufers")

// Resolve schließt einen AMBIGUOUS-Claim mit der gewählten Identität ab.
// Die Wahl ist nur gültig, wenn die Identität den Namen des Aufrufers
// trägt, also im AMBIGUOUS-Schritt als Kandidat angeboten wurde.
func (s *ClaimService) Resolve(ctx context.Context, req ClaimRequest, identityID string) (*ClaimOutcome, error) {
	row, err := s.Store.FindAuthorRow(ctx, req.PDFFileName, req.Author, req.Affiliation)
	if err != nil {
		return nil, fmt.Errorf("autorzeile laden: %w", err)
	}
	if !IsUnlinked(row.IdentityID) {
		return &ClaimOutcome{
			State:   ClaimLinked,
			Message: fmt.Sprintf("bereits mit %s verknüpft", row.IdentityID),
		}, nil
	}

	identity, err := s.Store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("identität %s laden: %w", identityID, err)
	}
	if identity.Name != req.ActorName {
		return nil, fmt.Errorf("identität %s: %w", identityID, ErrCandidateMismatch)
	}
	if err := s.link(ctx, req, *identity); err != nil {
		return nil, err
	}
	return &ClaimOutcome{State: ClaimLinked, LinkedTo: identity}, nil
}

func (s *ClaimService) link(ctx context.Context, req ClaimRequest, identity models.Identity) error {
	err := s.Store.LinkAuthorIdentity(ctx,
		req.PDFFileName, req.Author, req.Affiliation,
		identity.ID, identity.Name, req.ActorID)
	if err != nil {
		return err
	}
	s.Logger.Info("Autorzeile verknüpft.",
		zap.String("pdf", req.PDFFileName),
		zap.String("author", req.Author),
		zap.String("identity_id", identity.ID))
	return nil
}
