package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"paper-intake/models"
	"paper-intake/storage"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrVariantExists: die Schreibweise ist bereits hinterlegt.
	ErrVariantExists = errors.New("namensvariante bereits vorhanden")
	// ErrVariantSlotsFull: alle vier Varianten-Slots sind belegt.
	ErrVariantSlotsFull = errors.New("alle namensvarianten-slots sind belegt")
)

// IdentityService pflegt Identitäten und ihre Namensvarianten.
type IdentityService struct {
	Store  *storage.Store
	Logger *zap.Logger
}

// NewIdentityService erstellt einen neuen IdentityService.
func NewIdentityService(store *storage.Store, logger *zap.Logger) *IdentityService {
	return &IdentityService{Store: store, Logger: logger}
}

// AddNameVariant trägt eine neue Schreibweise in den ersten freien der vier
// Slots ein. Duplikate (auch gegen den Hauptnamen) und volle Slots sind
// Fehler.
func (s *IdentityService) AddNameVariant(ctx context.Context, identityID, variant, actor string) (*models.Identity, error) {
	variant = norm.NFC.String(strings.TrimSpace(variant))
	if variant == "" {
		return nil, errors.New("leere namensvariante")
	}

	identity, err := s.Store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("identität %s laden: %w", identityID, err)
	}

	if !fillVariantSlot(identity, variant) {
		if hasVariant(identity, variant) {
			return nil, ErrVariantExists
		}
		return nil, ErrVariantSlotsFull
	}
	if err := s.saveVariants(ctx, identity, actor); err != nil {
		return nil, err
	}
	return identity, nil
}

// SyncVariants übernimmt alle verknüpften Autoren-Schreibweisen der
// Identität in freie Varianten-Slots und gibt die Anzahl neuer Einträge
// zurück. Volle Slots brechen nicht ab, übrige Schreibweisen bleiben
// einfach liegen.
func (s *IdentityService) SyncVariants(ctx context.Context, identityID, actor string) (int, error) {
	identity, err := s.Store.GetIdentity(ctx, identityID)
	if err != nil {
		return 0, fmt.Errorf("identität %s laden: %w", identityID, err)
	}
	names, err := s.Store.DistinctLinkedAuthors(ctx, identityID)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, name := range names {
		name = norm.NFC.String(strings.TrimSpace(name))
		if name == "" || hasVariant(identity, name) {
			continue
		}
		if !fillVariantSlot(identity, name) {
			break
		}
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := s.saveVariants(ctx, identity, actor); err != nil {
		return 0, err
	}
	return added, nil
}

// SyncAllVariants führt SyncVariants für jede registrierte Identität aus
// (nächtlicher Cron-Job).
func (s *IdentityService) SyncAllVariants(ctx context.Context, actor string) (int, error) {
	identities, err := s.Store.ListIdentities(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, identity := range identities {
		added, err := s.SyncVariants(ctx, identity.ID, actor)
		if err != nil {
			s.Logger.Warn("Varianten-Sync fehlgeschlagen.",
				zap.String("identity_id", identity.ID), zap.Error(err))
			continue
		}
		total += added
	}
	return total, nil
}

func (s *IdentityService) saveVariants(ctx context.Context, identity *models.Identity, actor string) error {
	return s.Store.DB().WithContext(ctx).Model(&models.Identity{}).
		Where("id = ?", identity.ID).
		Updates(map[string]any{
			"name_variant1": identity.NameVariant1,
			"name_variant2": identity.NameVariant2,
			"name_variant3": identity.NameVariant3,
			"name_variant4": identity.NameVariant4,
			"mod_dt":        time.Now(),
			"mod_id":        actor,
		}).Error
}

// NameVariants gibt Hauptname und belegte Varianten-Slots zurück (Eingabe
// der Autorensuche).
func NameVariants(identity *models.Identity) []string {
	names := []string{identity.Name}
	for _, slot := range identity.Variants() {
		if *slot != "" {
			names = append(names, *slot)
		}
	}
	return names
}

func hasVariant(identity *models.Identity, name string) bool {
	if strings.EqualFold(identity.Name, name) {
		return true
	}
	for _, slot := range identity.Variants() {
		if strings.EqualFold(*slot, name) {
			return true
		}
	}
	return false
}

// fillVariantSlot belegt den ersten freien Slot; false bedeutet Duplikat
// oder kein freier Slot.
func fillVariantSlot(identity *models.Identity, name string) bool {
	if hasVariant(identity, name) {
		return false
	}
	for _, slot := range identity.Variants() {
		if *slot == "" {
			*slot = name
			return true
		}
	}
	return false
}
