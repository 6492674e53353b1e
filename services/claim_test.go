package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"paper-intake/models"
	"paper-intake/storage"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	return store
}

func seedAuthorRow(t *testing.T, store *storage.Store, row models.AuthorRecord) {
	t.Helper()
	if err := store.DB().Create(&row).Error; err != nil {
		t.Fatalf("seed author row: %v", err)
	}
}

func seedIdentity(t *testing.T, store *storage.Store, identity models.Identity) {
	t.Helper()
	if err := store.DB().Create(&identity).Error; err != nil {
		t.Fatalf("seed identity: %v", err)
	}
}

func TestClaimAutoLinksToSelfWithoutCandidates(t *testing.T) {
	store := newTestStore(t)
	claims := NewClaimService(store, zap.NewNop())
	seedAuthorRow(t, store, models.AuthorRecord{
		PDFFileName: "abc.pdf", Author: "Kim Minsu", Affiliation: "Chonnam National University",
	})

	outcome, err := claims.Claim(context.Background(), ClaimRequest{
		PDFFileName: "abc.pdf",
		Author:      "Kim Minsu",
		Affiliation: "Chonnam National University",
		ActorID:     "E100",
		ActorName:   "김민수",
	})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if outcome.State != ClaimAutoLinked {
		t.Fatalf("state = %s, want %s", outcome.State, ClaimAutoLinked)
	}
	if outcome.LinkedTo == nil || outcome.LinkedTo.ID != "E100" {
		t.Fatalf("linked to = %+v, want E100", outcome.LinkedTo)
	}

	row, err := store.FindAuthorRow(context.Background(), "abc.pdf", "Kim Minsu", "Chonnam National University")
	if err != nil {
		t.Fatalf("FindAuthorRow: %v", err)
	}
	if row.IdentityID != "E100" || row.IdentityName != "김민수" {
		t.Errorf("row identity = %s/%s, want E100/김민수", row.IdentityID, row.IdentityName)
	}
	if row.ModID != "E100" {
		t.Errorf("mod_id = %s, want E100", row.ModID)
	}
}

func TestClaimAutoLinksToSingleCandidate(t *testing.T) {
	store := newTestStore(t)
	claims := NewClaimService(store, zap.NewNop())
	seedAuthorRow(t, store, models.AuthorRecord{
		PDFFileName: "abc.pdf", Author: "Kim Minsu", Affiliation: "Dept. of Physics",
	})
	seedIdentity(t, store, models.Identity{ID: "E200", Name: "김민수"})

	outcome, err := claims.Claim(context.Background(), ClaimRequest{
		PDFFileName: "abc.pdf",
		Author:      "Kim Minsu",
		Affiliation: "Dept. of Physics",
		ActorID:     "E999",
		ActorName:   "김민수",
	})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if outcome.State != ClaimAutoLinked {
		t.Fatalf("state = %s, want %s", outcome.State, ClaimAutoLinked)
	}
	if outcome.LinkedTo.ID != "E200" {
		t.Errorf("linked to = %s, want registered identity E200", outcome.LinkedTo.ID)
	}
}

func TestClaimAmbiguousThenResolve(t *testing.T) {
	store := newTestStore(t)
	claims := NewClaimService(store, zap.NewNop())
	seedAuthorRow(t, store, models.AuthorRecord{
		PDFFileName: "abc.pdf", Author: "Kim Minsu", Affiliation: "Dept. of Physics",
	})
	seedIdentity(t, store, models.Identity{ID: "E300", Name: "김민수"})
	seedIdentity(t, store, models.Identity{ID: "E301", Name: "김민수"})

	req := ClaimRequest{
		PDFFileName: "abc.pdf",
		Author:      "Kim Minsu",
		Affiliation: "Dept. of Physics",
		ActorID:     "E300",
		ActorName:   "김민수",
	}
	outcome, err := claims.Claim(context.Background(), req)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if outcome.State != ClaimAmbiguous {
		t.Fatalf("state = %s, want %s", outcome.State, ClaimAmbiguous)
	}
	if len(outcome.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(outcome.Candidates))
	}

	// Zeile bleibt unverknüpft, bis der Aufrufer wählt
	row, _ := store.FindAuthorRow(context.Background(), "abc.pdf", "Kim Minsu", "Dept. of Physics")
	if !IsUnlinked(row.IdentityID) {
		t.Fatalf("row linked to %s before resolution", row.IdentityID)
	}

	resolved, err := claims.Resolve(context.Background(), req, "E301")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.State != ClaimLinked || resolved.LinkedTo.ID != "E301" {
		t.Fatalf("resolved = %+v, want LINKED to E301", resolved)
	}

	row, _ = store.FindAuthorRow(context.Background(), "abc.pdf", "Kim Minsu", "Dept. of Physics")
	if row.IdentityID != "E301" {
		t.Errorf("row identity = %s, want E301", row.IdentityID)
	}
}

func TestResolveRejectsIdentityOutsideCandidateSet(t *testing.T) {
	store := newTestStore(t)
	claims := NewClaimService(store, zap.NewNop())
	seedAuthorRow(t, store, models.AuthorRecord{
		PDFFileName: "abc.pdf", Author: "Kim Minsu", Affiliation: "Dept. of Physics",
	})
	seedIdentity(t, store, models.Identity{ID: "E300", Name: "김민수"})
	seedIdentity(t, store, models.Identity{ID: "E301", Name: "김민수"})
	// Nicht im Kandidatenkreis: anderer Name.
	seedIdentity(t, store, models.Identity{ID: "E999", Name: "박철수"})

	req := ClaimRequest{
		PDFFileName: "abc.pdf",
		Author:      "Kim Minsu",
		Affiliation: "Dept. of Physics",
		ActorID:     "E300",
		ActorName:   "김민수",
	}
	_, err := claims.Resolve(context.Background(), req, "E999")
	if !errors.Is(err, ErrCandidateMismatch) {
		t.Fatalf("err = %v, want ErrCandidateMismatch", err)
	}

	// Die Zeile bleibt unverknüpft.
	row, findErr := store.FindAuthorRow(context.Background(), "abc.pdf", "Kim Minsu", "Dept. of Physics")
	if findErr != nil {
		t.Fatalf("FindAuthorRow: %v", findErr)
	}
	if !IsUnlinked(row.IdentityID) {
		t.Errorf("row linked to %s after rejected resolution", row.IdentityID)
	}
}

func TestClaimRejectsAlreadyLinkedRow(t *testing.T) {
	store := newTestStore(t)
	claims := NewClaimService(store, zap.NewNop())
	seedAuthorRow(t, store, models.AuthorRecord{
		PDFFileName: "abc.pdf", Author: "Kim Minsu", Affiliation: "Dept. of Physics",
		IdentityID: "E400", IdentityName: "김민수",
	})

	outcome, err := claims.Claim(context.Background(), ClaimRequest{
		PDFFileName: "abc.pdf",
		Author:      "Kim Minsu",
		Affiliation: "Dept. of Physics",
		ActorID:     "E500",
		ActorName:   "김민수",
	})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if outcome.State != ClaimLinked {
		t.Errorf("state = %s, want %s", outcome.State, ClaimLinked)
	}

	// Die bestehende Verknüpfung darf nicht überschrieben worden sein.
	row, _ := store.FindAuthorRow(context.Background(), "abc.pdf", "Kim Minsu", "Dept. of Physics")
	if row.IdentityID != "E400" {
		t.Errorf("row identity = %s, want E400", row.IdentityID)
	}
}

func TestClaimMissingRowFails(t *testing.T) {
	store := newTestStore(t)
	claims := NewClaimService(store, zap.NewNop())

	_, err := claims.Claim(context.Background(), ClaimRequest{
		PDFFileName: "missing.pdf",
		Author:      "Nobody",
		Affiliation: "Nowhere",
		ActorID:     "E600",
		ActorName:   "아무개",
	})
	if err == nil {
		t.Error("expected error for missing author row")
	}
}
