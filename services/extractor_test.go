package services

import (
	"context"
	"fmt"
	"os"
	"testing"

	"go.uber.org/zap"
)

// fakeLLM beantwortet Feld-Anfragen aus einer Tabelle und zählt Aufrufe.
type fakeLLM struct {
	answers map[string]string
	calls   int
}

func (f *fakeLLM) SendFieldRequest(_ context.Context, field, _, _ string) (string, string) {
	f.calls++
	if v, ok := f.answers[field]; ok {
		return v, "raw:" + v
	}
	return "ERROR", "no answer configured"
}

func (f *fakeLLM) Invoke(_ context.Context, prompt string) (string, error) {
	f.calls++
	return "", fmt.Errorf("invoke not configured for %q", prompt)
}

func testSpecs() []FieldSpec {
	return []FieldSpec{
		{Name: "TITLE", Instruction: "extract the title"},
		{Name: "DOI", Instruction: "extract the doi"},
		{Name: "VOLUME", Instruction: "extract the volume"},
	}
}

func TestExtractAllEmptyBlobSkipsModel(t *testing.T) {
	llm := &fakeLLM{}
	extractor := NewFieldExtractor(testSpecs(), llm, zap.NewNop())

	results := extractor.ExtractAll(context.Background(), "  \n\t")

	if llm.calls != 0 {
		t.Errorf("model calls = %d, want 0", llm.calls)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for _, r := range results {
		if r.Parsed != "NO_TEXT" {
			t.Errorf("field %s parsed = %q, want NO_TEXT", r.Field, r.Parsed)
		}
	}
	if CountNoText(results) != 3 {
		t.Errorf("CountNoText = %d, want 3", CountNoText(results))
	}
}

func TestExtractAllMixedResults(t *testing.T) {
	llm := &fakeLLM{answers: map[string]string{
		"TITLE": "Deep Learning for Fish Counting",
		"DOI":   "10.1234/fish.2023",
	}}
	extractor := NewFieldExtractor(testSpecs(), llm, zap.NewNop())

	results := extractor.ExtractAll(context.Background(), "some extracted text")

	if llm.calls != 3 {
		t.Errorf("model calls = %d, want 3", llm.calls)
	}
	want := map[string]string{
		"TITLE":  "Deep Learning for Fish Counting",
		"DOI":    "10.1234/fish.2023",
		"VOLUME": "ERROR",
	}
	for _, r := range results {
		if r.Parsed != want[r.Field] {
			t.Errorf("field %s parsed = %q, want %q", r.Field, r.Parsed, want[r.Field])
		}
	}
	if CountNoText(results) != 0 {
		t.Errorf("CountNoText = %d, want 0", CountNoText(results))
	}
}

func TestLoadFieldSpecsKeepsOrder(t *testing.T) {
	path := t.TempDir() + "/fields.yaml"
	content := "fields:\n  - name: B\n    instruction: second letter\n  - name: A\n    instruction: first letter\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	specs, err := LoadFieldSpecs(path)
	if err != nil {
		t.Fatalf("LoadFieldSpecs: %v", err)
	}
	if len(specs) != 2 || specs[0].Name != "B" || specs[1].Name != "A" {
		t.Errorf("specs = %+v, want B then A", specs)
	}
}

func TestLoadFieldSpecsRejectsEmptyRegistry(t *testing.T) {
	path := t.TempDir() + "/fields.yaml"
	if err := os.WriteFile(path, []byte("fields: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFieldSpecs(path); err == nil {
		t.Error("expected error for empty registry")
	}
}
