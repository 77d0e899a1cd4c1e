package comorbidity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
)

func diag(code string) extractor.Diagnosis {
	return extractor.Diagnosis{EncounterID: "e1", Code: code, ICDVersion: 9}
}

func TestDefaultCatalogHasSeventeenCategories(t *testing.T) {
	cat := Default()
	if got := len(cat.Categories()); got != 17 {
		t.Fatalf("expected 17 categories, got %d", got)
	}
}

func TestCategoryLongestPrefixWins(t *testing.T) {
	cat := Default()

	// 4373 is peripheral vascular even though 437 is cerebrovascular
	name, weight, ok := cat.Category("4373")
	if !ok || name != "peripheral_vascular_disease" || weight != 1 {
		t.Fatalf("expected peripheral_vascular_disease/1, got %s/%d ok=%v", name, weight, ok)
	}
	name, _, ok = cat.Category("4370")
	if !ok || name != "cerebrovascular_disease" {
		t.Fatalf("expected cerebrovascular_disease for 4370, got %s ok=%v", name, ok)
	}

	if _, _, ok := cat.Category("78650"); ok {
		t.Fatal("expected no category for chest pain")
	}
}

func TestScoreDedupesCategories(t *testing.T) {
	cat := Default()

	// two CHF codes (1), one diabetes-with-complication (2), one metastatic (6)
	score := cat.Score([]extractor.Diagnosis{
		diag("4280"), diag("42822"), diag("2506"), diag("1975"),
	})
	if score != 9 {
		t.Fatalf("expected score 9, got %d", score)
	}
}

func TestScoreSkipsNonICD9(t *testing.T) {
	cat := Default()
	score := cat.Score([]extractor.Diagnosis{
		{EncounterID: "e1", Code: "I50", ICDVersion: 10},
		diag("412"),
	})
	if score != 1 {
		t.Fatalf("expected score 1, got %d", score)
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "charlson.yaml")
	content := "categories:\n" +
		"  - name: test_cat\n" +
		"    weight: 2\n" +
		"    prefixes: [\"410\"]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score := cat.Score([]extractor.Diagnosis{diag("41071")}); score != 2 {
		t.Fatalf("expected score 2 from file catalog, got %d", score)
	}
}

func TestLoadRejectsDuplicatePrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	content := "categories:\n" +
		"  - name: a\n" +
		"    weight: 1\n" +
		"    prefixes: [\"410\"]\n" +
		"  - name: b\n" +
		"    weight: 2\n" +
		"    prefixes: [\"410\"]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected duplicate-prefix error")
	}
}
