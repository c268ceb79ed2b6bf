package tomi

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readJSONLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()
	var rows []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("decode line in %s: %v", path, err)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestExportGrouped(t *testing.T) {
	grouped := GroupExamples([]Example{
		makeExample("first_order_0_tom"),
		makeExample("first_order_0_no_tom"),
		makeExample("memory"),
	})
	outDir := filepath.Join(t.TempDir(), "grouped")

	summary, err := ExportGrouped(grouped, outDir, Manifest{Split: "test", ExampleCount: 3})
	if err != nil {
		t.Fatalf("ExportGrouped: %v", err)
	}
	if summary["first_order_0"].Tom != 1 || summary["first_order_0"].NoTom != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	tomRows := readJSONLines(t, filepath.Join(outDir, "first_order_0_tom.jsonl"))
	if len(tomRows) != 1 {
		t.Fatalf("got %d tom rows, want 1", len(tomRows))
	}
	if _, present := tomRows[0]["base_question_type"]; present {
		t.Fatal("per-group rows must not carry base_question_type")
	}
	if tomRows[0]["requires_tom"] != true {
		t.Fatalf("requires_tom = %v", tomRows[0]["requires_tom"])
	}
	if tomRows[0]["tom_order"] != float64(1) {
		t.Fatalf("tom_order = %v", tomRows[0]["tom_order"])
	}

	noTomRows := readJSONLines(t, filepath.Join(outDir, "first_order_0_no_tom.jsonl"))
	if len(noTomRows) != 1 {
		t.Fatalf("got %d no_tom rows, want 1", len(noTomRows))
	}

	pooled := readJSONLines(t, filepath.Join(outDir, "all_tom.jsonl"))
	if len(pooled) != 1 {
		t.Fatalf("got %d pooled tom rows, want 1", len(pooled))
	}
	if pooled[0]["base_question_type"] != "first_order_0" {
		t.Fatalf("pooled base_question_type = %v", pooled[0]["base_question_type"])
	}
	if pooled[0]["requires_tom"] != true {
		t.Fatalf("all_tom row requires_tom = %v", pooled[0]["requires_tom"])
	}

	pooledNoTom := readJSONLines(t, filepath.Join(outDir, "all_no_tom.jsonl"))
	if len(pooledNoTom) != 1 {
		t.Fatalf("got %d pooled no_tom rows, want 1", len(pooledNoTom))
	}
	if pooledNoTom[0]["requires_tom"] != false {
		t.Fatalf("all_no_tom row requires_tom = %v", pooledNoTom[0]["requires_tom"])
	}
	if pooledNoTom[0]["base_question_type"] != "first_order_0" {
		t.Fatalf("pooled no_tom base_question_type = %v", pooledNoTom[0]["base_question_type"])
	}

	summaryData, err := os.ReadFile(filepath.Join(outDir, "summary.json"))
	if err != nil {
		t.Fatalf("read summary.json: %v", err)
	}
	var decoded map[string]GroupCounts
	if err := json.Unmarshal(summaryData, &decoded); err != nil {
		t.Fatalf("decode summary.json: %v", err)
	}
	if decoded["first_order_0"].Tom != 1 {
		t.Fatalf("summary.json = %+v", decoded)
	}

	samples, err := os.ReadFile(filepath.Join(outDir, "samples.txt"))
	if err != nil {
		t.Fatalf("read samples.txt: %v", err)
	}
	text := string(samples)
	for _, want := range []string{
		"QUESTION TYPE: first_order_0",
		"--- TOM ---",
		"--- NO_TOM ---",
		"Q: Where is the apple?",
		"A: basket",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("samples.txt missing %q", want)
		}
	}

	var manifest Manifest
	manifestData, err := os.ReadFile(filepath.Join(outDir, "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest.json: %v", err)
	}
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		t.Fatalf("decode manifest.json: %v", err)
	}
	if manifest.Split != "test" || manifest.ExampleCount != 3 || manifest.GeneratedAt == "" {
		t.Fatalf("manifest = %+v", manifest)
	}
}

func TestExportGroupedOverwritesStaleOutput(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "grouped")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stale := filepath.Join(outDir, "second_order_0_tom.jsonl")
	if err := os.WriteFile(stale, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write stale file: %v", err)
	}

	grouped := GroupExamples([]Example{makeExample("first_order_0_tom")})
	if _, err := ExportGrouped(grouped, outDir, Manifest{}); err != nil {
		t.Fatalf("ExportGrouped: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale output file survived the export")
	}
	if _, err := os.Stat(filepath.Join(outDir, "first_order_0_tom.jsonl")); err != nil {
		t.Fatalf("fresh output missing: %v", err)
	}
	// empty pooled side still materializes
	if _, err := os.Stat(filepath.Join(outDir, "all_no_tom.jsonl")); err != nil {
		t.Fatalf("all_no_tom.jsonl missing: %v", err)
	}
	if _, err := os.Stat(outDir + ".staging"); !os.IsNotExist(err) {
		t.Fatal("staging directory left behind")
	}
}
