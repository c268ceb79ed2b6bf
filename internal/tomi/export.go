package tomi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Manifest records provenance for one export run.
type Manifest struct {
	Split          string  `json:"split,omitempty"`
	TranscriptFile string  `json:"transcript_file,omitempty"`
	TraceFile      string  `json:"trace_file,omitempty"`
	ExampleCount   int     `json:"example_count"`
	Summary        Summary `json:"summary"`
	GeneratedAt    string  `json:"generated_at"`
}

// exampleRecord is the per-group JSONL row shape. The pooled files carry the
// base question type on top of it.
type exampleRecord struct {
	Story        string `json:"story"`
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	QuestionType string `json:"question_type"`
	StoryType    string `json:"story_type"`
	RequiresTom  bool   `json:"requires_tom"`
	TomOrder     *int   `json:"tom_order"`
}

type pooledRecord struct {
	exampleRecord
	BaseQuestionType string `json:"base_question_type"`
}

func toRecord(example Example) exampleRecord {
	return exampleRecord{
		Story:        example.Story,
		Question:     example.Question,
		Answer:       example.Answer,
		QuestionType: example.QuestionType,
		StoryType:    example.StoryType,
		RequiresTom:  example.RequiresTom,
		TomOrder:     example.TomOrder,
	}
}

// ExportGrouped writes the grouped dataset under outDir with full-overwrite
// semantics: any previous content of outDir is gone afterwards. Files are
// staged in a sibling directory and swapped in last, so a failure mid-export
// leaves the previous output untouched.
func ExportGrouped(grouped Grouped, outDir string, manifest Manifest) (Summary, error) {
	summary := grouped.Summary()
	manifest.Summary = summary
	if manifest.GeneratedAt == "" {
		manifest.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	}

	cleanOut := filepath.Clean(outDir)
	staging := cleanOut + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("clear staging directory: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	if err := writeGroupFiles(grouped, staging); err != nil {
		return nil, err
	}
	if err := writePooledFiles(grouped, staging); err != nil {
		return nil, err
	}
	if err := writeJSONFile(filepath.Join(staging, "summary.json"), summary); err != nil {
		return nil, err
	}
	if err := writeJSONFile(filepath.Join(staging, "manifest.json"), manifest); err != nil {
		return nil, err
	}
	if err := writeSamples(grouped, filepath.Join(staging, "samples.txt")); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(cleanOut); err != nil {
		return nil, fmt.Errorf("clear output directory: %w", err)
	}
	if err := os.Rename(staging, cleanOut); err != nil {
		return nil, fmt.Errorf("swap output directory: %w", err)
	}
	return summary, nil
}

// writeGroupFiles emits one JSONL file per non-empty (base type, condition)
// pair, named <base_type>_<condition>.jsonl.
func writeGroupFiles(grouped Grouped, dir string) error {
	for _, baseType := range grouped.BaseTypes() {
		group := grouped[baseType]
		buckets := []struct {
			condition string
			examples  []Example
		}{
			{ConditionTom, group.Tom},
			{ConditionNoTom, group.NoTom},
		}
		for _, bucket := range buckets {
			if len(bucket.examples) == 0 {
				continue
			}
			rows := make([]any, 0, len(bucket.examples))
			for _, example := range bucket.examples {
				rows = append(rows, toRecord(example))
			}
			name := fmt.Sprintf("%s_%s.jsonl", baseType, bucket.condition)
			if err := writeJSONLines(filepath.Join(dir, name), rows); err != nil {
				return err
			}
		}
	}
	return nil
}

// writePooledFiles emits all_tom.jsonl and all_no_tom.jsonl spanning every
// base type; each row additionally carries base_question_type. Both files
// are written even when empty.
func writePooledFiles(grouped Grouped, dir string) error {
	var allTom, allNoTom []any
	for _, baseType := range grouped.BaseTypes() {
		group := grouped[baseType]
		for _, example := range group.Tom {
			allTom = append(allTom, pooledRecord{toRecord(example), baseType})
		}
		for _, example := range group.NoTom {
			allNoTom = append(allNoTom, pooledRecord{toRecord(example), baseType})
		}
	}
	if err := writeJSONLines(filepath.Join(dir, "all_tom.jsonl"), allTom); err != nil {
		return err
	}
	return writeJSONLines(filepath.Join(dir, "all_no_tom.jsonl"), allNoTom)
}

func writeJSONLines(path string, rows []any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, row := range rows {
		data, marshalErr := json.Marshal(row)
		if marshalErr != nil {
			return fmt.Errorf("encode record for %s: %w", filepath.Base(path), marshalErr)
		}
		writer.Write(data)
		writer.WriteString("\n")
	}
	return writer.Flush()
}

func writeJSONFile(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeSamples renders a human-readable digest: per base type, the first
// example of each condition as story plus question/answer.
func writeSamples(grouped Grouped, path string) error {
	rule := strings.Repeat("=", 60)
	var builder strings.Builder
	for _, baseType := range grouped.BaseTypes() {
		group := grouped[baseType]
		fmt.Fprintf(&builder, "\n%s\n", rule)
		fmt.Fprintf(&builder, "QUESTION TYPE: %s\n", baseType)
		fmt.Fprintf(&builder, "%s\n", rule)

		buckets := []struct {
			condition string
			examples  []Example
		}{
			{ConditionTom, group.Tom},
			{ConditionNoTom, group.NoTom},
		}
		for _, bucket := range buckets {
			if len(bucket.examples) == 0 {
				continue
			}
			example := bucket.examples[0]
			fmt.Fprintf(&builder, "\n--- %s ---\n", strings.ToUpper(bucket.condition))
			fmt.Fprintf(&builder, "Story type: %s\n", example.StoryType)
			fmt.Fprintf(&builder, "Question type: %s\n\n", example.QuestionType)
			builder.WriteString(example.Story + "\n\n")
			fmt.Fprintf(&builder, "Q: %s\n", example.Question)
			fmt.Fprintf(&builder, "A: %s\n", example.Answer)
		}
	}
	if err := os.WriteFile(path, []byte(builder.String()), 0o644); err != nil {
		return fmt.Errorf("write samples digest: %w", err)
	}
	return nil
}
