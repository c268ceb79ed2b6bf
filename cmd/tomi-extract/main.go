package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"tom-bench/internal/tomi"
)

func main() {
	_ = godotenv.Load()

	dataDir := flag.String("data_dir", envOr("TOMI_DATA_DIR", ""), "Directory holding ToMi transcript/trace files")
	outputDir := flag.String("output_dir", envOr("TOMI_OUTPUT_DIR", "./tomi_grouped"), "Destination directory, recreated fresh each run")
	split := flag.String("split", envOr("TOMI_SPLIT", "test"), "Dataset split: train|val|test")
	format := flag.String("format", "text", "Summary output format: text|json")
	flag.Parse()

	if strings.TrimSpace(*dataDir) == "" {
		exitWith("TOMI_DATA_DIR or -data_dir is required")
	}
	if !validSplit(*split) {
		exitWith(fmt.Sprintf("invalid split %q (use train|val|test)", *split))
	}

	fmt.Printf("Loading ToMi %s data from %s...\n", *split, *dataDir)
	result, err := tomi.LoadSplit(*dataDir, *split)
	if err != nil {
		exitWith("failed to load data: " + err.Error())
	}
	fmt.Printf("Using files: %s, %s\n", result.TranscriptFile, result.TraceFile)
	fmt.Printf("Found %d story blocks and %d trace lines\n", result.BlockCount, result.TraceLineCount)
	if result.Skewed() {
		fmt.Printf("warning: block/trace counts differ, pairing truncated to %d examples\n", len(result.Examples))
	}
	fmt.Printf("Loaded %d total examples\n", len(result.Examples))

	fmt.Println("\nGrouping examples...")
	grouped := tomi.GroupExamples(result.Examples)

	fmt.Println("\nSaving...")
	summary, err := tomi.ExportGrouped(grouped, *outputDir, tomi.Manifest{
		Split:          *split,
		TranscriptFile: result.TranscriptFile,
		TraceFile:      result.TraceFile,
		ExampleCount:   len(result.Examples),
	})
	if err != nil {
		exitWith("failed to save grouped data: " + err.Error())
	}

	switch strings.ToLower(strings.TrimSpace(*format)) {
	case "json":
		printJSON(summary)
	default:
		printSummary(summary, *outputDir)
	}
	fmt.Println("\nDone!")
}

func validSplit(split string) bool {
	switch split {
	case "train", "val", "test":
		return true
	default:
		return false
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func printSummary(summary tomi.Summary, outDir string) {
	rule := strings.Repeat("=", 60)
	fmt.Printf("\n%s\nSUMMARY\n%s\n", rule, rule)

	baseTypes := make([]string, 0, len(summary))
	for baseType := range summary {
		baseTypes = append(baseTypes, baseType)
	}
	sort.Strings(baseTypes)
	for _, baseType := range baseTypes {
		counts := summary[baseType]
		fmt.Printf("%s:\n", baseType)
		fmt.Printf("  ToM required:     %d examples\n", counts.Tom)
		fmt.Printf("  No ToM required:  %d examples\n", counts.NoTom)
	}
	fmt.Printf("\nSaved grouped dataset to %s\n", outDir)
}

func printJSON(summary tomi.Summary) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		exitWith("failed to encode summary JSON: " + err.Error())
	}
	fmt.Println(string(data))
}

func exitWith(message string) {
	fmt.Fprintln(os.Stderr, "error:", message)
	os.Exit(2)
}
