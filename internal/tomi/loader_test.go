package tomi

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleTranscript = `1 Anne entered the kitchen.
2 The apple is in the basket.
3 Where is the apple?	basket
1 Bob entered the hall.
2 The ball is in the box.
3 Where will Bob look for the ball?	box
`

const sampleTrace = `a1,b1,first_order_0_tom,false_belief
a2,b2,first_order_0_no_tom,true_belief
`

func writeSplit(t *testing.T, dir, txtName, traceName, txt, trace string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, txtName), []byte(txt), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, traceName), []byte(trace), 0o644); err != nil {
		t.Fatalf("write trace: %v", err)
	}
}

func TestLoadSplitPrefersFbAllFiles(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, "fb_all_test.txt", "fb_all_test.trace", sampleTranscript, sampleTrace)

	result, err := LoadSplit(dir, "test")
	if err != nil {
		t.Fatalf("LoadSplit: %v", err)
	}
	if result.TranscriptFile != "fb_all_test.txt" || result.TraceFile != "fb_all_test.trace" {
		t.Fatalf("picked files %s / %s", result.TranscriptFile, result.TraceFile)
	}
	if len(result.Examples) != 2 {
		t.Fatalf("got %d examples, want 2", len(result.Examples))
	}
	if result.Skewed() {
		t.Fatal("balanced inputs reported as skewed")
	}

	first := result.Examples[0]
	if first.QuestionType != "first_order_0_tom" || !first.RequiresTom {
		t.Fatalf("first example misclassified: %+v", first)
	}
	if first.StoryType != "false_belief" {
		t.Fatalf("first example story type = %q", first.StoryType)
	}
	if first.Question != "Where is the apple?" || first.Answer != "basket" {
		t.Fatalf("first example Q/A = %q / %q", first.Question, first.Answer)
	}

	second := result.Examples[1]
	if second.RequiresTom {
		t.Fatalf("no_tom example marked as requiring ToM: %+v", second)
	}
}

func TestLoadSplitFallsBackToPlainNames(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, "val.txt", "val.trace", sampleTranscript, sampleTrace)

	result, err := LoadSplit(dir, "val")
	if err != nil {
		t.Fatalf("LoadSplit: %v", err)
	}
	if result.TranscriptFile != "val.txt" || result.TraceFile != "val.trace" {
		t.Fatalf("picked files %s / %s", result.TranscriptFile, result.TraceFile)
	}
}

func TestLoadSplitMissingFiles(t *testing.T) {
	dir := t.TempDir()
	// transcript alone is not enough, the pair must exist
	if err := os.WriteFile(filepath.Join(dir, "test.txt"), []byte(sampleTranscript), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	_, err := LoadSplit(dir, "test")
	if !errors.Is(err, ErrNoInputFiles) {
		t.Fatalf("err = %v, want ErrNoInputFiles", err)
	}
}

func TestLoadSplitTruncatesToShorterSide(t *testing.T) {
	dir := t.TempDir()
	longTrace := sampleTrace + "a3,b3,memory,true_belief\n"
	writeSplit(t, dir, "test.txt", "test.trace", sampleTranscript, longTrace)

	result, err := LoadSplit(dir, "test")
	if err != nil {
		t.Fatalf("LoadSplit: %v", err)
	}
	if !result.Skewed() {
		t.Fatal("mismatched counts not reported as skewed")
	}
	if len(result.Examples) != 2 {
		t.Fatalf("got %d examples, want truncation to 2", len(result.Examples))
	}
	if result.BlockCount != 2 || result.TraceLineCount != 3 {
		t.Fatalf("counts = %d blocks / %d trace lines", result.BlockCount, result.TraceLineCount)
	}
}

func TestSplitStoryBlocks(t *testing.T) {
	blocks := splitStoryBlocks("1 a\n2 b\n\n1 c\n2 d\n1 e\n")
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}
	if blocks[0][0] != "1 a" || blocks[1][0] != "1 c" || blocks[2][0] != "1 e" {
		t.Fatalf("unexpected block boundaries: %v", blocks)
	}
	// "10 x" style lines must not open a block, only a bare "1 " prefix does
	blocks = splitStoryBlocks("1 a\n10 b\n1 c\n")
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
}
