package tomi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoInputFiles marks a data directory holding no transcript/trace pair.
var ErrNoInputFiles = errors.New("no matching transcript/trace file pair")

// blockStartMarker opens a new story block when a block is already being
// accumulated. ToMi transcripts restart sentence numbering at 1 per story.
const blockStartMarker = "1 "

// LoadResult carries the parsed examples plus enough provenance to report
// which files were used and whether the two sides were in sync.
type LoadResult struct {
	Examples       []Example
	TranscriptFile string
	TraceFile      string
	BlockCount     int
	TraceLineCount int
}

// Skewed reports whether transcript blocks and trace records disagreed in
// count. Pairing is positional, so a skewed load silently truncates to the
// shorter side.
func (r LoadResult) Skewed() bool {
	return r.BlockCount != r.TraceLineCount
}

// LoadSplit locates the transcript/trace file pair for a split, segments the
// transcript into story blocks, and pairs each block with its trace record
// by position. The first candidate filename pattern whose transcript and
// trace both exist wins; none existing wraps ErrNoInputFiles.
func LoadSplit(dataDir, split string) (LoadResult, error) {
	candidates := [][2]string{
		{fmt.Sprintf("fb_all_%s.txt", split), fmt.Sprintf("fb_all_%s.trace", split)},
		{split + ".txt", split + ".trace"},
	}

	var txtPath, tracePath string
	for _, pair := range candidates {
		txtCandidate := filepath.Join(dataDir, pair[0])
		traceCandidate := filepath.Join(dataDir, pair[1])
		if fileExists(txtCandidate) && fileExists(traceCandidate) {
			txtPath = txtCandidate
			tracePath = traceCandidate
			break
		}
	}
	if txtPath == "" {
		return LoadResult{}, fmt.Errorf("%w for split %q in %s", ErrNoInputFiles, split, dataDir)
	}

	traceData, err := os.ReadFile(tracePath)
	if err != nil {
		return LoadResult{}, fmt.Errorf("read trace file: %w", err)
	}
	traceLines := nonEmptyLines(string(traceData))

	txtData, err := os.ReadFile(txtPath)
	if err != nil {
		return LoadResult{}, fmt.Errorf("read transcript file: %w", err)
	}
	blocks := splitStoryBlocks(string(txtData))

	count := len(blocks)
	if len(traceLines) < count {
		count = len(traceLines)
	}
	examples := make([]Example, 0, count)
	for i := 0; i < count; i++ {
		_, questionType, storyType := ParseTraceLine(traceLines[i])
		classified := Classify(questionType)
		story, question, answer := ParseStoryBlock(blocks[i])
		examples = append(examples, Example{
			Story:            story,
			Question:         question,
			Answer:           answer,
			QuestionType:     questionType,
			StoryType:        storyType,
			RequiresTom:      classified.RequiresTom,
			TomOrder:         classified.TomOrder,
			BaseQuestionType: classified.BaseType,
		})
	}

	return LoadResult{
		Examples:       examples,
		TranscriptFile: filepath.Base(txtPath),
		TraceFile:      filepath.Base(tracePath),
		BlockCount:     len(blocks),
		TraceLineCount: len(traceLines),
	}, nil
}

// splitStoryBlocks segments raw transcript text into blocks: a line starting
// with the block marker while a block is open begins the next block, blank
// lines are dropped, and the trailing block is kept.
func splitStoryBlocks(text string) [][]string {
	var blocks [][]string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, blockStartMarker) && len(current) > 0 {
			blocks = append(blocks, current)
			current = []string{line}
		} else if strings.TrimSpace(line) != "" {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
