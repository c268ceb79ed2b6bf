package tomi

import "strings"

// ParseTraceLine decodes one comma-separated trace record. The last field is
// always the story type and the second-to-last the question type; everything
// before them, rejoined with commas, is the story structure. A line with a
// single field keeps the story-type contract and leaves the rest empty; no
// error is raised for short lines.
func ParseTraceLine(line string) (structure, questionType, storyType string) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	storyType = parts[len(parts)-1]
	if len(parts) < 2 {
		return "", "", storyType
	}
	questionType = parts[len(parts)-2]
	structure = strings.Join(parts[:len(parts)-2], ",")
	return structure, questionType, storyType
}
