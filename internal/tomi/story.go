package tomi

import "strings"

// ParseStoryBlock decodes one transcript block. A line containing a tab is
// the query line: the text before the tab loses its leading index token to
// become the question, the text after the tab is the answer verbatim. Every
// other non-blank line is a narrative sentence; they join with newlines to
// form the story. A block without a tab line yields an empty question and
// answer rather than an error.
func ParseStoryBlock(lines []string) (story, question, answer string) {
	var storyLines []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.Contains(line, "\t") {
			parts := strings.Split(line, "\t")
			qParts := strings.SplitN(parts[0], " ", 2)
			if len(qParts) == 2 {
				question = qParts[1]
			} else {
				question = parts[0]
			}
			answer = parts[1]
			continue
		}
		storyLines = append(storyLines, line)
	}
	return strings.Join(storyLines, "\n"), question, answer
}
