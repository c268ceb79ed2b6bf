package tomi

import "testing"

func TestParseStoryBlock(t *testing.T) {
	lines := []string{
		"1 Anne entered the kitchen.",
		"2 Sally entered the kitchen.",
		"3 The apple is in the basket.",
		"4 Where will Sally look for the apple?\tbasket",
	}
	story, question, answer := ParseStoryBlock(lines)
	wantStory := "1 Anne entered the kitchen.\n2 Sally entered the kitchen.\n3 The apple is in the basket."
	if story != wantStory {
		t.Fatalf("story = %q, want %q", story, wantStory)
	}
	if question != "Where will Sally look for the apple?" {
		t.Fatalf("question = %q", question)
	}
	if answer != "basket" {
		t.Fatalf("answer = %q", answer)
	}
}

func TestParseStoryBlockQuestionWithoutIndex(t *testing.T) {
	lines := []string{
		"1 Bob moved the ball.",
		"question?\tanswer",
	}
	_, question, answer := ParseStoryBlock(lines)
	if question != "question?" {
		t.Fatalf("question = %q, want the whole first field", question)
	}
	if answer != "answer" {
		t.Fatalf("answer = %q", answer)
	}
}

func TestParseStoryBlockNoQuestionLine(t *testing.T) {
	lines := []string{
		"1 Bob moved the ball.",
		"",
		"2 Bob left the room.",
	}
	story, question, answer := ParseStoryBlock(lines)
	if story != "1 Bob moved the ball.\n2 Bob left the room." {
		t.Fatalf("story = %q", story)
	}
	if question != "" || answer != "" {
		t.Fatalf("expected empty question/answer, got %q / %q", question, answer)
	}
}
