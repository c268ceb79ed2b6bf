// Package tomi extracts and partitions examples from the ToMi narrative
// reasoning benchmark into contrastive theory-of-mind groups: for each
// question category, examples that require modeling another agent's belief
// state versus matched examples that only require tracking reality.
package tomi

// Example is one ToMi benchmark item: a narrative, its question/answer pair,
// and the classification tags carried by the parallel trace record.
// Immutable once assembled by the loader.
type Example struct {
	Story            string `json:"story"`
	Question         string `json:"question"`
	Answer           string `json:"answer"`
	QuestionType     string `json:"question_type"`
	StoryType        string `json:"story_type"`
	RequiresTom      bool   `json:"requires_tom"`
	TomOrder         *int   `json:"tom_order"`
	BaseQuestionType string `json:"base_question_type"`
}

// Condition names for the two contrastive buckets.
const (
	ConditionTom   = "tom"
	ConditionNoTom = "no_tom"
)
