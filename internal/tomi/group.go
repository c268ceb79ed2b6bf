package tomi

import "sort"

// Group holds the two contrastive buckets for one base question type, input
// order preserved within each bucket.
type Group struct {
	Tom   []Example
	NoTom []Example
}

// Grouped maps base question type to its contrastive buckets. Built once per
// run from the full example sequence and consumed by the exporter.
type Grouped map[string]*Group

// GroupCounts are the bucket sizes for one base question type.
type GroupCounts struct {
	Tom   int `json:"tom"`
	NoTom int `json:"no_tom"`
}

// Summary maps base question type to its bucket counts.
type Summary map[string]GroupCounts

// GroupExamples partitions examples by base question type and ToM
// requirement. Control questions (memory/reality) are dropped entirely:
// they have no contrastive counterpart.
func GroupExamples(examples []Example) Grouped {
	grouped := Grouped{}
	for _, example := range examples {
		if IsControl(example.BaseQuestionType) {
			continue
		}
		group, ok := grouped[example.BaseQuestionType]
		if !ok {
			group = &Group{}
			grouped[example.BaseQuestionType] = group
		}
		if example.RequiresTom {
			group.Tom = append(group.Tom, example)
		} else {
			group.NoTom = append(group.NoTom, example)
		}
	}
	return grouped
}

// BaseTypes returns the grouped keys in sorted order so every emitted
// artifact is deterministic.
func (g Grouped) BaseTypes() []string {
	out := make([]string, 0, len(g))
	for baseType := range g {
		out = append(out, baseType)
	}
	sort.Strings(out)
	return out
}

// Summary counts both buckets per base type.
func (g Grouped) Summary() Summary {
	summary := Summary{}
	for baseType, group := range g {
		summary[baseType] = GroupCounts{Tom: len(group.Tom), NoTom: len(group.NoTom)}
	}
	return summary
}

// Flatten returns all grouped examples in sorted base-type order, the tom
// bucket before the no_tom bucket within each type.
func (g Grouped) Flatten() []Example {
	var out []Example
	for _, baseType := range g.BaseTypes() {
		out = append(out, g[baseType].Tom...)
		out = append(out, g[baseType].NoTom...)
	}
	return out
}
