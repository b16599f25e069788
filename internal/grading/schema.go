package grading

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/courseloop/autograder/internal/model"
)

// checkGradeResponse validates one raw model reply against the grading
// contract. It returns the parsed result and an empty reason when the reply
// conforms, or a nil result and a human-readable reason naming the failed
// check. The reason doubles as the corrective instruction for the retry
// prompt.
func checkGradeResponse(rubric model.Rubric, refIDs map[string]bool, raw string) (*model.GradeResult, string) {
	clean := stripCodeFence(raw)

	var payload struct {
		Score     *json.Number           `json:"score"`
		Breakdown map[string]json.Number `json:"breakdown"`
		Feedback  string                 `json:"feedback"`
		Citations []string               `json:"citations"`
	}
	dec := json.NewDecoder(strings.NewReader(clean))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Sprintf("response is not a valid JSON object: %v", err)
	}

	if payload.Score == nil {
		return nil, "field score is missing"
	}
	score, err := payload.Score.Int64()
	if err != nil {
		return nil, fmt.Sprintf("score must be an integer, got %q", payload.Score.String())
	}
	if payload.Breakdown == nil {
		return nil, "field breakdown is missing"
	}

	breakdown := make(map[string]int, len(rubric))
	for _, name := range sortedCriteria(rubric) {
		value, ok := payload.Breakdown[name]
		if !ok {
			return nil, fmt.Sprintf("breakdown is missing rubric criterion %q", name)
		}
		points, err := value.Int64()
		if err != nil {
			return nil, fmt.Sprintf("breakdown value for %q must be an integer, got %q", name, value.String())
		}
		maxPoints := rubric[name].MaxPoints
		if points < 0 || points > int64(maxPoints) {
			return nil, fmt.Sprintf("breakdown value for %q must be between 0 and %d, got %d", name, maxPoints, points)
		}
		breakdown[name] = int(points)
	}
	for name := range payload.Breakdown {
		if _, ok := rubric[name]; !ok {
			return nil, fmt.Sprintf("breakdown contains unknown criterion %q", name)
		}
	}

	maxScore := rubric.MaxScore()
	total := 0
	for _, points := range breakdown {
		total += points
	}
	if total > maxScore {
		return nil, fmt.Sprintf("breakdown sums to %d which exceeds the rubric maximum %d", total, maxScore)
	}
	if score < 0 || score > int64(maxScore) {
		return nil, fmt.Sprintf("score %d is out of the rubric range [0, %d]", score, maxScore)
	}
	if strings.TrimSpace(payload.Feedback) == "" {
		return nil, "feedback must be non-empty text"
	}
	for _, citation := range payload.Citations {
		if !refIDs[citation] {
			return nil, fmt.Sprintf("citation %q does not match any provided reference id", citation)
		}
	}

	citations := payload.Citations
	if citations == nil {
		citations = []string{}
	}
	return &model.GradeResult{
		Score:     int(score),
		Breakdown: breakdown,
		Feedback:  payload.Feedback,
		Citations: citations,
	}, ""
}

func sortedCriteria(rubric model.Rubric) []string {
	names := make([]string, 0, len(rubric))
	for name := range rubric {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stripCodeFence(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	return clean
}
