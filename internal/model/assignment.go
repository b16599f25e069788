package model

// RubricCriterion describes a single graded dimension of an assignment.
type RubricCriterion struct {
	Description string `json:"description"`
	MaxPoints   int    `json:"max_points"`
}

// Rubric maps criterion name to its description and point ceiling.
type Rubric map[string]RubricCriterion

// MaxScore is the sum of all criterion ceilings.
func (r Rubric) MaxScore() int {
	total := 0
	for _, c := range r {
		total += c.MaxPoints
	}
	return total
}

type Assignment struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Rubric Rubric `json:"rubric"`
	Ctime  int64  `json:"ctime"`
}
