package models

// Difficulty rates how hard an exercise is
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid returns true if the difficulty is one of the known ratings
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// Exercise is an atomic completable unit inside a roadmap node.
// Completion state is never stored on the exercise itself; the Completed
// flag is derived per user when a view is built.
type Exercise struct {
	ID         string     `yaml:"id" json:"id"`
	Name       string     `yaml:"name" json:"name"`
	Difficulty Difficulty `yaml:"difficulty" json:"difficulty"`
	Completed  bool       `yaml:"-" json:"completed"`
}

// Position holds node placement on the roadmap canvas
type Position struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// RoadmapNode is a graph vertex holding an ordered list of exercises.
// The exercise list is set at content-authoring time and is read-only here.
type RoadmapNode struct {
	ID          string     `yaml:"id" json:"id"`
	Label       string     `yaml:"label" json:"label"`
	Description string     `yaml:"description" json:"description,omitempty"`
	Position    Position   `yaml:"position" json:"position"`
	Exercises   []Exercise `yaml:"exercises" json:"exercises"`
}

// RoadmapEdge connects two nodes. Edges carry no weight and do not affect
// progress math; they only order presentation.
type RoadmapEdge struct {
	ID     string `yaml:"id" json:"id"`
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target" json:"target"`
}

// RoadmapGraph is a directed graph of topic nodes representing a learning path
type RoadmapGraph struct {
	ID    string        `yaml:"id" json:"id"`
	Title string        `yaml:"title" json:"title"`
	Nodes []RoadmapNode `yaml:"nodes" json:"nodes"`
	Edges []RoadmapEdge `yaml:"edges" json:"edges"`
}

// ExerciseCount returns the number of exercises across all nodes,
// counting shared exercise ids once per occurrence
func (g *RoadmapGraph) ExerciseCount() int {
	total := 0
	for _, n := range g.Nodes {
		total += len(n.Exercises)
	}
	return total
}

// RoadmapSummary is the list-view projection of a roadmap
type RoadmapSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	NodeCount     int    `json:"node_count"`
	ExerciseCount int    `json:"exercise_count"`
}
