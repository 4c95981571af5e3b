package transform

import "fmt"

// Direction selects which capability pair a pipeline run consults.
type Direction int

const (
	// Input rewrites features: TransformInput + FeatureNames.
	Input Direction = iota
	// Output rewrites predictions: TransformOutput + ClassNames.
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "input", "transform-input", "TransformInput":
		return Input, nil
	case "output", "transform-output", "TransformOutput":
		return Output, nil
	}
	return 0, fmt.Errorf("transform: unknown direction %q", s)
}
