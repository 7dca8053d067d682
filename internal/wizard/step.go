package wizard

import (
	"fmt"
	"strconv"
	"strings"
)

// Step is a wizard page. Steps are ordered; navigation back always targets a
// lower step.
type Step int

const (
	StepOccasion Step = iota + 1
	StepRecipient
	StepDescribe
	StepBrowse
)

var stepNames = map[Step]string{
	StepOccasion:  "occasion",
	StepRecipient: "recipient",
	StepDescribe:  "describe",
	StepBrowse:    "browse",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "step(" + strconv.Itoa(int(s)) + ")"
}

func (s Step) Valid() bool {
	return s >= StepOccasion && s <= StepBrowse
}

func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("wizard: invalid step %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	parsed, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStep accepts a step name or its 1-based number.
func ParseStep(v string) (Step, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for step, name := range stepNames {
		if name == v {
			return step, nil
		}
	}
	if n, err := strconv.Atoi(v); err == nil && Step(n).Valid() {
		return Step(n), nil
	}
	return 0, fmt.Errorf("wizard: unknown step %q", v)
}
