// ABOUTME: Stage transition validation against the forbidden-transition map
// ABOUTME: Anything not explicitly forbidden is allowed
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harperreed/leadsheet/models"
)

var (
	// ErrForbiddenTransition is returned when a move is listed as forbidden.
	ErrForbiddenTransition = errors.New("forbidden stage transition")

	// ErrMissingFields is returned when required fields for the target stage are not filled in.
	ErrMissingFields = errors.New("missing required fields")

	// ErrUnknownStage is returned when a move targets a stage outside the configured list.
	ErrUnknownStage = errors.New("unknown stage")
)

// wildcard is the forbidden-map key matching any origin stage.
const wildcard = "*"

// DefaultForbiddenTransitions applies even when no stage rules are configured.
var DefaultForbiddenTransitions = map[string][]string{
	models.StageWon:  {models.StageNew},
	models.StageLost: {models.StageNew},
}

// TransitionError describes a rejected stage move.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move lead from %q to %q", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrForbiddenTransition
}

// ValidationError lists the required fields a move is still missing.
type ValidationError struct {
	Stage   string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cannot move lead to %q: missing %s", e.Stage, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrMissingFields
}

// ResolveStage returns the configured spelling of name. Matching ignores
// case and surrounding space; an empty stages list means DefaultStages.
func ResolveStage(name string, stages []string) (string, error) {
	if len(stages) == 0 {
		stages = models.DefaultStages
	}
	name = strings.TrimSpace(name)
	for _, s := range stages {
		if strings.EqualFold(strings.TrimSpace(s), name) && name != "" {
			return strings.TrimSpace(s), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

func stageKey(stage string) string {
	s := strings.ToLower(strings.TrimSpace(stage))
	if s == "" {
		return wildcard
	}
	return s
}

// ForbiddenMap merges the built-in forbidden transitions with Forbidden stage
// rules. Keys are lower-cased origin stages; "*" matches any origin.
func ForbiddenMap(rules []models.StageRule) map[string][]string {
	out := make(map[string][]string)
	for from, targets := range DefaultForbiddenTransitions {
		out[stageKey(from)] = append(out[stageKey(from)], targets...)
	}
	for _, r := range rules {
		if !r.Forbidden || strings.TrimSpace(r.ToStage) == "" {
			continue
		}
		key := stageKey(r.FromStage)
		out[key] = append(out[key], r.ToStage)
	}
	return out
}

// ValidateTransition rejects a move only when to is listed under from (or
// under the wildcard). The absence of a rule means the move is allowed.
func ValidateTransition(from, to string, forbidden map[string][]string) error {
	for _, key := range []string{stageKey(from), wildcard} {
		for _, blocked := range forbidden[key] {
			if strings.EqualFold(strings.TrimSpace(blocked), strings.TrimSpace(to)) {
				return &TransitionError{From: from, To: to}
			}
		}
	}
	return nil
}
