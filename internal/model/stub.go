package model

import (
	"context"
	"strings"
)

// Compile-time interface check.
var _ Model = (*Stub)(nil)

// Canned completions returned by Stub, one per stage output contract.
const (
	StubAdCopy   = `{"title":"Meet Your New Favorite","shortCopy":"Built for everyday life.","longCopy":"Designed with care and built to last, it fits right into your routine.","callToActions":["Shop Now","Learn More"]}`
	StubAudience = `{"ageRange":"25-34","genders":["all"],"locations":["United States"],"interests":["technology","lifestyle"]}`
	StubBudget   = `{"suggestedDailyBudget":"$50","suggestedTotalBudget":"$1,500"}`
)

// Stub is an offline model for local runs and demos. It recognizes which
// stage is asking from the output contract embedded in the prompt.
type Stub struct{}

// Complete implements Model.
func (Stub) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch {
	case strings.Contains(prompt, "callToActions"):
		return StubAdCopy, nil
	case strings.Contains(prompt, "interests"):
		return "```json\n" + StubAudience + "\n```", nil
	case strings.Contains(prompt, "suggestedDailyBudget"):
		return StubBudget, nil
	}
	return "", ErrEmptyCompletion
}
