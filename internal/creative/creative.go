// Package creative defines the ad request submitted by a user, the typed
// values produced by each generation stage, and the composite AdCreative.
package creative

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/harsh7800/adofly/internal/validate"
)

// ImageOption selects how the creative's image is sourced. It is echoed into
// the final creative; no image stage runs.
type ImageOption string

const (
	ImageUpload                ImageOption = "upload"
	ImageGenerate              ImageOption = "generate"
	ImageGenerateWithReference ImageOption = "generate-with-reference"
)

// AdRequest is the validated form input that drives one pipeline run.
type AdRequest struct {
	ProductName        string      `json:"productName" validate:"required"`
	ProductDescription string      `json:"productDescription" validate:"required"`
	ProductCategory    string      `json:"productCategory" validate:"required"`
	USPs               []string    `json:"usps" validate:"required,min=1,dive,required"`
	CampaignObjective  string      `json:"campaignObjective" validate:"required"`
	Tone               string      `json:"tone,omitempty"`
	AgeRange           string      `json:"ageRange,omitempty"`
	Gender             []string    `json:"gender,omitempty" validate:"omitempty,dive,required"`
	Locations          []string    `json:"locations,omitempty" validate:"omitempty,dive,required"`
	ImageOption        ImageOption `json:"imageOption" validate:"required,oneof=upload generate generate-with-reference"`
	AIImageStyle       string      `json:"aiImageStyle,omitempty"`
	AIImageDescription string      `json:"aiImageDescription,omitempty"`
}

// Clone returns a deep copy of r.
func (r AdRequest) Clone() AdRequest {
	r.USPs = slices.Clone(r.USPs)
	r.Gender = slices.Clone(r.Gender)
	r.Locations = slices.Clone(r.Locations)
	return r
}

// Normalize returns a copy of r with surrounding whitespace trimmed from
// every text field and list entry.
func (r AdRequest) Normalize() AdRequest {
	out := r.Clone()
	out.ProductName = strings.TrimSpace(out.ProductName)
	out.ProductDescription = strings.TrimSpace(out.ProductDescription)
	out.ProductCategory = strings.TrimSpace(out.ProductCategory)
	out.CampaignObjective = strings.TrimSpace(out.CampaignObjective)
	out.Tone = strings.TrimSpace(out.Tone)
	out.AgeRange = strings.TrimSpace(out.AgeRange)
	out.AIImageStyle = strings.TrimSpace(out.AIImageStyle)
	out.AIImageDescription = strings.TrimSpace(out.AIImageDescription)
	out.ImageOption = ImageOption(strings.TrimSpace(string(out.ImageOption)))
	trimAll(out.USPs)
	trimAll(out.Gender)
	trimAll(out.Locations)
	return out
}

func trimAll(ss []string) {
	for i := range ss {
		ss[i] = strings.TrimSpace(ss[i])
	}
}

// ValidationError lists every rule an AdRequest breaks.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "creative: invalid request: " + strings.Join(e.Violations, "; ")
}

// ValidateRequest checks r against the request rules. It returns a
// *ValidationError when any rule fails.
func ValidateRequest(r AdRequest) error {
	if v := validate.Struct(r); len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

// ParseRequest decodes a JSON request body, normalizes it and validates it.
func ParseRequest(data []byte) (AdRequest, error) {
	var r AdRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return AdRequest{}, &ValidationError{Violations: []string{"body: " + err.Error()}}
	}
	r = r.Normalize()
	if err := ValidateRequest(r); err != nil {
		return AdRequest{}, err
	}
	return r, nil
}

// AdCopy is the output of the ad-copy stage.
type AdCopy struct {
	Title         string   `json:"title" validate:"present"`
	ShortCopy     string   `json:"shortCopy" validate:"present,maxwords=50"`
	LongCopy      string   `json:"longCopy" validate:"present,maxwords=150"`
	CallToActions []string `json:"callToActions" validate:"required,min=1,dive,required"`
}

// TargetAudience is the output of the target-audience stage. Every key must
// be present but any list may be empty.
type TargetAudience struct {
	AgeRange  string   `json:"ageRange" validate:"present"`
	Genders   []string `json:"genders" validate:"present"`
	Locations []string `json:"locations" validate:"present"`
	Interests []string `json:"interests" validate:"present"`
}

// BudgetSuggestion is the output of the budget stage. Amounts are free-form
// currency strings as returned by the model.
type BudgetSuggestion struct {
	SuggestedDailyBudget string `json:"suggestedDailyBudget" validate:"present"`
	SuggestedTotalBudget string `json:"suggestedTotalBudget" validate:"present"`
}

// AdCreative is the final artifact of a successful run: the three stage
// values plus request metadata echoed verbatim.
type AdCreative struct {
	AdCopy          AdCopy           `json:"adCopy"`
	TargetAudience  TargetAudience   `json:"targetAudience"`
	Budget          BudgetSuggestion `json:"budget"`
	CTA             string           `json:"cta"`
	Tone            string           `json:"tone,omitempty"`
	USPs            []string         `json:"usps"`
	ProductCategory string           `json:"productCategory"`
	ImageOption     ImageOption      `json:"imageOption"`
}

// ErrIncompleteCreative is returned by NewAdCreative when a stage value does
// not satisfy its schema.
var ErrIncompleteCreative = errors.New("creative: incomplete creative")

// NewAdCreative assembles the final creative. Every stage value must be
// schema-conformant; there is no partial creative.
func NewAdCreative(req AdRequest, adCopy AdCopy, audience TargetAudience, budget BudgetSuggestion) (*AdCreative, error) {
	parts := []struct {
		name  string
		value any
	}{
		{"adCopy", adCopy},
		{"targetAudience", audience},
		{"budget", budget},
	}
	for _, p := range parts {
		if violations := validate.Struct(p.value); len(violations) > 0 {
			return nil, fmt.Errorf("%w: %s: %s", ErrIncompleteCreative, p.name, strings.Join(violations, "; "))
		}
	}
	return &AdCreative{
		AdCopy: AdCopy{
			Title:         adCopy.Title,
			ShortCopy:     adCopy.ShortCopy,
			LongCopy:      adCopy.LongCopy,
			CallToActions: slices.Clone(adCopy.CallToActions),
		},
		TargetAudience: TargetAudience{
			AgeRange:  audience.AgeRange,
			Genders:   slices.Clone(audience.Genders),
			Locations: slices.Clone(audience.Locations),
			Interests: slices.Clone(audience.Interests),
		},
		Budget:          budget,
		CTA:             req.CampaignObjective,
		Tone:            req.Tone,
		USPs:            slices.Clone(req.USPs),
		ProductCategory: req.ProductCategory,
		ImageOption:     req.ImageOption,
	}, nil
}
