package stage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/harsh7800/adofly/internal/creative"
)

// field is one labeled line of a prompt.
type field struct {
	label string
	value string
}

// contracts holds the JSON Schema each stage's completion must match.
var contracts = map[ID]string{
	AdCopy:         mustContract[creative.AdCopy](),
	TargetAudience: mustContract[creative.TargetAudience](),
	Budget:         mustContract[creative.BudgetSuggestion](),
}

func mustContract[T any]() string {
	schema, err := jsonschema.For[T](&jsonschema.ForOptions{})
	if err != nil {
		panic(fmt.Sprintf("stage: schema for %T: %v", *new(T), err))
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		panic(fmt.Sprintf("stage: marshal schema for %T: %v", *new(T), err))
	}
	return string(data)
}

// Contract returns the JSON Schema text embedded in the stage's prompt.
func Contract(id ID) string { return contracts[id] }

// BuildPrompt renders the instruction for stage id. Optional request fields
// that are empty are left out entirely.
func BuildPrompt(id ID, req creative.AdRequest) string {
	var (
		intro  string
		fields []field
		rules  []string
	)
	base := []field{
		{"Product Name", req.ProductName},
		{"Description", req.ProductDescription},
	}
	category := field{"Category", req.ProductCategory}

	switch id {
	case AdCopy:
		intro = "Create compelling ad copy for the following product."
		fields = append(base, category,
			field{"Unique Selling Points", strings.Join(req.USPs, ", ")},
			field{"Call to Action", req.CampaignObjective},
			field{"Tone", req.Tone},
		)
		rules = []string{
			"The short copy must be at most 50 words.",
			"The long copy must be at most 150 words.",
			"Provide at least one call to action.",
		}
	case TargetAudience:
		intro = "Identify the target audience for the following product."
		fields = append(base, category,
			field{"Preferred Age Range", req.AgeRange},
			field{"Preferred Genders", strings.Join(req.Gender, ", ")},
			field{"Preferred Locations", strings.Join(req.Locations, ", ")},
		)
		rules = []string{"Every list must contain at least one entry."}
	case Budget:
		intro = "Suggest an advertising budget for the following campaign."
		fields = append(base, field{"Campaign Objective", req.CampaignObjective})
		rules = []string{"Express each amount as a currency string, for example \"$50\"."}
	default:
		return ""
	}

	var sb strings.Builder
	sb.WriteString(intro)
	sb.WriteString("\n\n")
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", f.label, f.value)
	}
	sb.WriteString("\n")
	for _, r := range rules {
		sb.WriteString(r)
		sb.WriteString("\n")
	}
	sb.WriteString("\nRespond with only a JSON object that matches this JSON Schema:\n")
	sb.WriteString(contracts[id])
	sb.WriteString("\n")
	return sb.String()
}
