package mcptools

import (
	"github.com/harsh7800/adofly/internal/creative"
	"github.com/harsh7800/adofly/internal/progress"
	"github.com/harsh7800/adofly/internal/stage"
	"github.com/harsh7800/adofly/internal/store"
)

// --- MCP Tool Input Types ---
// The SDK derives each tool's JSON schema from these struct tags. Requests
// are taken as plain objects so that rule violations are reported by the
// request validator rather than rejected by schema checks.

// GenerateInput is the input for the generate_ad_creative MCP tool.
type GenerateInput struct {
	Request map[string]any `json:"request" jsonschema:"the ad request: productName, productDescription, productCategory, usps, campaignObjective, imageOption (upload, generate or generate-with-reference), plus optional tone, ageRange, gender, locations, aiImageStyle, aiImageDescription"`
}

// GenerateOutput is the result of the generate_ad_creative MCP tool.
type GenerateOutput struct {
	Status     string               `json:"status"` // "completed", "failed" or "invalid"
	Steps      []progress.Step      `json:"steps"`
	Creative   *creative.AdCreative `json:"creative,omitempty"`
	Failure    *stage.Failure       `json:"failure,omitempty"`
	Violations []string             `json:"violations,omitempty"`
}

// ValidateInput is the input for the validate_ad_request MCP tool.
type ValidateInput struct {
	Request map[string]any `json:"request" jsonschema:"the ad request to check"`
}

// ValidateOutput is the result of the validate_ad_request MCP tool.
type ValidateOutput struct {
	Valid      bool                `json:"valid"`
	Violations []string            `json:"violations,omitempty"`
	Normalized *creative.AdRequest `json:"normalized,omitempty"`
}

// ListInput is the input for the list_ad_creatives MCP tool.
type ListInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of creatives to return, newest first (default: 20)"`
}

// ListOutput is the result of the list_ad_creatives MCP tool.
type ListOutput struct {
	Creatives []store.Record `json:"creatives"`
}
