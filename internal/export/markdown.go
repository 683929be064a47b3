package export

import (
	"fmt"
	"strings"

	"github.com/harsh7800/adofly/internal/creative"
)

// Markdown renders e as a Markdown brief suitable for sharing.
func Markdown(e CreativeExport) string {
	c := e.Creative
	var sb strings.Builder

	title := c.AdCopy.Title
	if e.ProductName != "" {
		title = e.ProductName + ": " + title
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "_Exported %s_\n\n", e.ExportedAt)

	sb.WriteString("## Ad Copy\n\n")
	fmt.Fprintf(&sb, "**Short:** %s\n\n", c.AdCopy.ShortCopy)
	fmt.Fprintf(&sb, "%s\n\n", c.AdCopy.LongCopy)
	writeList(&sb, "Calls to action", c.AdCopy.CallToActions)

	sb.WriteString("## Target Audience\n\n")
	fmt.Fprintf(&sb, "- **Age range:** %s\n", c.TargetAudience.AgeRange)
	fmt.Fprintf(&sb, "- **Genders:** %s\n", strings.Join(c.TargetAudience.Genders, ", "))
	fmt.Fprintf(&sb, "- **Locations:** %s\n", strings.Join(c.TargetAudience.Locations, ", "))
	fmt.Fprintf(&sb, "- **Interests:** %s\n\n", strings.Join(c.TargetAudience.Interests, ", "))

	sb.WriteString("## Budget\n\n")
	sb.WriteString("| Daily | Total |\n|---|---|\n")
	fmt.Fprintf(&sb, "| %s | %s |\n\n", cell(c.Budget.SuggestedDailyBudget), cell(c.Budget.SuggestedTotalBudget))

	sb.WriteString("## Campaign\n\n")
	fmt.Fprintf(&sb, "- **Objective:** %s\n", c.CTA)
	fmt.Fprintf(&sb, "- **Category:** %s\n", c.ProductCategory)
	if c.Tone != "" {
		fmt.Fprintf(&sb, "- **Tone:** %s\n", c.Tone)
	}
	fmt.Fprintf(&sb, "- **Image:** %s\n\n", imageLabel(c.ImageOption))
	writeList(&sb, "Selling points", c.USPs)

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s:\n\n", heading)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
	sb.WriteString("\n")
}

// cell escapes pipes so a value cannot break the table.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func imageLabel(o creative.ImageOption) string {
	switch o {
	case creative.ImageUpload:
		return "uploaded by advertiser"
	case creative.ImageGenerate:
		return "AI generated"
	case creative.ImageGenerateWithReference:
		return "AI generated from a reference"
	}
	return string(o)
}
