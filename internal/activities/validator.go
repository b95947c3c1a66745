package activities

import (
	"gatherly/internal/domain"
	"gatherly/internal/result"
)

// Field rules for activity payloads. Violations are collected in
// declaration order and aggregated, so a form can mark every offending
// field at once instead of one per round trip.
var activityRules = []struct {
	field   string
	message string
	broken  func(a domain.Activity) bool
}{
	{"title", "title is required", func(a domain.Activity) bool { return a.Title == "" }},
	{"date", "date is required", func(a domain.Activity) bool { return a.Date.IsZero() }},
	{"category", "category is required", func(a domain.Activity) bool { return a.Category == "" }},
	{"city", "city is required", func(a domain.Activity) bool { return a.City == "" }},
	{"venue", "venue is required", func(a domain.Activity) bool { return a.Venue == "" }},
}

func activityViolations(a domain.Activity) []result.FieldViolation {
	var out []result.FieldViolation
	for _, r := range activityRules {
		if r.broken(a) {
			out = append(out, result.FieldViolation{Field: r.field, Message: r.message})
		}
	}
	return out
}

// ValidateCreate also requires the client-assigned id.
func ValidateCreate(cmd CreateCommand) []result.FieldViolation {
	var out []result.FieldViolation
	if cmd.Activity.ID == "" {
		out = append(out, result.FieldViolation{Field: "id", Message: "id is required"})
	}
	return append(out, activityViolations(cmd.Activity)...)
}

func ValidateEdit(cmd EditCommand) []result.FieldViolation {
	return activityViolations(cmd.Activity)
}
