package domain

import "time"

// SectionName identifies an independently saved group of settings.
type SectionName string

// Settings sections, in the order they are presented.
const (
	SectionGeneral     SectionName = "general"
	SectionEmail       SectionName = "email"
	SectionTicket      SectionName = "ticket"
	SectionIntegration SectionName = "integration"
	SectionAdvanced    SectionName = "advanced"

	// SectionSLA is the settings-store key of the denormalized SLA policy list
	// and the rule set used for policy forms.
	SectionSLA SectionName = "sla"
)

// Sections lists the editable sections by index.
var Sections = []SectionName{
	SectionGeneral,
	SectionEmail,
	SectionTicket,
	SectionIntegration,
	SectionAdvanced,
}

// ParseSectionName returns the section with the given name.
func ParseSectionName(s string) (SectionName, error) {
	for _, name := range Sections {
		if string(name) == s {
			return name, nil
		}
	}
	return "", ErrUnknownSection
}

// SectionIndex returns the index of a section in Sections, or -1.
func SectionIndex(name SectionName) int {
	for i, n := range Sections {
		if n == name {
			return i
		}
	}
	return -1
}

// SectionStatus summarizes a section for listings and the unsaved-changes banner.
type SectionStatus struct {
	Name    SectionName `json:"name"`
	Dirty   bool        `json:"dirty"`
	Loading bool        `json:"loading"`
}

// SectionSnapshot is a point-in-time view of a section.
type SectionSnapshot struct {
	Name     SectionName       `json:"name"`
	Current  any               `json:"current"`
	Baseline any               `json:"baseline"`
	Dirty    bool              `json:"dirty"`
	Loading  bool              `json:"loading"`
	Errors   map[string]string `json:"errors,omitempty"`
	LoadedAt *time.Time        `json:"loadedAt,omitempty"`
}

// ConnectionResult is the outcome of an integration connectivity test.
type ConnectionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ConnectionTestRequest asks for a connectivity test of an integration.
type ConnectionTestRequest struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// FieldUpdateRequest is a set of field edits applied to a section's current state.
type FieldUpdateRequest map[string]any

// ToggleRequest flips a boolean setting that takes effect immediately.
type ToggleRequest struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}
