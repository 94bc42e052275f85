// Package schematic defines the catalog domain types for WARNERCO robot
// schematics. Every other layer (graph, index, pipeline, MCP tools) works
// in terms of these types.
package schematic

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Status of a schematic document.
type Status string

const (
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
	StatusDraft      Status = "draft"
)

// ValidStatuses lists the accepted status values.
var ValidStatuses = []Status{StatusActive, StatusDeprecated, StatusDraft}

// ValidStatus reports whether s is an accepted status value.
func ValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if Status(s) == v {
			return true
		}
	}
	return false
}

// ValidCategories lists the accepted component categories.
var ValidCategories = []string{"sensors", "power", "control", "mobility", "communication"}

// ValidCategory reports whether c is an accepted category.
func ValidCategory(c string) bool {
	for _, v := range ValidCategories {
		if c == v {
			return true
		}
	}
	return false
}

// IDPattern matches catalog schematic identifiers, e.g. "WRN-00042".
var IDPattern = regexp.MustCompile(`WRN-\d+`)

// ModelPattern matches robot model identifiers, e.g. "WC-100".
var ModelPattern = regexp.MustCompile(`WC-\d+`)

// Schematic is a single catalog record describing one component of a robot.
type Schematic struct {
	// ID uniquely identifies the schematic (WRN-%05d)
	ID string `json:"id"`

	// Model is the robot model identifier (e.g. "WC-100")
	Model string `json:"model"`

	// Name is the robot name (e.g. "Atlas Prime")
	Name string `json:"name"`

	// Component is the component this schematic documents
	Component string `json:"component"`

	// Version is the component revision
	Version string `json:"version"`

	// Summary is a technical description used for retrieval scoring
	Summary string `json:"summary"`

	// URL points at the schematic document
	URL string `json:"url,omitempty"`

	// Category is one of ValidCategories
	Category string `json:"category"`

	// Status is one of ValidStatuses
	Status Status `json:"status"`

	// Tags are free-form searchable labels (stored as JSON in the DB)
	Tags []string `json:"tags,omitempty"`

	// Specifications holds arbitrary technical key/value pairs
	Specifications map[string]any `json:"specifications,omitempty"`

	// LastVerified is the ISO date the schematic was last checked
	LastVerified string `json:"last_verified,omitempty"`

	// CreatedAt is the Unix timestamp when the record was created
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix timestamp when the record was last updated
	UpdatedAt int64 `json:"updated_at"`

	// DeletedAt is the Unix timestamp for soft delete (nullable)
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// EmbedText returns the flat text representation used by the retrieval
// index for keyword scoring.
func (s *Schematic) EmbedText() string {
	parts := []string{
		fmt.Sprintf("Model: %s (%s)", s.Model, s.Name),
		fmt.Sprintf("Component: %s", s.Component),
		fmt.Sprintf("Version: %s", s.Version),
		fmt.Sprintf("Category: %s", s.Category),
		fmt.Sprintf("Status: %s", s.Status),
		s.Summary,
	}
	if len(s.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(s.Tags, ", "))
	}
	if len(s.Specifications) > 0 {
		keys := make([]string, 0, len(s.Specifications))
		for k := range s.Specifications {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		specs := make([]string, 0, len(keys))
		for _, k := range keys {
			specs = append(specs, fmt.Sprintf("%s: %v", k, s.Specifications[k]))
		}
		parts = append(parts, "Specs: "+strings.Join(specs, ", "))
	}
	return strings.Join(parts, "\n")
}

// Summarize returns a one-line description used for compressed context.
// The summary is truncated at 100 characters, counted as runes so a
// multi-byte character is never split.
func (s *Schematic) Summarize() string {
	summary := s.Summary
	const maxSummary = 100
	if CountChars(summary) > maxSummary {
		summary = string([]rune(summary)[:maxSummary]) + "..."
	}
	return fmt.Sprintf("[%s] %s/%s: %s (%s) - %s", s.ID, s.Model, s.Name, s.Component, s.Category, summary)
}
