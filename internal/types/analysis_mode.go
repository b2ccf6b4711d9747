// Package types provides type definitions for structured data used throughout the recommendation writer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"
)

// AnalysisMode controls which facts may reach a prompt.
type AnalysisMode int

const (
	// ModeProfile analyzes the whole profile across all repositories.
	ModeProfile AnalysisMode = iota
	// ModeRepositoryOnly analyzes a single repository with no profile data.
	ModeRepositoryOnly
	// ModeRepositoryContributor analyzes a contributor's work on one repository
	// alongside their profile.
	ModeRepositoryContributor
)

// AnalysisModes lists every mode in declaration order.
func AnalysisModes() []AnalysisMode {
	return []AnalysisMode{ModeProfile, ModeRepositoryOnly, ModeRepositoryContributor}
}

// String returns the wire name of the mode.
func (m AnalysisMode) String() string {
	switch m {
	case ModeProfile:
		return "profile"
	case ModeRepositoryOnly:
		return "repository_only"
	case ModeRepositoryContributor:
		return "repository_contributor"
	default:
		return fmt.Sprintf("analysis_mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the declared modes.
func (m AnalysisMode) Valid() bool {
	return m >= ModeProfile && m <= ModeRepositoryContributor
}

// RequiresRepository reports whether the mode is scoped to a target repository.
func (m AnalysisMode) RequiresRepository() bool {
	return m == ModeRepositoryOnly || m == ModeRepositoryContributor
}

// ParseAnalysisMode parses a mode name. Hyphens and case are ignored so
// "repository-only" and "REPOSITORY_ONLY" both parse.
func ParseAnalysisMode(s string) (AnalysisMode, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch normalized {
	case "", "profile":
		return ModeProfile, nil
	case "repository_only", "repository":
		return ModeRepositoryOnly, nil
	case "repository_contributor", "contributor":
		return ModeRepositoryContributor, nil
	}
	names := make([]string, 0, 3)
	for _, m := range AnalysisModes() {
		names = append(names, m.String())
	}
	return ModeProfile, fmt.Errorf("unknown analysis mode %q (expected one of %s)", s, strings.Join(names, ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (m AnalysisMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid analysis mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *AnalysisMode) UnmarshalText(text []byte) error {
	parsed, err := ParseAnalysisMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
