package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/superagent/debatecore/internal/models"
)

// PanelConfig is the submit-time configuration for one debate: its mode,
// its seats, and the budget ceiling the pipeline enforces.
type PanelConfig struct {
	Mode          string          `yaml:"mode" json:"mode"`
	Seats         []SeatSpec      `yaml:"seats" json:"seats"`
	RoutingPolicy string          `yaml:"routing_policy,omitempty" json:"routing_policy,omitempty"`
	Budget        models.BudgetConfig `yaml:"budget,omitempty" json:"budget,omitempty"`
	Judges        []string        `yaml:"judges" json:"judges"`
	Synthesizer   string          `yaml:"synthesizer,omitempty" json:"synthesizer,omitempty"`
}

// SeatSpec is the submit-time description of a panel seat, mirroring
// models.Seat but carrying optional per-seat LLM overrides before routing
// resolves a concrete model.
type SeatSpec struct {
	SeatID             string  `yaml:"seat_id" json:"seat_id"`
	DisplayName        string  `yaml:"display_name" json:"display_name"`
	ProviderKey        string  `yaml:"provider_key" json:"provider_key"`
	Model              string  `yaml:"model" json:"model"`
	RoleProfile        string  `yaml:"role_profile" json:"role_profile"`
	Temperature        float64 `yaml:"temperature" json:"temperature"`
	DebateStyle        string  `yaml:"debate_style,omitempty" json:"debate_style,omitempty"`
	ArgumentationStyle string  `yaml:"argumentation_style,omitempty" json:"argumentation_style,omitempty"`
	Enabled            bool    `yaml:"enabled" json:"enabled"`
}

// LoadPanelFromFile reads a YAML panel template from path and validates it.
// Operators check reusable panel shapes (a standard debate panel, a
// parliament panel, ...) into version control and reference them by path
// at submit time instead of repeating the seat list in every request.
func LoadPanelFromFile(path string) (*PanelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read panel config %s: %w", path, err)
	}

	var cfg PanelConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse panel config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid panel config %s: %w", path, err)
	}
	return &cfg, nil
}

var validModes = []string{"debate", "parliament", "conversation"}
var validRoleProfiles = []string{
	"optimist", "skeptic", "risk_officer", "architect", "chair",
	"advocate", "critic", "pragmatist", "generalist",
}
var validDebateStyles = []string{"analytical", "creative", "balanced", "aggressive", "diplomatic", "technical", "critical"}
var validArgumentationStyles = []string{"logical", "emotional", "evidence_based", "hypothetical", "socratic"}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

// Validate enforces the invariants spec §3 states for Debate/Seat: a seat
// ID unique within the panel, a role profile and provider key that resolve
// in the registry, and a mode this build recognizes.
func (p *PanelConfig) Validate() error {
	if !contains(validModes, p.Mode) {
		return fmt.Errorf("invalid panel mode: %s, must be one of %v", p.Mode, validModes)
	}
	if len(p.Seats) == 0 {
		return fmt.Errorf("panel must declare at least one seat")
	}
	seen := make(map[string]bool, len(p.Seats))
	enabledCount := 0
	for i, seat := range p.Seats {
		if err := seat.Validate(); err != nil {
			return fmt.Errorf("invalid seat at index %d: %w", i, err)
		}
		if seen[seat.SeatID] {
			return fmt.Errorf("duplicate seat_id: %s", seat.SeatID)
		}
		seen[seat.SeatID] = true
		if seat.Enabled {
			enabledCount++
		}
	}
	if enabledCount == 0 {
		return fmt.Errorf("panel must have at least one enabled seat")
	}
	if len(p.Judges) == 0 {
		return fmt.Errorf("panel must declare at least one judge")
	}
	return nil
}

// Validate checks one seat's shape in isolation; it does not resolve
// provider_key against a live registry (that happens in internal/router).
func (s *SeatSpec) Validate() error {
	if s.SeatID == "" {
		return fmt.Errorf("seat_id is required")
	}
	if s.ProviderKey == "" {
		return fmt.Errorf("provider_key is required")
	}
	if s.RoleProfile == "" {
		return fmt.Errorf("role_profile is required")
	}
	if !contains(validRoleProfiles, s.RoleProfile) {
		return fmt.Errorf("invalid role_profile: %s, must be one of %v", s.RoleProfile, validRoleProfiles)
	}
	if s.Temperature < 0.0 || s.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", s.Temperature)
	}
	if s.DebateStyle != "" && !contains(validDebateStyles, s.DebateStyle) {
		return fmt.Errorf("invalid debate_style: %s, must be one of %v", s.DebateStyle, validDebateStyles)
	}
	if s.ArgumentationStyle != "" && !contains(validArgumentationStyles, s.ArgumentationStyle) {
		return fmt.Errorf("invalid argumentation_style: %s, must be one of %v", s.ArgumentationStyle, validArgumentationStyles)
	}
	return nil
}

// ToModelSeats converts the validated submit-time spec into the persisted
// models.Seat shape, skipping disabled seats.
func (p *PanelConfig) ToModelSeats() []models.Seat {
	seats := make([]models.Seat, 0, len(p.Seats))
	for _, s := range p.Seats {
		if !s.Enabled {
			continue
		}
		seats = append(seats, models.Seat{
			SeatID:             s.SeatID,
			DisplayName:        s.DisplayName,
			ProviderKey:        s.ProviderKey,
			Model:              s.Model,
			RoleProfile:        s.RoleProfile,
			Temperature:        s.Temperature,
			DebateStyle:        s.DebateStyle,
			ArgumentationStyle: s.ArgumentationStyle,
		})
	}
	return seats
}
