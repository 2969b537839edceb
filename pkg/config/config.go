// Package config loads unblocker settings from the environment with an
// optional YAML rules overlay, and keeps the active rule set mutable at
// runtime for wizard activation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Defaults for the stall rule.
const (
	DefaultActivityWindowHours = 5
	DefaultThresholdHours      = 1
	defaultExcludedLabels      = "wip,blocked,parked,do-not-merge,waiting-on-external"
)

// Rules is one complete stall-rule configuration.
type Rules struct {
	DefaultRepo         string   `yaml:"default_repo"`
	ReviewerSource      string   `yaml:"reviewer_source"`
	ExcludedLabels      []string `yaml:"excluded_labels"`
	DefaultReviewers    []string `yaml:"default_reviewers"`
	ActivityWindowHours int      `yaml:"activity_window_hours"`
	ThresholdHours      int      `yaml:"threshold_hours"`
}

// FromEnv builds Rules from environment variables, applying defaults for
// anything unset.
func FromEnv() Rules {
	return Rules{
		ExcludedLabels:      splitList(envOr("EXCLUDED_LABELS", defaultExcludedLabels)),
		ActivityWindowHours: envInt("ACTIVITY_WINDOW_HOURS", DefaultActivityWindowHours),
		ThresholdHours:      envInt("S2_THRESHOLD_HOURS", DefaultThresholdHours),
		DefaultReviewers:    splitList(os.Getenv("DEFAULT_REVIEWERS")),
		DefaultRepo:         os.Getenv("DEFAULT_REPO"),
	}
}

// Load builds Rules from the environment and, when path names an existing
// file, overlays the YAML rules file on top. A missing file is not an
// error; a malformed one is.
func Load(path string) (Rules, error) {
	rules := FromEnv()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return Rules{}, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var overlay Rules
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Rules{}, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	if len(overlay.ExcludedLabels) > 0 {
		rules.ExcludedLabels = overlay.ExcludedLabels
	}
	if overlay.ActivityWindowHours > 0 {
		rules.ActivityWindowHours = overlay.ActivityWindowHours
	}
	if overlay.ThresholdHours > 0 {
		rules.ThresholdHours = overlay.ThresholdHours
	}
	if len(overlay.DefaultReviewers) > 0 {
		rules.DefaultReviewers = overlay.DefaultReviewers
	}
	if overlay.DefaultRepo != "" {
		rules.DefaultRepo = overlay.DefaultRepo
	}
	if overlay.ReviewerSource != "" {
		rules.ReviewerSource = overlay.ReviewerSource
	}
	return rules, nil
}

// Store holds the active rule set. Wizard activation swaps rules in while
// analyses read them concurrently.
type Store struct {
	mu    sync.RWMutex
	rules Rules
}

// NewStore returns a store seeded with the given rules.
func NewStore(rules Rules) *Store {
	return &Store{rules: rules}
}

// Rules returns a copy of the active rule set.
func (s *Store) Rules() Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.rules
	r.ExcludedLabels = append([]string(nil), s.rules.ExcludedLabels...)
	r.DefaultReviewers = append([]string(nil), s.rules.DefaultReviewers...)
	return r
}

// Update replaces the active rule set.
func (s *Store) Update(rules Rules) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
