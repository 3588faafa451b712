// Package safety scores user and assistant text for the tutoring chat.
//
// Scoring is local pattern matching: a text starts at 1.0 and loses a fixed
// penalty for each rule family it trips (blocked keywords, missing
// educational indicators, excessive length, homework-request patterns,
// dangerous-content patterns). Each family applies at most once. Text that
// carries markup is also matched with the markup stripped, so tags can
// neither hide a keyword nor swallow the rest of a message like "x<y".
package safety

import (
	"fmt"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"tutor/tutor/services/safety/rules"
	"tutor/tutor/utils/textutil"
)

type Options struct {
	// MinScore is the lowest score a valid text may have.
	MinScore float64
	// MaxLength is measured in runes; longer texts lose the length penalty.
	MaxLength int
	// StrictIssues makes any recorded issue invalidate the text, whatever
	// the score.
	StrictIssues bool
}

func DefaultOptions() Options {
	return Options{MinScore: 0.7, MaxLength: 2000, StrictIssues: true}
}

// Scorer is immutable after construction and safe for concurrent use.
type Scorer struct {
	rules *RuleFile
	opts  Options
}

// LoadRules parses the rule file at path, or the embedded defaults when path
// is empty.
func LoadRules(path string) (*RuleFile, error) {
	if path == "" {
		return ParseRules(rules.Default)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read safety rules %s: %w", path, err)
	}
	return ParseRules(data)
}

func NewScorer(rf *RuleFile, opts Options) *Scorer {
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultOptions().MaxLength
	}
	return &Scorer{rules: rf, opts: opts}
}

// NewDefaultScorer builds a scorer from the embedded rules.
func NewDefaultScorer(opts Options) (*Scorer, error) {
	rf, err := LoadRules("")
	if err != nil {
		return nil, err
	}
	return NewScorer(rf, opts), nil
}

func (s *Scorer) Options() Options {
	return s.opts
}

// Validate scores text. It never fails; malformed input simply scores low.
func (s *Scorer) Validate(text string) Validation {
	score := 1.0
	issues := []string{}
	suggestions := []string{}
	flag := func(f Family, penalty float64, arg any) {
		score -= penalty
		issues = append(issues, render(f.Issue, arg))
		if f.Suggestion != "" {
			suggestions = append(suggestions, f.Suggestion)
		}
	}

	texts := []string{text}
	if visible := textutil.StripMarkup(text); visible != textutil.CollapseSpace(text) {
		texts = append(texts, visible)
	}

	r := s.rules
	if kw := r.BlockedKeywords.firstMatch(texts...); kw != "" {
		flag(r.BlockedKeywords.Family, r.BlockedKeywords.Penalty, kw)
	}
	if r.EducationalKeywords.firstMatch(texts...) == "" {
		flag(r.EducationalKeywords.Family, r.EducationalKeywords.Penalty, nil)
	}
	if utf8.RuneCountInString(text) > s.opts.MaxLength {
		flag(r.Length, r.Length.Penalty, s.opts.MaxLength)
	}
	if p, ok := r.HomeworkPatterns.firstMatch(texts...); ok {
		flag(r.HomeworkPatterns.Family, r.HomeworkPatterns.Penalty, p.Description)
	}
	if p, ok := r.DangerousPatterns.firstMatch(texts...); ok {
		flag(r.DangerousPatterns.Family, r.DangerousPatterns.Penalty, p.Description)
	}

	score = clamp(math.Round(score*100) / 100)
	valid := score >= s.opts.MinScore
	if s.opts.StrictIssues && len(issues) > 0 {
		valid = false
	}
	return Validation{
		IsValid:     valid,
		SafetyScore: score,
		Issues:      issues,
		Suggestions: suggestions,
	}
}

func render(format string, arg any) string {
	if arg == nil || !strings.Contains(format, "%") {
		return format
	}
	return fmt.Sprintf(format, arg)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
