package safety

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validation is the outcome of scoring one piece of text.
type Validation struct {
	IsValid     bool     `json:"isValid"`
	SafetyScore float64  `json:"safetyScore"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// RuleFile mirrors the YAML rule document.
type RuleFile struct {
	BlockedKeywords     KeywordFamily `yaml:"blocked_keywords"`
	EducationalKeywords KeywordFamily `yaml:"educational_keywords"`
	Length              Family        `yaml:"length"`
	HomeworkPatterns    PatternFamily `yaml:"homework_patterns"`
	DangerousPatterns   PatternFamily `yaml:"dangerous_patterns"`
}

type Family struct {
	Penalty    float64 `yaml:"penalty"`
	Issue      string  `yaml:"issue"`
	Suggestion string  `yaml:"suggestion"`
}

type KeywordFamily struct {
	Family   `yaml:",inline"`
	Terms    []string       `yaml:"terms"`
	compiled *regexp.Regexp `yaml:"-"`
}

type Pattern struct {
	Id          string         `yaml:"id"`
	Description string         `yaml:"description"`
	Regex       string         `yaml:"regex"`
	compiled    *regexp.Regexp `yaml:"-"`
}

type PatternFamily struct {
	Family   `yaml:",inline"`
	Patterns []Pattern `yaml:"patterns"`
}

// ParseRules decodes and compiles a rule document.
func ParseRules(data []byte) (*RuleFile, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal safety rules: %w", err)
	}
	if err := rf.compile(); err != nil {
		return nil, err
	}
	return &rf, nil
}

func (rf *RuleFile) compile() error {
	if len(rf.BlockedKeywords.Terms) == 0 {
		return errors.New("safety rules: blocked_keywords has no terms")
	}
	if len(rf.EducationalKeywords.Terms) == 0 {
		return errors.New("safety rules: educational_keywords has no terms")
	}
	for _, kf := range []*KeywordFamily{&rf.BlockedKeywords, &rf.EducationalKeywords} {
		re, err := keywordRegexp(kf.Terms)
		if err != nil {
			return err
		}
		kf.compiled = re
	}
	for _, pf := range []*PatternFamily{&rf.HomeworkPatterns, &rf.DangerousPatterns} {
		for i := range pf.Patterns {
			p := &pf.Patterns[i]
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return fmt.Errorf("failed to compile the regex %s (%s): %w", p.Regex, p.Id, err)
			}
			p.compiled = re
		}
	}
	return nil
}

// keywordRegexp builds one case-insensitive, word-bounded alternation.
func keywordRegexp(terms []string) (*regexp.Regexp, error) {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(t)))
	}
	if len(quoted) == 0 {
		return nil, errors.New("safety rules: keyword family has only blank terms")
	}
	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile keyword set: %w", err)
	}
	return re, nil
}

func (kf *KeywordFamily) firstMatch(texts ...string) string {
	for _, text := range texts {
		if kw := kf.compiled.FindString(text); kw != "" {
			return strings.ToLower(kw)
		}
	}
	return ""
}

func (pf *PatternFamily) firstMatch(texts ...string) (Pattern, bool) {
	for _, p := range pf.Patterns {
		for _, text := range texts {
			if p.compiled.MatchString(text) {
				return p, true
			}
		}
	}
	return Pattern{}, false
}
