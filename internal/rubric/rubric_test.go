package rubric

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

const validConfig = `
rubric:
  company: Acme
  role: Backend Engineer
  skills:
    - id: go
      name: Go
      weight: 5
      example-questions:
        - Tell me about a Go service you shipped.
    - id: comms
      name: Communication
      weight: 3
      example-questions:
        - Describe a disagreement you resolved.
  levels:
    - {score: 1, label: None}
    - {score: 2, label: Weak}
    - {score: 3, label: Adequate}
    - {score: 4, label: Strong}
    - {score: 5, label: Exceptional}
  tiers:
    - {name: strong_yes, min-weighted-score: 4.0, label: Strong yes}
    - {name: "yes", min-weighted-score: 3.2, label: "Yes"}
    - {name: maybe, min-weighted-score: 2.5, label: Maybe}
    - {name: "no", min-weighted-score: 0, label: "No"}
  interview:
    opening-message: Welcome!
    closing-questions:
      - Any questions for us?
    profile-fields:
      - {field: name, question: "What is your name?"}
      - {field: email, question: "What is your email?"}
      - {field: location, question: "Where are you based?"}
`

func loadFromYAML(t *testing.T, raw string) (*Rubric, error) {
	t.Helper()

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewBufferString(raw)); err != nil {
		t.Fatalf("reading test config: %v", err)
	}

	return Load(v)
}

func TestLoadValidConfig(t *testing.T) {
	r, err := loadFromYAML(t, validConfig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(r.Skills) != 2 {
		t.Fatalf("expected 2 skills, got %d", len(r.Skills))
	}

	if r.Skills[0].Weight != 5 {
		t.Fatalf("expected weight 5, got %d", r.Skills[0].Weight)
	}

	if got := r.FollowUpCap(); got != defaultFollowUpCap {
		t.Fatalf("expected default follow-up cap, got %d", got)
	}
}

func TestFollowUpCapZeroDisablesProbing(t *testing.T) {
	raw := strings.Replace(validConfig, "  interview:\n", "  interview:\n    follow-up-cap: 0\n", 1)

	r, err := loadFromYAML(t, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := r.FollowUpCap(); got != 0 {
		t.Fatalf("expected a configured zero cap to stick, got %d", got)
	}
}

func TestLoadMissingSection(t *testing.T) {
	_, err := loadFromYAML(t, "server:\n  listen: :8080\n")
	if err == nil {
		t.Fatalf("expected an error for a missing rubric section")
	}

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(r *Rubric)
		want   string
	}{
		{
			name:   "no skills",
			mutate: func(r *Rubric) { r.Skills = nil },
			want:   "at least one skill",
		},
		{
			name:   "duplicate skill id",
			mutate: func(r *Rubric) { r.Skills[1].ID = r.Skills[0].ID },
			want:   "duplicate skill id",
		},
		{
			name:   "zero weight",
			mutate: func(r *Rubric) { r.Skills[0].Weight = 0 },
			want:   "positive weight",
		},
		{
			name:   "no example questions",
			mutate: func(r *Rubric) { r.Skills[0].ExampleQuestions = nil },
			want:   "no example questions",
		},
		{
			name:   "wrong level count",
			mutate: func(r *Rubric) { r.Levels = r.Levels[:4] },
			want:   "exactly 5 rubric levels",
		},
		{
			name:   "duplicate level",
			mutate: func(r *Rubric) { r.Levels[1].Score = 1 },
			want:   "duplicate rubric level",
		},
		{
			name:   "non-decreasing tiers",
			mutate: func(r *Rubric) { r.Tiers[1].MinScore = 4.5 },
			want:   "strictly decrease",
		},
		{
			name:   "lowest tier above zero",
			mutate: func(r *Rubric) { r.Tiers[len(r.Tiers)-1].MinScore = 0.5 },
			want:   "zero threshold",
		},
		{
			name: "missing email field",
			mutate: func(r *Rubric) {
				r.Interview.ProfileFields = []ProfileField{
					{Field: "name", Question: "Name?"},
					{Field: "location", Question: "Location?"},
				}
			},
			want: `profile field "email"`,
		},
		{
			name:   "missing opening message",
			mutate: func(r *Rubric) { r.Interview.OpeningMessage = "" },
			want:   "opening message",
		},
		{
			name:   "no closing questions",
			mutate: func(r *Rubric) { r.Interview.ClosingQuestions = nil },
			want:   "closing question",
		},
		{
			name:   "negative cap",
			mutate: func(r *Rubric) { n := -1; r.Interview.FollowUpCap = &n },
			want:   "must not be negative",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := loadFromYAML(t, validConfig)
			if err != nil {
				t.Fatalf("base config must be valid: %v", err)
			}

			tc.mutate(r)

			err = r.Validate()
			if err == nil {
				t.Fatalf("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %q", tc.want, err.Error())
			}
		})
	}
}

func TestTierFor(t *testing.T) {
	r, err := loadFromYAML(t, validConfig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		composite float64
		tier      string
	}{
		{5.0, "strong_yes"},
		{4.0, "strong_yes"}, // thresholds are inclusive
		{3.9, "yes"},
		{3.2, "yes"},
		{2.5, "maybe"},
		{2.4, "no"},
		{0, "no"},
	}

	for _, tc := range cases {
		if got := r.TierFor(tc.composite); got.Name != tc.tier {
			t.Fatalf("composite %.1f: expected tier %q, got %q", tc.composite, tc.tier, got.Name)
		}
	}
}

func TestSkillLookup(t *testing.T) {
	r, err := loadFromYAML(t, validConfig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s := r.Skill("go"); s == nil || s.Name != "Go" {
		t.Fatalf("expected to find the go skill, got %v", s)
	}

	if s := r.Skill("missing"); s != nil {
		t.Fatalf("expected nil for an unknown skill, got %v", s)
	}
}
