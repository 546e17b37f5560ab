package rubric

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	// MinRating and MaxRating bound the scoring rubric.
	MinRating = 1
	MaxRating = 5

	// RatingMidpoint is used for degraded evaluations.
	RatingMidpoint = 3

	defaultFollowUpCap = 2
)

// Skill is a single competency assessed during the interview.
type Skill struct {
	ID               string   `mapstructure:"id"`
	Name             string   `mapstructure:"name"`
	Description      string   `mapstructure:"description"`
	Weight           int      `mapstructure:"weight"`
	KeyIndicators    []string `mapstructure:"key-indicators"`
	RedFlags         []string `mapstructure:"red-flags"`
	ExampleQuestions []string `mapstructure:"example-questions"`
}

// Level describes one of the five scoring rubric levels.
type Level struct {
	Score       int      `mapstructure:"score"`
	Label       string   `mapstructure:"label"`
	Description string   `mapstructure:"description"`
	Criteria    []string `mapstructure:"criteria"`
}

// Tier maps a minimum weighted score to a recommendation.
type Tier struct {
	Name        string  `mapstructure:"name"`
	MinScore    float64 `mapstructure:"min-weighted-score"`
	Label       string  `mapstructure:"label"`
	Description string  `mapstructure:"description"`
}

// ProfileField is a required candidate field collected before the assessment.
type ProfileField struct {
	Field    string `mapstructure:"field"`
	Question string `mapstructure:"question"`
}

// Interview holds the conversational flow settings.
type Interview struct {
	OpeningMessage   string         `mapstructure:"opening-message"`
	ClosingMessage   string         `mapstructure:"closing-message"`
	ClosingQuestions []string       `mapstructure:"closing-questions"`
	ProfileFields    []ProfileField `mapstructure:"profile-fields"`
	// FollowUpCap is the number of additional probes allowed per skill
	// on top of the primary question. Nil means unconfigured; zero is a
	// valid value and disables probing.
	FollowUpCap *int `mapstructure:"follow-up-cap"`
}

// Rubric is the full interview configuration. Loaded once at process start
// and never mutated afterwards.
type Rubric struct {
	Company   string    `mapstructure:"company"`
	Role      string    `mapstructure:"role"`
	Context   string    `mapstructure:"context"`
	Skills    []Skill   `mapstructure:"skills"`
	Levels    []Level   `mapstructure:"levels"`
	Tiers     []Tier    `mapstructure:"tiers"`
	Interview Interview `mapstructure:"interview"`
}

// ConfigurationError indicates the rubric configuration is unusable.
// It is fatal: the process must not start with a broken rubric.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("rubric configuration: %s", e.Reason)
}

// Load unmarshals the rubric section from the provided viper instance and
// validates it eagerly.
func Load(v *viper.Viper) (*Rubric, error) {
	var r *Rubric
	if err := v.UnmarshalKey("rubric", &r); err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	if r == nil {
		return nil, &ConfigurationError{Reason: "rubric section is missing"}
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// Validate checks the invariants the rest of the system relies on.
func (r *Rubric) Validate() error {
	if len(r.Skills) == 0 {
		return &ConfigurationError{Reason: "at least one skill is required"}
	}

	seen := make(map[string]bool, len(r.Skills))
	for _, s := range r.Skills {
		if s.ID == "" {
			return &ConfigurationError{Reason: "skill with empty id"}
		}
		if seen[s.ID] {
			return &ConfigurationError{Reason: fmt.Sprintf("duplicate skill id %q", s.ID)}
		}
		seen[s.ID] = true
		if s.Weight <= 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("skill %q must have a positive weight", s.ID)}
		}
		if len(s.ExampleQuestions) == 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("skill %q has no example questions", s.ID)}
		}
	}

	if len(r.Levels) != MaxRating {
		return &ConfigurationError{Reason: fmt.Sprintf("exactly %d rubric levels are required, got %d", MaxRating, len(r.Levels))}
	}

	levels := make(map[int]bool, len(r.Levels))
	for _, l := range r.Levels {
		if l.Score < MinRating || l.Score > MaxRating {
			return &ConfigurationError{Reason: fmt.Sprintf("rubric level score %d is out of range", l.Score)}
		}
		if levels[l.Score] {
			return &ConfigurationError{Reason: fmt.Sprintf("duplicate rubric level %d", l.Score)}
		}
		levels[l.Score] = true
	}

	if err := r.validateTiers(); err != nil {
		return err
	}

	if err := r.validateInterview(); err != nil {
		return err
	}

	return nil
}

func (r *Rubric) validateTiers() error {
	if len(r.Tiers) == 0 {
		return &ConfigurationError{Reason: "at least one recommendation tier is required"}
	}

	prev := -1.0
	for i, t := range r.Tiers {
		if t.Name == "" {
			return &ConfigurationError{Reason: "tier with empty name"}
		}
		if i > 0 && t.MinScore >= prev {
			return &ConfigurationError{Reason: "tier thresholds must strictly decrease"}
		}
		prev = t.MinScore
	}

	// A score of zero must always resolve to the lowest tier.
	if last := r.Tiers[len(r.Tiers)-1]; last.MinScore > 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("lowest tier %q must have a zero threshold", last.Name)}
	}

	return nil
}

func (r *Rubric) validateInterview() error {
	fields := make(map[string]bool, len(r.Interview.ProfileFields))
	for _, f := range r.Interview.ProfileFields {
		if f.Field == "" || f.Question == "" {
			return &ConfigurationError{Reason: "profile field requires both field and question"}
		}
		fields[f.Field] = true
	}

	for _, required := range []string{"name", "email", "location"} {
		if !fields[required] {
			return &ConfigurationError{Reason: fmt.Sprintf("profile field %q is required", required)}
		}
	}

	if r.Interview.OpeningMessage == "" {
		return &ConfigurationError{Reason: "opening message is required"}
	}

	if len(r.Interview.ClosingQuestions) == 0 {
		return &ConfigurationError{Reason: "at least one closing question is required"}
	}

	if r.Interview.FollowUpCap != nil && *r.Interview.FollowUpCap < 0 {
		return &ConfigurationError{Reason: "follow-up cap must not be negative"}
	}

	return nil
}

// FollowUpCap returns the configured per-skill probe cap. The default
// applies only when the key is absent; a configured zero disables probing.
func (r *Rubric) FollowUpCap() int {
	if r.Interview.FollowUpCap != nil {
		return *r.Interview.FollowUpCap
	}
	return defaultFollowUpCap
}

// Skill returns the skill with the given id, or nil.
func (r *Rubric) Skill(id string) *Skill {
	for i := range r.Skills {
		if r.Skills[i].ID == id {
			return &r.Skills[i]
		}
	}
	return nil
}

// TierFor resolves the recommendation tier for a composite score: the
// highest tier whose threshold the score meets or exceeds.
func (r *Rubric) TierFor(composite float64) Tier {
	for _, t := range r.Tiers {
		if composite >= t.MinScore {
			return t
		}
	}
	return r.Tiers[len(r.Tiers)-1]
}
