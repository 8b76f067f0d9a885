// Package catalog holds the ordered question list, tier results and user-facing texts.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"traffic-light-bot/internal/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

// TierResult is what a finished test shows for a tier.
type TierResult struct {
	Label string `yaml:"label" json:"label"`
	Image string `yaml:"image" json:"image"`
	Text  string `yaml:"text" json:"text"`
}

// Messages are the user-facing templates. Placeholders use the {name} form.
type Messages struct {
	Greeting          string `yaml:"greeting" json:"greeting"`
	MenuButton        string `yaml:"menu_button" json:"menu_button"`
	MenuPrompt        string `yaml:"menu_prompt" json:"menu_prompt"`
	StartButton       string `yaml:"start_button" json:"start_button"`
	QuestionHeader    string `yaml:"question_header" json:"question_header"`
	Calculating       string `yaml:"calculating" json:"calculating"`
	ScoreCaption      string `yaml:"score_caption" json:"score_caption"`
	MoreButton        string `yaml:"more_button" json:"more_button"`
	AfterResult       string `yaml:"after_result" json:"after_result"`
	BadAnswer         string `yaml:"bad_answer" json:"bad_answer"`
	BadButton         string `yaml:"bad_button" json:"bad_button"`
	PagesExpired      string `yaml:"pages_expired" json:"pages_expired"`
	AccessDenied      string `yaml:"access_denied" json:"access_denied"`
	AdminMenu         string `yaml:"admin_menu" json:"admin_menu"`
	RecentUsersButton string `yaml:"recent_users_button" json:"recent_users_button"`
	RecentUsersTitle  string `yaml:"recent_users_title" json:"recent_users_title"`
	RecentUsersScore  string `yaml:"recent_users_score" json:"recent_users_score"`
	NoUsers           string `yaml:"no_users" json:"no_users"`
	AdminNewUser      string `yaml:"admin_new_user" json:"admin_new_user"`
	AdminFinished     string `yaml:"admin_finished" json:"admin_finished"`
	Promo             string `yaml:"promo" json:"promo"`
	PlaceholderName   string `yaml:"placeholder_name" json:"placeholder_name"`
}

// Catalog is immutable once loaded.
type Catalog struct {
	Title     string                `yaml:"title" json:"title"`
	Intro     string                `yaml:"intro" json:"intro"`
	Messages  Messages              `yaml:"messages" json:"messages"`
	Results   map[string]TierResult `yaml:"results" json:"results"`
	Questions []domain.Question     `yaml:"questions" json:"questions"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a YAML catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c.index()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() {
	for i := range c.Questions {
		c.Questions[i].Index = i
	}
}

// Normalize assigns question indexes and validates a catalog decoded elsewhere.
func (c *Catalog) Normalize() error {
	c.index()
	return c.Validate()
}

// Validate checks the catalog can drive a full test.
func (c *Catalog) Validate() error {
	if len(c.Questions) == 0 {
		return fmt.Errorf("%w: no questions", domain.ErrInvalidCatalog)
	}
	for i, q := range c.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("%w: question %d has no prompt", domain.ErrInvalidCatalog, i+1)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %d needs at least 2 options", domain.ErrInvalidCatalog, i+1)
		}
	}
	for _, tier := range domain.Tiers {
		res, ok := c.Results[tier.Key()]
		if !ok || res.Label == "" {
			return fmt.Errorf("%w: missing result for tier %s", domain.ErrInvalidCatalog, tier.Key())
		}
	}
	if c.Messages.PlaceholderName == "" {
		return fmt.Errorf("%w: placeholder_name is empty", domain.ErrInvalidCatalog)
	}
	return nil
}

// Len is the number of questions.
func (c *Catalog) Len() int {
	return len(c.Questions)
}

// Question returns the question at index.
func (c *Catalog) Question(index int) (domain.Question, bool) {
	if index < 0 || index >= len(c.Questions) {
		return domain.Question{}, false
	}
	return c.Questions[index], true
}

// ResultFor returns the tier result. Validate guarantees every tier is present.
func (c *Catalog) ResultFor(tier domain.Tier) TierResult {
	return c.Results[tier.Key()]
}

// MaxScore is the highest reachable score.
func (c *Catalog) MaxScore() int {
	total := 0
	for _, q := range c.Questions {
		best := q.Options[0].Points
		for _, o := range q.Options[1:] {
			if o.Points > best {
				best = o.Points
			}
		}
		total += best
	}
	return total
}

// Format replaces {key} placeholders in tmpl.
func Format(tmpl string, kv ...string) string {
	if len(kv) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
