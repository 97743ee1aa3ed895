// Package category classifies products into coarse categories from their
// titles. The rules are data, not code, so they can be replaced from a YAML
// file without touching the scoring or planning logic.
package category

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fallback category when no rule matches.
const General = "general"

// Classifier assigns a category to a product title.
type Classifier interface {
	Classify(title string) string
}

// Rule maps a set of title keywords to a category name.
type Rule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// KeywordClassifier matches lowercase keywords against the title.
// First matching rule wins; rules keep their declared order.
type KeywordClassifier struct {
	rules []Rule
}

// DefaultRules mirror the built-in keyword sets the service ships with.
func DefaultRules() []Rule {
	return []Rule{
		{Category: "electronics", Keywords: []string{"phone", "smartphone", "celular", "laptop", "tablet", "headphone", "earbuds", "smartwatch", "camera", "tv"}},
		{Category: "clothing", Keywords: []string{"clothes", "shirt", "camiseta", "roupa", "dress", "jacket", "shoes", "sneaker", "jeans"}},
		{Category: "home", Keywords: []string{"home", "casa", "kitchen", "decoration", "furniture", "lamp", "garden"}},
		{Category: "beauty", Keywords: []string{"beauty", "cosmetic", "makeup", "skincare", "perfume"}},
		{Category: "sports", Keywords: []string{"sport", "fitness", "gym", "outdoor", "camping", "bike"}},
		{Category: "toys", Keywords: []string{"toy", "game", "kids", "baby", "lego", "puzzle"}},
	}
}

// NewKeywordClassifier builds a classifier from rules. Keywords are
// normalized to lowercase once at construction.
func NewKeywordClassifier(rules []Rule) *KeywordClassifier {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if strings.TrimSpace(r.Category) == "" || len(r.Keywords) == 0 {
			continue
		}
		kw := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				kw = append(kw, k)
			}
		}
		out = append(out, Rule{Category: r.Category, Keywords: kw})
	}
	return &KeywordClassifier{rules: out}
}

// LoadRules reads classification rules from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(b, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}
	return rules, nil
}

// Classify returns the category of the first rule with a keyword contained
// in the title, or General when nothing matches.
func (c *KeywordClassifier) Classify(title string) string {
	t := strings.ToLower(title)
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(t, k) {
				return r.Category
			}
		}
	}
	return General
}

// Categories lists the distinct categories the classifier can emit, sorted.
func (c *KeywordClassifier) Categories() []string {
	set := map[string]struct{}{General: {}}
	for _, r := range c.rules {
		set[r.Category] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
