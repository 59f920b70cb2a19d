package analytics

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rules are the classification keywords the snapshot computation matches
// against parcel attributes. Datasets differ in how they spell vacancy and
// ownership, so the defaults below can be overridden from a YAML file.
type Rules struct {
	// RecentSaleYears is how far back a sale still counts as recent.
	RecentSaleYears int `yaml:"recent_sale_years"`

	// VacantClasses are property classes that mean vacant land
	// (102 residential vacant, 202 commercial vacant).
	VacantClasses []string `yaml:"vacant_classes"`

	// VacantStatuses are building statuses that mean an unoccupied structure.
	VacantStatuses []string `yaml:"vacant_statuses"`

	// CityKeywords and LandBankKeywords are matched as substrings of the
	// lowercased taxpayer of record.
	CityKeywords     []string `yaml:"city_keywords"`
	LandBankKeywords []string `yaml:"land_bank_keywords"`

	// DelinquentKeywords are matched as substrings of the tax status.
	DelinquentKeywords []string `yaml:"delinquent_keywords"`
}

// DefaultRules returns the Detroit assessor conventions.
func DefaultRules() Rules {
	return Rules{
		RecentSaleYears:    2,
		VacantClasses:      []string{"102", "202"},
		VacantStatuses:     []string{"vacant", "demolished", "condemned"},
		CityKeywords:       []string{"city of detroit"},
		LandBankKeywords:   []string{"land bank"},
		DelinquentKeywords: []string{"delinquent", "forfeit", "foreclos"},
	}
}

// LoadRules reads classification rules from a YAML file. Fields left empty
// fall back to the defaults.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, eris.Wrapf(err, "analytics: read rules %s", path)
	}

	// The YAML has a top-level "rules" key.
	var wrapper struct {
		Rules Rules `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Rules{}, eris.Wrap(err, "analytics: parse rules")
	}

	defaults := DefaultRules()
	r := wrapper.Rules
	if r.RecentSaleYears <= 0 {
		r.RecentSaleYears = defaults.RecentSaleYears
	}
	if len(r.VacantClasses) == 0 {
		r.VacantClasses = defaults.VacantClasses
	}
	if len(r.VacantStatuses) == 0 {
		r.VacantStatuses = defaults.VacantStatuses
	}
	if len(r.CityKeywords) == 0 {
		r.CityKeywords = defaults.CityKeywords
	}
	if len(r.LandBankKeywords) == 0 {
		r.LandBankKeywords = defaults.LandBankKeywords
	}
	if len(r.DelinquentKeywords) == 0 {
		r.DelinquentKeywords = defaults.DelinquentKeywords
	}
	return r, nil
}

func containsAny(s string, keywords []string) bool {
	s = strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func inSet(s string, values []string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}
