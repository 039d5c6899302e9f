package domain

import "time"

// UsageRecord is one append-only ledger entry describing provider consumption for an item.
type UsageRecord struct {
	ID           string
	Date         time.Time
	Region       string
	Provider     string
	CallCount    int
	InputTokens  int
	OutputTokens int
	ItemID       string
	CreatedAt    time.Time
}

// TotalTokens returns input plus output tokens.
func (u UsageRecord) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// UsageSummary aggregates ledger rows for quota accounting.
type UsageSummary struct {
	Calls  int `json:"calls"`
	Tokens int `json:"tokens"`
}

// GuardConfig is the singleton eligibility configuration owned by an admin collaborator.
type GuardConfig struct {
	Enabled           bool     `yaml:"enabled"`
	EnabledRegions    []string `yaml:"enabledRegions"`
	DailyCallLimit    int      `yaml:"dailyCallLimit"`
	MonthlyTokenLimit int      `yaml:"monthlyTokenLimit"`
	MaxInputLength    int      `yaml:"maxInputLength"`
}

// RegionEnabled reports whether the allow-list admits region. An empty list admits all.
func (c GuardConfig) RegionEnabled(region string) bool {
	if len(c.EnabledRegions) == 0 {
		return true
	}
	for _, r := range c.EnabledRegions {
		if r == region {
			return true
		}
	}
	return false
}
