// Package domain holds the typed HR artifacts produced by the design pipeline.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Industry is a supported industry
type Industry string

const (
	IndustryConsulting   Industry = "consulting"
	IndustrySaaS         Industry = "saas"
	IndustryLightFreight Industry = "light_freight"
	IndustryOther        Industry = "other"
)

// ParseIndustry maps free-form input onto a known industry
func ParseIndustry(s string) Industry {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "consulting":
		return IndustryConsulting
	case "saas":
		return IndustrySaaS
	case "light_freight", "light freight":
		return IndustryLightFreight
	default:
		return IndustryOther
	}
}

// CompanySize is a headcount bracket
type CompanySize string

const (
	SizeStartup CompanySize = "startup" // 1-50
	SizeSmall   CompanySize = "small"   // 51-100
	SizeMedium  CompanySize = "medium"  // 101-300
	SizeLarge   CompanySize = "large"   // 301+
)

// SizeFor returns the size bracket for a headcount
func SizeFor(employeeCount int) CompanySize {
	switch {
	case employeeCount <= 50:
		return SizeStartup
	case employeeCount <= 100:
		return SizeSmall
	case employeeCount <= 300:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// Company is the context every design step starts from
type Company struct {
	CompanyID     string      `json:"company_id"`
	Name          string      `json:"name"`
	Industry      Industry    `json:"industry"`
	Size          CompanySize `json:"size"`
	EmployeeCount int         `json:"employee_count"`
	FoundingYear  *int        `json:"founding_year,omitempty"`

	Mission string   `json:"mission"`
	Vision  string   `json:"vision"`
	Values  []string `json:"values"`

	CurrentGradeCount         *int   `json:"current_grade_count,omitempty"`
	HasExistingHRSystem       bool   `json:"has_existing_hr_system"`
	ExistingSystemDescription string `json:"existing_system_description"`

	BusinessModel string `json:"business_model"`
	TargetMarket  string `json:"target_market"`
	GrowthStage   string `json:"growth_stage"`

	DesignGoals []string `json:"design_goals"`
	Constraints []string `json:"constraints"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Normalize assigns an id, derives the size bracket and fills empty lists
func (c *Company) Normalize(now time.Time) {
	if c.CompanyID == "" {
		c.CompanyID = uuid.New().String()
	}
	c.Industry = ParseIndustry(string(c.Industry))
	c.Size = SizeFor(c.EmployeeCount)
	if c.Values == nil {
		c.Values = []string{}
	}
	if c.DesignGoals == nil {
		c.DesignGoals = []string{}
	}
	if c.Constraints == nil {
		c.Constraints = []string{}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}
