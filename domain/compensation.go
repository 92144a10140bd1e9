package domain

import (
	"time"

	"github.com/google/uuid"
)

// SalaryType classifies a salary component
type SalaryType string

const (
	SalaryBase        SalaryType = "base"
	SalaryGrade       SalaryType = "grade"
	SalaryPerformance SalaryType = "performance"
	SalaryAllowance   SalaryType = "allowance"
)

// BonusType classifies a bonus scheme
type BonusType string

const (
	BonusPerformance   BonusType = "performance"
	BonusProfitSharing BonusType = "profit_sharing"
	BonusSpot          BonusType = "spot"
	BonusSignOn        BonusType = "sign_on"
)

// SalaryBand is the annual pay range for a grade, in JPY
type SalaryBand struct {
	BandID     string `json:"band_id"`
	GradeLevel string `json:"grade_level"`
	Track      string `json:"track"`
	MinSalary  int    `json:"min_salary"`
	MidSalary  int    `json:"mid_salary"`
	MaxSalary  int    `json:"max_salary"`
}

// Spread is the band width as a percentage of the midpoint
func (b SalaryBand) Spread() float64 {
	if b.MidSalary == 0 {
		return 0
	}
	return float64(b.MaxSalary-b.MinSalary) / float64(b.MidSalary) * 100
}

// SalaryComponent is one part of the pay structure
type SalaryComponent struct {
	ComponentID       string     `json:"component_id"`
	Name              string     `json:"name"`
	SalaryType        SalaryType `json:"salary_type"`
	Description       string     `json:"description"`
	IsFixed           bool       `json:"is_fixed"`
	CalculationMethod string     `json:"calculation_method,omitempty"`
}

// BonusStructure describes one bonus scheme
type BonusStructure struct {
	StructureID       string             `json:"structure_id"`
	Name              string             `json:"name"`
	BonusType         BonusType          `json:"bonus_type"`
	Description       string             `json:"description"`
	Frequency         string             `json:"frequency"`
	BaseMonths        float64            `json:"base_months"`
	RatingMultipliers map[string]float64 `json:"rating_multipliers"`
}

// DefaultRatingMultipliers maps evaluation ratings to bonus multipliers
func DefaultRatingMultipliers() map[string]float64 {
	return map[string]float64{"S": 1.5, "A": 1.2, "B": 1.0, "C": 0.8, "D": 0.0}
}

// Allowance is a fixed monthly payment
type Allowance struct {
	AllowanceID string `json:"allowance_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Amount      int    `json:"amount"`
	IsTaxable   bool   `json:"is_taxable"`
}

// CompensationSystem is the pay design of a company
type CompensationSystem struct {
	SystemID                    string            `json:"system_id"`
	CompanyID                   string            `json:"company_id"`
	Version                     int               `json:"version"`
	Name                        string            `json:"name"`
	SalaryBands                 []SalaryBand      `json:"salary_bands"`
	SalaryComponents            []SalaryComponent `json:"salary_components"`
	BonusStructures             []BonusStructure  `json:"bonus_structures"`
	TotalBonusMonths            float64           `json:"total_bonus_months"`
	Allowances                  []Allowance       `json:"allowances"`
	AnnualIncreaseBudgetPercent float64           `json:"annual_increase_budget_percent"`
	PromotionIncreasePercent    float64           `json:"promotion_increase_percent"`
	MarketPosition              string            `json:"market_position"`
	PayForPerformanceRatio      float64           `json:"pay_for_performance_ratio"`
	IndustryMultiplier          float64           `json:"industry_multiplier"`
	DesignPrinciples            []string          `json:"design_principles"`
	CreatedAt                   time.Time         `json:"created_at"`
}

// NewCompensationSystem creates a compensation system with defaults applied
func NewCompensationSystem(companyID string, now time.Time) *CompensationSystem {
	return &CompensationSystem{
		SystemID:                    uuid.New().String(),
		CompanyID:                   companyID,
		Version:                     1,
		Name:                        "Compensation System",
		SalaryBands:                 []SalaryBand{},
		SalaryComponents:            []SalaryComponent{},
		BonusStructures:             []BonusStructure{},
		TotalBonusMonths:            4.0,
		Allowances:                  []Allowance{},
		AnnualIncreaseBudgetPercent: 3.0,
		PromotionIncreasePercent:    10.0,
		MarketPosition:              "50th percentile",
		PayForPerformanceRatio:      0.3,
		IndustryMultiplier:          1.0,
		DesignPrinciples:            []string{},
		CreatedAt:                   now,
	}
}

// BandFor returns the salary band of a grade on a track
func (c *CompensationSystem) BandFor(gradeLevel, track string) (SalaryBand, bool) {
	if track == "" {
		track = string(TrackGeneral)
	}
	for _, b := range c.SalaryBands {
		if b.GradeLevel == gradeLevel && b.Track == track {
			return b, true
		}
	}
	return SalaryBand{}, false
}

// TotalCompensation is the annual breakdown for one employee
type TotalCompensation struct {
	BaseSalary int `json:"base_salary"`
	Bonus      int `json:"bonus"`
	Allowances int `json:"allowances"`
	Total      int `json:"total"`
}

// Calculate returns the annual compensation for a base salary and rating
func (c *CompensationSystem) Calculate(baseSalary int, rating string) TotalCompensation {
	monthly := float64(baseSalary) / 12
	bonus := 0
	for _, b := range c.BonusStructures {
		mult, ok := b.RatingMultipliers[rating]
		if !ok {
			mult = 1.0
		}
		bonus += int(monthly * b.BaseMonths * mult)
	}

	allowances := 0
	for _, a := range c.Allowances {
		allowances += a.Amount * 12
	}

	return TotalCompensation{
		BaseSalary: baseSalary,
		Bonus:      bonus,
		Allowances: allowances,
		Total:      baseSalary + bonus + allowances,
	}
}
