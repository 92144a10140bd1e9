package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// GradeTrack is a career track
type GradeTrack string

const (
	TrackManagement GradeTrack = "management"
	TrackSpecialist GradeTrack = "specialist"
	TrackGeneral    GradeTrack = "general"
)

// ParseTrack maps input onto a known track, defaulting to general
func ParseTrack(s string) GradeTrack {
	switch GradeTrack(s) {
	case TrackManagement, TrackSpecialist:
		return GradeTrack(s)
	default:
		return TrackGeneral
	}
}

// CompetencyLevel is the expected level (1-5) of a competency at a grade
type CompetencyLevel struct {
	CompetencyID   string `json:"competency_id"`
	CompetencyName string `json:"competency_name"`
	RequiredLevel  int    `json:"required_level"`
	Description    string `json:"description"`
}

// Grade is one rung of the grading system
type Grade struct {
	GradeID             string            `json:"grade_id"`
	Level               string            `json:"level"`
	Name                string            `json:"name"`
	Track               GradeTrack        `json:"track"`
	Order               int               `json:"order"`
	Description         string            `json:"description"`
	RoleExpectations    []string          `json:"role_expectations"`
	ResponsibilityScope string            `json:"responsibility_scope"`
	CompetencyLevels    []CompetencyLevel `json:"competency_levels"`
	MinTenureMonths     int               `json:"min_tenure_months"`
	TypicalTenureMonths int               `json:"typical_tenure_months"`
}

// GradingSystem is the grade structure of a company
type GradingSystem struct {
	SystemID               string       `json:"system_id"`
	CompanyID              string       `json:"company_id"`
	Version                int          `json:"version"`
	Name                   string       `json:"name"`
	Grades                 []Grade      `json:"grades"`
	Tracks                 []GradeTrack `json:"tracks"`
	HasDualLadder          bool         `json:"has_dual_ladder"`
	MaxGradeLevel          int          `json:"max_grade_level"`
	DesignPrinciples       []string     `json:"design_principles"`
	IndustryConsiderations string       `json:"industry_considerations"`
	CreatedAt              time.Time    `json:"created_at"`
}

// NewGradingSystem creates an empty grading system
func NewGradingSystem(companyID string, now time.Time) *GradingSystem {
	return &GradingSystem{
		SystemID:         uuid.New().String(),
		CompanyID:        companyID,
		Version:          1,
		Name:             "Grading System",
		Grades:           []Grade{},
		Tracks:           []GradeTrack{TrackGeneral},
		MaxGradeLevel:    6,
		DesignPrinciples: []string{},
		CreatedAt:        now,
	}
}

// NewGrade creates a grade with defaults applied
func NewGrade(level, name string, order int) Grade {
	return Grade{
		GradeID:             uuid.New().String(),
		Level:               level,
		Name:                name,
		Track:               TrackGeneral,
		Order:               order,
		RoleExpectations:    []string{},
		CompetencyLevels:    []CompetencyLevel{},
		MinTenureMonths:     12,
		TypicalTenureMonths: 24,
	}
}

// Grade returns the grade with the given level code
func (g *GradingSystem) Grade(level string) (Grade, bool) {
	for _, gr := range g.Grades {
		if gr.Level == level {
			return gr, true
		}
	}
	return Grade{}, false
}

// GradesByTrack returns the grades on one track
func (g *GradingSystem) GradesByTrack(track GradeTrack) []Grade {
	var out []Grade
	for _, gr := range g.Grades {
		if gr.Track == track {
			out = append(out, gr)
		}
	}
	return out
}

// ProgressionPath returns the grades above level on the same track, in order
func (g *GradingSystem) ProgressionPath(level string) []Grade {
	current, ok := g.Grade(level)
	if !ok {
		return nil
	}

	var path []Grade
	for _, gr := range g.Grades {
		if gr.Order > current.Order && gr.Track == current.Track {
			path = append(path, gr)
		}
	}
	sort.Slice(path, func(i, j int) bool { return path[i].Order < path[j].Order })
	return path
}

// Levels returns the grade level codes in declaration order
func (g *GradingSystem) Levels() []string {
	levels := make([]string, 0, len(g.Grades))
	for _, gr := range g.Grades {
		levels = append(levels, gr.Level)
	}
	return levels
}
