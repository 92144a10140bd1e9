// Package validation checks company input and generated artifacts against
// JSON Schema (Draft 2020-12).
package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sicko7947/hrflow"
)

// Schema names
const (
	Company            = "company"
	EnrichedContext    = "enriched_context"
	TalentProfile      = "talent_profile"
	GradingSystem      = "grading_system"
	EvaluationSystem   = "evaluation_system"
	CompensationSystem = "compensation_system"
)

const schemaBase = "https://hrflow.dev/schemas/"

var schemaDocs = map[string]string{
	Company: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "industry", "employee_count"],
  "properties": {
    "company_id": {"type": "string"},
    "name": {"type": "string", "minLength": 1},
    "industry": {"type": "string", "minLength": 1},
    "employee_count": {"type": "integer", "minimum": 1},
    "founding_year": {"type": ["integer", "null"], "minimum": 1800},
    "mission": {"type": "string"},
    "vision": {"type": "string"},
    "values": {"$ref": "#/$defs/strings"},
    "current_grade_count": {"type": ["integer", "null"], "minimum": 1},
    "has_existing_hr_system": {"type": "boolean"},
    "existing_system_description": {"type": "string"},
    "business_model": {"type": "string"},
    "target_market": {"type": "string"},
    "growth_stage": {"type": "string"},
    "design_goals": {"$ref": "#/$defs/strings"},
    "constraints": {"$ref": "#/$defs/strings"}
  },
  "$defs": {
    "strings": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`,
	EnrichedContext: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["industry_characteristics"],
  "properties": {
    "industry_characteristics": {"type": "string"},
    "recommended_grade_count": {"type": "integer", "minimum": 1, "maximum": 12},
    "key_competencies_for_industry": {"type": "array", "items": {"type": "string"}},
    "design_considerations": {"type": "array", "items": {"type": "string"}},
    "potential_challenges": {"type": "array", "items": {"type": "string"}}
  }
}`,
	TalentProfile: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["competencies"],
  "properties": {
    "vision_statement": {"type": "string"},
    "competencies": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "weight": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
          "elements": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "description": {"type": "string"},
                "behavioral_indicators": {"type": "array", "items": {"type": "string"}}
              }
            }
          }
        }
      }
    }
  }
}`,
	GradingSystem: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["grades"],
  "properties": {
    "has_dual_ladder": {"type": "boolean"},
    "design_principles": {"type": "array", "items": {"type": "string"}},
    "grades": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["level", "name"],
        "properties": {
          "level": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "track": {"type": "string"},
          "order": {"type": "integer", "minimum": 1},
          "description": {"type": "string"},
          "role_expectations": {"type": "array", "items": {"type": "string"}},
          "responsibility_scope": {"type": "string"},
          "min_tenure_months": {"type": "integer", "minimum": 0},
          "competency_levels": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["competency_name"],
              "properties": {
                "competency_name": {"type": "string"},
                "required_level": {"type": "integer", "minimum": 1, "maximum": 5}
              }
            }
          }
        }
      }
    }
  }
}`,
	EvaluationSystem: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["criteria"],
  "properties": {
    "evaluation_period": {"type": "string"},
    "competency_weight": {"type": "number", "minimum": 0, "maximum": 1},
    "performance_weight": {"type": "number", "minimum": 0, "maximum": 1},
    "has_self_evaluation": {"type": "boolean"},
    "calibration_required": {"type": "boolean"},
    "design_principles": {"type": "array", "items": {"type": "string"}},
    "criteria": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "evaluation_type": {"type": "string"},
          "weight": {"type": "number", "minimum": 0, "maximum": 1},
          "rating_descriptors": {"type": "object", "additionalProperties": {"type": "string"}}
        }
      }
    }
  }
}`,
	CompensationSystem: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["salary_bands"],
  "properties": {
    "market_position": {"type": "string"},
    "pay_for_performance_ratio": {"type": "number", "minimum": 0, "maximum": 1},
    "annual_increase_budget_percent": {"type": "number", "minimum": 0},
    "promotion_increase_percent": {"type": "number", "minimum": 0},
    "bonus_months": {"type": "number", "minimum": 0},
    "design_principles": {"type": "array", "items": {"type": "string"}},
    "salary_bands": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["grade_level", "min_salary", "max_salary"],
        "properties": {
          "grade_level": {"type": "string", "minLength": 1},
          "min_salary": {"type": "integer", "minimum": 0},
          "mid_salary": {"type": "integer", "minimum": 0},
          "max_salary": {"type": "integer", "minimum": 0}
        }
      }
    },
    "allowances": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "amount": {"type": "integer", "minimum": 0},
          "description": {"type": "string"}
        }
      }
    }
  }
}`,
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.AssertFormat()

		for name, src := range schemaDocs {
			doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
			if err != nil {
				compileErr = fmt.Errorf("unmarshal %s schema: %w", name, err)
				return
			}
			if err := c.AddResource(schemaBase+name+".json", doc); err != nil {
				compileErr = fmt.Errorf("add %s schema: %w", name, err)
				return
			}
		}

		out := make(map[string]*jsonschema.Schema, len(schemaDocs))
		for name := range schemaDocs {
			s, err := c.Compile(schemaBase + name + ".json")
			if err != nil {
				compileErr = fmt.Errorf("compile %s schema: %w", name, err)
				return
			}
			out[name] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// Names lists the known schema names
func Names() []string {
	names := make([]string, 0, len(schemaDocs))
	for name := range schemaDocs {
		names = append(names, name)
	}
	return names
}

// Validate checks v against the named schema. Violations are returned as a
// VALIDATION_ERROR with a "violations" detail.
func Validate(name string, v any) error {
	all, err := schemas()
	if err != nil {
		return err
	}
	s, ok := all[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	doc, err := toJSONValue(v)
	if err != nil {
		return hrflow.ValidationError("%s is not valid JSON", name).WithCause(err)
	}
	if err := s.Validate(doc); err != nil {
		return toError(name, err)
	}
	return nil
}

// toJSONValue round-trips v so numbers become json.Number
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

func toError(name string, err error) *hrflow.Error {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return hrflow.ValidationError("invalid %s: %v", name, err)
	}

	violations := collectViolations(verr)
	if len(violations) == 1 {
		return hrflow.ValidationError("invalid %s: %s", name, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	return hrflow.ValidationError("invalid %s: %d violations", name, len(violations)).
		WithDetails(map[string]any{"violations": violations})
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
