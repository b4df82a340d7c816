package triage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hrygo/mindcare/ai/core/llm"
)

// ErrInvalidAssessment is returned when generated output does not match the
// assessment schema.
var ErrInvalidAssessment = errors.New("invalid crisis assessment")

// IndicatorAssessmentUnavailable marks a fail-safe assessment.
const IndicatorAssessmentUnavailable = "assessment_unavailable"

const failSafeAction = "We could not complete a safety check. If you are in immediate danger, " +
	"call 911 or call or text 988 (Suicide & Crisis Lifeline) now."

// CrisisAssessment is the structured result of risk triage.
type CrisisAssessment struct {
	RiskLevel                     RiskLevel `json:"riskLevel"`
	Indicators                    []string  `json:"indicators"`
	RecommendedAction             string    `json:"recommendedAction"`
	RequiresImmediateIntervention bool      `json:"requiresImmediateIntervention"`
}

// FailSafeAssessment is used whenever triage cannot produce a valid result.
func FailSafeAssessment() *CrisisAssessment {
	return &CrisisAssessment{
		RiskLevel:                     RiskHigh,
		Indicators:                    []string{IndicatorAssessmentUnavailable},
		RecommendedAction:             failSafeAction,
		RequiresImmediateIntervention: true,
	}
}

// rawAssessment keeps presence information for validation.
type rawAssessment struct {
	RiskLevel                     *string   `json:"riskLevel"`
	Indicators                    *[]string `json:"indicators"`
	RecommendedAction             *string   `json:"recommendedAction"`
	RequiresImmediateIntervention *bool     `json:"requiresImmediateIntervention"`
}

// ParseAssessment decodes and validates generated assessment text. Code
// fences and text around the JSON object are ignored; unknown fields are not.
func ParseAssessment(content string) (*CrisisAssessment, error) {
	body := extractJSONObject(content)
	if body == "" {
		return nil, fmt.Errorf("%w: no JSON object in output", ErrInvalidAssessment)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	var raw rawAssessment
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssessment, err)
	}

	switch {
	case raw.RiskLevel == nil:
		return nil, fmt.Errorf("%w: riskLevel missing", ErrInvalidAssessment)
	case raw.Indicators == nil:
		return nil, fmt.Errorf("%w: indicators missing", ErrInvalidAssessment)
	case raw.RecommendedAction == nil || strings.TrimSpace(*raw.RecommendedAction) == "":
		return nil, fmt.Errorf("%w: recommendedAction missing", ErrInvalidAssessment)
	case raw.RequiresImmediateIntervention == nil:
		return nil, fmt.Errorf("%w: requiresImmediateIntervention missing", ErrInvalidAssessment)
	}

	level, err := ParseRiskLevel(*raw.RiskLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssessment, err)
	}
	return &CrisisAssessment{
		RiskLevel:                     level,
		Indicators:                    append([]string{}, (*raw.Indicators)...),
		RecommendedAction:             strings.TrimSpace(*raw.RecommendedAction),
		RequiresImmediateIntervention: *raw.RequiresImmediateIntervention,
	}, nil
}

func extractJSONObject(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// assessmentSchema is sent as the response format of the triage call.
var assessmentSchema = &llm.JSONSchema{
	Type: "object",
	Properties: map[string]*llm.JSONSchema{
		"riskLevel": {
			Type: "string",
			Enum: riskLevelNames[:],
		},
		"indicators": {
			Type:        "array",
			Description: "Specific phrases or signals that informed the risk level",
			Items:       &llm.JSONSchema{Type: "string"},
		},
		"recommendedAction": {
			Type:        "string",
			Description: "What should happen next",
		},
		"requiresImmediateIntervention": {
			Type: "boolean",
		},
	},
	Required: []string{"riskLevel", "indicators", "recommendedAction", "requiresImmediateIntervention"},
}
