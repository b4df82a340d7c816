package triage

import "fmt"

const (
	assessmentTemperature = 0.3
	assessmentMaxTokens   = 512
	assessmentSchemaName  = "crisis_assessment"
)

const assessmentInstructions = `You are a crisis detection specialist. Your role is to:
1. Analyze user messages for signs of crisis, self-harm, or suicidal ideation
2. Assess the severity and urgency of the situation
3. Provide immediate safety recommendations
4. Never provide therapy or counseling - only crisis assessment

Crisis indicators include:
- Explicit mentions of self-harm or suicide
- Expressions of hopelessness or worthlessness
- Talk of saying goodbye or giving away possessions
- Sudden mood changes or withdrawal
- Substance abuse mentions
- Recent trauma or loss

Respond only with a JSON object:
{
  "riskLevel": "none" | "low" | "medium" | "high" | "critical",
  "indicators": ["list of detected indicators"],
  "recommendedAction": "specific action to take",
  "requiresImmediateIntervention": boolean
}`

func assessmentPrompt(text string) string {
	return fmt.Sprintf("Analyze this message for crisis indicators:\n\n%q\n\nProvide assessment as JSON.", text)
}
