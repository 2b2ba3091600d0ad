package analyzer

import "fmt"

const severityGuidance = `Severity must be one of: "low", "medium", "high", "urgent".
- low: cosmetic, no repair strictly required
- medium: visible damage, repair recommended
- high: significant damage, repair required before the next tenancy
- urgent: safety hazard or active deterioration (leaks, exposed wiring)`

func strictnessRules(level Strictness) string {
	switch level {
	case StrictnessVeryStrict:
		return `Apply a VERY STRICT standard: report every detectable change, including
minor scuffs, small marks and faint discoloration. When in doubt whether a
change is natural wear or new damage, classify it as new damage. Escalate
severity maximally: grade every finding at the highest severity it could
plausibly warrant.`
	case StrictnessStrict:
		return `Apply a STRICT standard: report clearly visible changes and also flag
minor scuffs and stains as differences. When it is ambiguous whether a change
is natural wear or new damage, classify it as new damage and escalate its
severity one tier above what you would otherwise assign.`
	default:
		return `Apply a STANDARD residential standard: report meaningful changes only.
Normal wear from ordinary use (light scuffs, minor fading) is natural wear,
not new damage.`
	}
}

// buildRoomPrompt produces the instruction text sent alongside the two
// photos. The first image is always the move-in state, the second move-out.
func buildRoomPrompt(roomName string, level Strictness) string {
	return fmt.Sprintf(`You are comparing two photos of the room %q from a rental property
inspection. The FIRST image shows the room at move-in (before the tenancy),
the SECOND image shows the same room at move-out (after the tenancy).

%s

Identify the differences between the two states. For each difference decide
whether it is new damage caused during the tenancy or natural wear, estimate
a repair cost in the local currency, and name where in the room it is.

%s

Respond with ONLY a JSON object, no prose, matching exactly this schema:
{
  "hasDifference": boolean,
  "differences": [
    {
      "description": string,
      "isNewDamage": boolean,
      "isNaturalWear": boolean,
      "severity": "low" | "medium" | "high" | "urgent",
      "estimatedCost": number,
      "location": string
    }
  ],
  "overallAssessment": string,
  "totalEstimatedCost": number
}

If the two photos show no meaningful difference, return "hasDifference": false
with an empty "differences" array.`, roomName, strictnessRules(level), severityGuidance)
}
