package decision

import (
	"encoding/json"
	"strings"

	"github.com/fentz26/caretaker/internal/models"
)

// keywordRationale is attached to decisions recovered by the keyword scan.
const keywordRationale = "Parsed from provider text response"

type wireDecision struct {
	Action    *string `json:"action"`
	Rationale *string `json:"rationale"`
	Urgency   *string `json:"urgency"`

	// Older prompts asked for reasoning/priority.
	Reasoning *string `json:"reasoning"`
	Priority  *string `json:"priority"`
}

// Parse turns raw provider text into a Decision. It never fails.
//
// The text is first read as a JSON object carrying action, rationale and
// urgency. If that does not work the lower-cased text is scanned for the
// action keywords in vocabulary order and the first one present wins.
func Parse(raw string) models.Decision {
	if d, ok := parseStrict(raw); ok {
		return d
	}
	return parseKeywords(raw)
}

func parseStrict(raw string) (models.Decision, bool) {
	var w wireDecision
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &w); err != nil {
		return models.Decision{}, false
	}

	rationale, urgency := w.Rationale, w.Urgency
	if rationale == nil {
		rationale = w.Reasoning
	}
	if urgency == nil {
		urgency = w.Priority
	}
	if w.Action == nil || rationale == nil || urgency == nil {
		return models.Decision{}, false
	}

	action, err := models.ParseAction(*w.Action)
	if err != nil {
		return models.Decision{}, false
	}
	u, err := models.ParseUrgency(*urgency)
	if err != nil {
		return models.Decision{}, false
	}
	return models.Decision{Action: action, Rationale: *rationale, Urgency: u}, true
}

func parseKeywords(raw string) models.Decision {
	lower := strings.ToLower(raw)
	action := models.ActionWait
	for _, a := range models.Actions {
		if strings.Contains(lower, string(a)) {
			action = a
			break
		}
	}
	return models.Decision{Action: action, Rationale: keywordRationale, Urgency: models.UrgencyMedium}
}
