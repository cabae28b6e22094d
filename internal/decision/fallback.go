package decision

import "github.com/fentz26/caretaker/internal/models"

// Fallback picks an action from the snapshot alone. It is pure and total:
// rules are checked from most to least severe and the first match wins.
func Fallback(s models.StatusSnapshot) models.Decision {
	d := fallback(s)
	d.Source = models.SourceFallback
	return d
}

func fallback(s models.StatusSnapshot) models.Decision {
	switch {
	case s.Health < 25:
		return models.Decision{Action: models.ActionEmergencyCare, Rationale: "Critical health - emergency needed", Urgency: models.UrgencyHigh}
	case s.Resting && s.Energy > 45:
		return models.Decision{Action: models.ActionWake, Rationale: "Pet well-rested, should wake up", Urgency: models.UrgencyMedium}
	case !s.Resting && s.Satiety < 30:
		return models.Decision{Action: models.ActionFeed, Rationale: "Pet is hungry", Urgency: models.UrgencyHigh}
	case !s.Resting && s.Energy < 20:
		return models.Decision{Action: models.ActionRest, Rationale: "Pet needs rest", Urgency: models.UrgencyHigh}
	case !s.Resting && s.Cleanliness < 40:
		return models.Decision{Action: models.ActionBathe, Rationale: "Pet needs cleaning", Urgency: models.UrgencyMedium}
	case !s.Resting && s.Mood < 40 && s.Energy > 40:
		return models.Decision{Action: models.ActionPlay, Rationale: "Pet needs fun", Urgency: models.UrgencyLow}
	}
	return models.Decision{Action: models.ActionWait, Rationale: "All stats acceptable", Urgency: models.UrgencyLow}
}
