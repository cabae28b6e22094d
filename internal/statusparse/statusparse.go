// Package statusparse extracts pet gauges from the chat bot's status messages.
package statusparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/caretaker/internal/models"
)

type gauge struct {
	long  *regexp.Regexp
	short *regexp.Regexp
	set   func(*models.StatusSnapshot, int)
}

func newGauge(emoji, label string, set func(*models.StatusSnapshot, int)) gauge {
	e := regexp.QuoteMeta(emoji)
	return gauge{
		long:  regexp.MustCompile(e + `\s*\|\s*` + label + `:\s*\*\*(\d+)\*\*`),
		short: regexp.MustCompile(e + `\s*\*\*(\d+)\*\*`),
		set:   set,
	}
}

var gauges = []gauge{
	newGauge("🍗", "Hunger", func(s *models.StatusSnapshot, v int) { s.Satiety = v }),
	newGauge("❤️", "Health", func(s *models.StatusSnapshot, v int) { s.Health = v }),
	newGauge("🔋", "Energy", func(s *models.StatusSnapshot, v int) { s.Energy = v }),
	newGauge("🙂", "Happiness", func(s *models.StatusSnapshot, v int) { s.Mood = v }),
	newGauge("🧼", "Clean", func(s *models.StatusSnapshot, v int) { s.Cleanliness = v }),
}

var restingPhrases = []string{
	"PettBro is sleeping 😴",
	"It's time for a nap!",
}

var rooms = []struct {
	location models.Location
	phrases  []string
}{
	{models.LocationBedroom, []string{"🛌** You are in the Bedroom!**", "It's time for a nap!"}},
	{models.LocationBathroom, []string{"🚽** You are in the Bathroom!**", "🛁 Bath time!"}},
	{models.LocationKitchen, []string{"🍽** You're in the Kitchen!**", "🍳 Scroll to find the desired food!"}},
	{models.LocationGameRoom, []string{"🕹️** Welcome to the Game Room!**", "🎮 Ready for a game time?"}},
}

// Extract reads a snapshot out of raw message text. Gauges that are not
// present stay zero; values are clamped to 0-100.
func Extract(raw string, now time.Time) models.StatusSnapshot {
	s := models.StatusSnapshot{CapturedAt: now}
	if raw == "" {
		return s
	}

	for _, g := range gauges {
		m := g.long.FindStringSubmatch(raw)
		if m == nil {
			m = g.short.FindStringSubmatch(raw)
		}
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		g.set(&s, v)
	}

	for _, phrase := range restingPhrases {
		if strings.Contains(raw, phrase) {
			s.Resting = true
			break
		}
	}

	for _, r := range rooms {
		if containsAny(raw, r.phrases) {
			loc := r.location
			s.Location = &loc
			break
		}
	}

	return s.Normalize()
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
