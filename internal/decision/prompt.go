package decision

import (
	"bytes"
	"text/template"

	"github.com/fentz26/caretaker/internal/models"
)

var promptTemplate = template.Must(template.New("prompt").Parse(`You are a pet caretaker. Based on the pet's current stats, decide what single action to take next.
Do not repeat one action just because it worked before.

AVAILABLE ACTIONS:
1. "feed" - go to the kitchen and feed the pet.
   - Do not feed again when hunger is above 50, the pet is full.
   - Raises health +5, happiness +5, hunger +15.
   - Requires health above 25, otherwise call emergency.
2. "bathe" - go to the bathroom and clean the pet.
   - Sets clean to 100, happiness +2.
   - Requires hunger, happiness and health not too low.
3. "sleep" - go to the bedroom and put the pet to sleep.
   - Restores energy and blocks other actions until wake.
   - When energy is below 20 put the pet to sleep and leave it until energy is above 40.
   - If the pet is already sleeping answer "wait" instead.
4. "wake" - wake the pet so other actions are possible.
5. "play" - go to the game room and play.
   - Raises happiness +8 and XP, lowers health -5, energy -8, clean -4, hunger -7.
   - Only works when energy is above 20.
6. "emergency" - emergency care, required when health is below 25.
7. "wait" - nothing to do, keep watching.

CURRENT PET STATUS:
- Energy: {{.Energy}}%
- Clean: {{.Cleanliness}}%
- Health: {{.Health}}%
- Hunger: {{.Satiety}}%
- Happiness: {{.Mood}}%
- Is Sleeping: {{.Resting}}
{{- with .Location}}
- Room: {{.}}
{{- end}}

If energy is above 60 make sure the pet is awake.

Respond with exactly this JSON object and nothing else:
{"action": "action_name", "rationale": "brief explanation", "urgency": "high|medium|low"}
`))

// BuildPrompt renders the caretaker instructions for a snapshot.
func BuildPrompt(s models.StatusSnapshot) string {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, s); err != nil {
		// The template only reads plain fields of s.
		panic(err)
	}
	return buf.String()
}
