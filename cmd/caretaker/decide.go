package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fentz26/caretaker/internal/decision"
	"github.com/fentz26/caretaker/internal/logger"
	"github.com/fentz26/caretaker/internal/models"
	"github.com/spf13/cobra"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Ask the decision chain once for a hand-written status",
	Long: `Builds a status snapshot from flags and runs it through the configured
decision providers, or through the local fallback policy with --local.`,
	RunE: runDecide,
}

var (
	decideSnap    models.StatusSnapshot
	decideRoom    string
	decideLocal   bool
	decideTimeout time.Duration
	decidePrompt  bool
)

func init() {
	f := decideCmd.Flags()
	f.IntVar(&decideSnap.Energy, "energy", 100, "Energy gauge (0-100)")
	f.IntVar(&decideSnap.Cleanliness, "clean", 100, "Cleanliness gauge (0-100)")
	f.IntVar(&decideSnap.Health, "health", 100, "Health gauge (0-100)")
	f.IntVar(&decideSnap.Satiety, "hunger", 100, "Hunger gauge, 100 means full (0-100)")
	f.IntVar(&decideSnap.Mood, "happiness", 100, "Happiness gauge (0-100)")
	f.BoolVar(&decideSnap.Resting, "sleeping", false, "Pet is asleep")
	f.StringVar(&decideRoom, "room", "", "Current room (bedroom, bathroom, kitchen, game_room)")
	f.BoolVar(&decideLocal, "local", false, "Use only the local fallback policy")
	f.DurationVar(&decideTimeout, "timeout", 20*time.Second, "Overall decision timeout")
	f.BoolVar(&decidePrompt, "prompt", false, "Print the prompt sent to providers")
}

func parseRoom(s string) (*models.Location, error) {
	if s == "" {
		return nil, nil
	}
	loc := models.Location(s)
	switch loc {
	case models.LocationBedroom, models.LocationBathroom, models.LocationKitchen, models.LocationGameRoom:
		return &loc, nil
	}
	return nil, fmt.Errorf("unknown room %q", s)
}

func runDecide(cmd *cobra.Command, args []string) error {
	room, err := parseRoom(decideRoom)
	if err != nil {
		return err
	}
	snap := decideSnap
	snap.Location = room
	snap.CapturedAt = time.Now().UTC()
	snap = snap.Normalize()

	if decidePrompt {
		fmt.Println(sectionStyle.Render("Prompt"))
		fmt.Println(decision.BuildPrompt(snap))
	}

	var d models.Decision
	if decideLocal {
		d = decision.Fallback(snap)
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.Log)
		if err != nil {
			return err
		}
		chain := buildChain(cfg, nil, logger.WithComponent(log, "decision"))

		ctx, cancel := context.WithTimeout(cmd.Context(), decideTimeout)
		defer cancel()
		d = chain.Decide(ctx, "cli", snap)
	}

	fmt.Println(headerStyle.Render("Decision"))
	fmt.Println(field("Action", valueStyle.Bold(true).Render(string(d.Action))))
	fmt.Println(field("Urgency", urgencyStyle(d.Urgency).Render(string(d.Urgency))))
	fmt.Println(field("Source", d.Source))
	fmt.Println(field("Rationale", d.Rationale))
	return nil
}
