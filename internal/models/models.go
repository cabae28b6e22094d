// Package models defines the core domain types for caretaker.
package models

import (
	"fmt"
	"strings"
	"time"
)

// AccountID is the stable identifier of a supervised account.
type AccountID string

// Credential is the opaque session token that authorizes actions for an account.
type Credential string

// Location is the room the pet is currently in.
type Location string

const (
	LocationBedroom  Location = "bedroom"
	LocationBathroom Location = "bathroom"
	LocationKitchen  Location = "kitchen"
	LocationGameRoom Location = "game_room"
)

// StatusSnapshot is a point-in-time reading of an account's pet gauges.
type StatusSnapshot struct {
	Energy      int       `json:"energy"`
	Cleanliness int       `json:"cleanliness"`
	Health      int       `json:"health"`
	Satiety     int       `json:"satiety"`
	Mood        int       `json:"mood"`
	Resting     bool      `json:"resting"`
	Location    *Location `json:"location,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Normalize returns a copy with every gauge clamped to 0-100.
func (s StatusSnapshot) Normalize() StatusSnapshot {
	s.Energy = clampGauge(s.Energy)
	s.Cleanliness = clampGauge(s.Cleanliness)
	s.Health = clampGauge(s.Health)
	s.Satiety = clampGauge(s.Satiety)
	s.Mood = clampGauge(s.Mood)
	return s
}

func clampGauge(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Action is a corrective operation the caretaker can take.
type Action string

const (
	ActionFeed          Action = "feed"
	ActionBathe         Action = "bathe"
	ActionRest          Action = "sleep"
	ActionWake          Action = "wake"
	ActionPlay          Action = "play"
	ActionEmergencyCare Action = "emergency"
	ActionWait          Action = "wait"
)

// Actions lists every action in vocabulary order.
var Actions = []Action{
	ActionFeed,
	ActionBathe,
	ActionRest,
	ActionWake,
	ActionPlay,
	ActionEmergencyCare,
	ActionWait,
}

// ParseAction maps a wire name to an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "feed":
		return ActionFeed, nil
	case "bathe":
		return ActionBathe, nil
	case "sleep", "rest":
		return ActionRest, nil
	case "wake":
		return ActionWake, nil
	case "play":
		return ActionPlay, nil
	case "emergency", "emergency_care":
		return ActionEmergencyCare, nil
	case "wait":
		return ActionWait, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Urgency says how soon the monitor should look again.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// ParseUrgency maps a wire name to an Urgency.
func ParseUrgency(s string) (Urgency, error) {
	switch Urgency(strings.ToLower(strings.TrimSpace(s))) {
	case UrgencyHigh:
		return UrgencyHigh, nil
	case UrgencyMedium:
		return UrgencyMedium, nil
	case UrgencyLow:
		return UrgencyLow, nil
	}
	return "", fmt.Errorf("unknown urgency %q", s)
}

// Decision sources that are not provider names.
const (
	SourceFallback = "fallback"
	SourceTimeout  = "timeout"
)

// Decision is the next action chosen for an account.
type Decision struct {
	Action    Action  `json:"action"`
	Rationale string  `json:"rationale"`
	Urgency   Urgency `json:"urgency"`
	Source    string  `json:"source,omitempty"`
}

// MonitorState is the lifecycle phase of an account monitor.
type MonitorState string

const (
	MonitorStarting MonitorState = "starting"
	MonitorPolling  MonitorState = "polling"
	MonitorDeciding MonitorState = "deciding"
	MonitorActing   MonitorState = "acting"
	MonitorEnding   MonitorState = "ending"
)

// MonitorInfo is the read-only view of a running monitor.
type MonitorInfo struct {
	AccountID AccountID    `json:"account_id"`
	State     MonitorState `json:"state"`
	StartedAt time.Time    `json:"started_at"`
}

// DecisionRecord is the audit entry written for each decision.
type DecisionRecord struct {
	ID         string    `json:"id"`
	AccountID  AccountID `json:"account_id"`
	Action     Action    `json:"action"`
	Rationale  string    `json:"rationale"`
	Urgency    Urgency   `json:"urgency"`
	Source     string    `json:"source"`
	InputsHash string    `json:"inputs_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrorRecord is a reported error for an account.
type ErrorRecord struct {
	ID        string    `json:"id"`
	AccountID AccountID `json:"account_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotRecord is a persisted status snapshot.
type SnapshotRecord struct {
	ID        string         `json:"id"`
	AccountID AccountID      `json:"account_id"`
	Snapshot  StatusSnapshot `json:"snapshot"`
}
