package main

import (
	"context"
)

// QuestionType is the category of prompt posed to a player
type QuestionType int

const (
	QuestionNone QuestionType = iota
	QuestionLynch
	QuestionKill
	QuestionVisit
	QuestionSee
	QuestionShoot
	QuestionGuard
	QuestionDetect
	QuestionConvert
	QuestionRoleModel
	QuestionHunt
	QuestionHunterKill
	QuestionSerialKill
	QuestionLover1
	QuestionLover2
	QuestionMayor
	QuestionSpreadSilver
	QuestionKill2
	QuestionSandman
	QuestionPacifist
	QuestionThief
	QuestionFreeze
	QuestionDouse
)

var questionNames = map[QuestionType]string{
	QuestionLynch:        "lynch",
	QuestionKill:         "kill",
	QuestionVisit:        "visit",
	QuestionSee:          "see",
	QuestionShoot:        "shoot",
	QuestionGuard:        "guard",
	QuestionDetect:       "detect",
	QuestionConvert:      "convert",
	QuestionRoleModel:    "role_model",
	QuestionHunt:         "hunt",
	QuestionHunterKill:   "hunter_kill",
	QuestionSerialKill:   "serial_kill",
	QuestionLover1:       "lover1",
	QuestionLover2:       "lover2",
	QuestionMayor:        "mayor",
	QuestionSpreadSilver: "spread_silver",
	QuestionKill2:        "kill2",
	QuestionSandman:      "sandman",
	QuestionPacifist:     "pacifist",
	QuestionThief:        "thief",
	QuestionFreeze:       "freeze",
	QuestionDouse:        "douse",
}

func (q QuestionType) String() string {
	if name, ok := questionNames[q]; ok {
		return name
	}
	return "none"
}

// SkipChoice is the explicit "-1 skip" answer
const SkipChoice = -1

// ParticipantID is the opaque handle of a human participant
type ParticipantID string

// Participant is who a player is outside the game
type Participant struct {
	ID   ParticipantID
	Name string
}

// Question is a single-choice prompt posed to one participant
type Question struct {
	Type    QuestionType
	Text    string
	Options []string
	// Targets maps option index to a player index; -1 marks a non-player option
	Targets []int
	CanSkip bool
}

// Choice is the outcome of a prompt
type Choice struct {
	Index    int
	TimedOut bool
}

// Skipped reports whether the choice means "no action"
func (c Choice) Skipped() bool {
	return c.TimedOut || c.Index == SkipChoice
}

// Valid reports whether idx is an acceptable answer to q
func (q Question) Valid(idx int) bool {
	if idx == SkipChoice {
		return q.CanSkip
	}
	return idx >= 0 && idx < len(q.Options)
}

// Notifier is the messaging transport a session talks through.
// RequestChoice blocks until an answer arrives or ctx is done; on expiry it
// returns Choice{TimedOut: true}.
type Notifier interface {
	Notify(ctx context.Context, to Participant, text string)
	Broadcast(ctx context.Context, group string, text string)
	RequestChoice(ctx context.Context, to Participant, q Question) Choice
}
