package main

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the one-way lifecycle of a session: joining -> running -> ended
type Status int

const (
	StatusJoining Status = iota
	StatusRunning
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusJoining:
		return "joining"
	case StatusRunning:
		return "running"
	default:
		return "ended"
	}
}

var (
	ErrNotJoining       = errors.New("session is not accepting players")
	ErrAlreadyJoined    = errors.New("already joined")
	ErrNotInSession     = errors.New("not in this session")
	ErrNotEnoughPlayers = errors.New("not enough players")
)

// Session is the aggregate root of one game in one group
type Session struct {
	ID       string
	Group    string
	Chaos    bool
	Settings GameSettings

	notifier Notifier
	recorder Recorder
	rng      *rand.Rand
	// chance returns a roll in [0,1); tests replace it to force duels
	chance func() float64

	mu         sync.Mutex
	players    []*Player
	byID       map[ParticipantID]int
	status     Status
	forceStart chan struct{}
	fleeing    []int

	Day       int
	Night     bool
	StartTime time.Time
	EndTime   time.Time
	Winner    WinType

	wolfCubKilled bool
	silverSpread  bool
	sleepNight    bool
	noLynch       bool
	nightDeaths   []int
}

// NewSession creates a session in the joining state
func NewSession(group string, chaos bool, settings GameSettings, notifier Notifier, recorder Recorder) *Session {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	var seed [16]byte
	crand.Read(seed[:])
	rng := rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:])))
	s := &Session{
		ID:         uuid.NewString(),
		Group:      group,
		Chaos:      chaos,
		Settings:   settings,
		notifier:   notifier,
		recorder:   recorder,
		rng:        rng,
		byID:       make(map[ParticipantID]int),
		status:     StatusJoining,
		forceStart: make(chan struct{}, 1),
		Night:      true,
		Winner:     WinNone,
	}
	s.chance = s.rng.Float64
	return s
}

// Join adds a participant while the session is joining
func (s *Session) Join(p Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusJoining {
		return ErrNotJoining
	}
	if _, ok := s.byID[p.ID]; ok {
		return ErrAlreadyJoined
	}
	s.byID[p.ID] = len(s.players)
	s.players = append(s.players, newPlayer(p, len(s.players)))
	DebugLog("Session.Join: '%s' joined group %s (%d players)", p.Name, s.Group, len(s.players))
	return nil
}

// Leave removes a participant during joining. Once running the seat stays
// so indexes remain stable; the game loop kills the leaver as fled.
func (s *Session) Leave(id ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return ErrNotInSession
	}
	switch s.status {
	case StatusRunning:
		s.fleeing = append(s.fleeing, idx)
		return nil
	case StatusEnded:
		return ErrNotJoining
	}
	s.players = append(s.players[:idx], s.players[idx+1:]...)
	delete(s.byID, id)
	for i, p := range s.players {
		p.Index = i
		s.byID[p.ID] = i
	}
	return nil
}

// processFlees kills everyone who left since the last phase
func (s *Session) processFlees(ctx context.Context) {
	s.mu.Lock()
	fleeing := s.fleeing
	s.fleeing = nil
	s.mu.Unlock()
	for _, idx := range fleeing {
		p := s.players[idx]
		if p.Dead {
			continue
		}
		s.announce(ctx, "%s could not take it anymore and fled the village. %s", p.Name, p.RoleDescription())
		s.kill(ctx, p, KillFlee, nil, false, false)
	}
	if len(fleeing) > 0 {
		s.checkRoleChanges(ctx)
	}
}

// ForceStart ends the join countdown early
func (s *Session) ForceStart() {
	select {
	case s.forceStart <- struct{}{}:
	default:
	}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// setStatus only ever moves forward
func (s *Session) setStatus(st Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st <= s.status {
		return false
	}
	s.status = st
	return true
}

func (s *Session) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// Player returns the seat held by a participant
func (s *Session) Player(id ParticipantID) (*Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return s.players[idx], true
}

// Players returns the seats in join order
func (s *Session) Players() []*Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Player(nil), s.players...)
}

func (s *Session) PlayerListString() string {
	var b strings.Builder
	players := s.Players()
	fmt.Fprintf(&b, "Players: %d\n", len(players))
	for _, p := range players {
		b.WriteString(p.Name)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Session) alivePlayers() []*Player {
	var alive []*Player
	for _, p := range s.players {
		if p.Alive() {
			alive = append(alive, p)
		}
	}
	return alive
}

func (s *Session) playersWithRole(id RoleID) []*Player {
	var out []*Player
	for _, p := range s.players {
		if p.is(id) {
			out = append(out, p)
		}
	}
	return out
}

// survivorWithRole returns the first living player holding the role
func (s *Session) survivorWithRole(id RoleID) *Player {
	for _, p := range s.players {
		if p.Alive() && p.is(id) {
			return p
		}
	}
	return nil
}

func (s *Session) aliveWolves() []*Player {
	var out []*Player
	for _, p := range s.players {
		if p.Alive() && IsWolf(p.Role) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) lover(p *Player) *Player {
	if p.Lover == noPlayer {
		return nil
	}
	return s.players[p.Lover]
}

func (s *Session) roleModel(p *Player) *Player {
	if p.RoleModel == noPlayer {
		return nil
	}
	return s.players[p.RoleModel]
}

func (s *Session) send(ctx context.Context, p *Player, format string, args ...any) {
	s.notifier.Notify(ctx, p.Participant, fmt.Sprintf(format, args...))
}

func (s *Session) announce(ctx context.Context, format string, args ...any) {
	s.notifier.Broadcast(ctx, s.Group, fmt.Sprintf(format, args...))
}

func (s *Session) timeout(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// ask poses one question bounded by the given window
func (s *Session) ask(ctx context.Context, p *Player, q Question, window time.Duration) Choice {
	qctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()
	c := s.notifier.RequestChoice(qctx, p.Participant, q)
	if !c.TimedOut && !q.Valid(c.Index) {
		DebugLog("Session.ask: '%s' answered out of range %d for %s", p.Name, c.Index, q.Type)
		return Choice{Index: SkipChoice}
	}
	return c
}

// targetQuestion builds a question over a set of players
func targetQuestion(t QuestionType, text string, targets []*Player, canSkip bool) Question {
	q := Question{Type: t, Text: text, CanSkip: canSkip}
	for _, p := range targets {
		q.Options = append(q.Options, p.Name)
		q.Targets = append(q.Targets, p.Index)
	}
	return q
}

// yesNoQuestion offers a single "yes" option; skip means no
func yesNoQuestion(t QuestionType, text string) Question {
	return Question{Type: t, Text: text, Options: []string{"Yes"}, Targets: []int{noPlayer}, CanSkip: true}
}

// chosenPlayer maps a choice back onto a player, or nil
func (s *Session) chosenPlayer(q Question, c Choice) *Player {
	if c.Skipped() || c.Index >= len(q.Targets) || q.Targets[c.Index] == noPlayer {
		return nil
	}
	return s.players[q.Targets[c.Index]]
}

func (s *Session) shuffled(players []*Player) []*Player {
	out := append([]*Player(nil), players...)
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func without(players []*Player, drop func(*Player) bool) []*Player {
	var out []*Player
	for _, p := range players {
		if !drop(p) {
			out = append(out, p)
		}
	}
	return out
}

func names(players []*Player) string {
	var parts []string
	for _, p := range players {
		parts = append(parts, p.Name)
	}
	return strings.Join(parts, "\n")
}
