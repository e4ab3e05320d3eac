package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
)

// ============================================================================
// Scripted notifier
// ============================================================================

type answerKey struct {
	name string
	t    QuestionType
}

// skipAnswer scripts an explicit skip
const skipAnswer = "-"

// fakeNotifier records everything a session says and answers prompts from
// a script keyed by player name and question type. Unscripted prompts
// time out immediately.
type fakeNotifier struct {
	mu         sync.Mutex
	answers    map[answerKey]string
	messages   map[string][]string
	broadcasts []string
	asked      []answerKey
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		answers:  make(map[answerKey]string),
		messages: make(map[string][]string),
	}
}

// script makes name answer questions of type t with the option labelled option
func (f *fakeNotifier) script(name string, t QuestionType, option string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[answerKey{name, t}] = option
}

func (f *fakeNotifier) Notify(_ context.Context, to Participant, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[to.Name] = append(f.messages[to.Name], text)
}

func (f *fakeNotifier) Broadcast(_ context.Context, _ string, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, text)
}

func (f *fakeNotifier) RequestChoice(_ context.Context, to Participant, q Question) Choice {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := answerKey{to.Name, q.Type}
	f.asked = append(f.asked, key)
	option, ok := f.answers[key]
	switch {
	case !ok:
		return Choice{TimedOut: true}
	case option == skipAnswer:
		return Choice{Index: SkipChoice}
	}
	idx := slices.Index(q.Options, option)
	if idx < 0 {
		return Choice{TimedOut: true}
	}
	return Choice{Index: idx}
}

func (f *fakeNotifier) askedCount(name string, t QuestionType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.asked {
		if k == (answerKey{name, t}) {
			n++
		}
	}
	return n
}

func (f *fakeNotifier) wasAsked(t QuestionType) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.ContainsFunc(f.asked, func(k answerKey) bool { return k.t == t })
}

func (f *fakeNotifier) told(name, substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.ContainsFunc(f.messages[name], func(m string) bool { return strings.Contains(m, substr) })
}

func (f *fakeNotifier) announced(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.ContainsFunc(f.broadcasts, func(m string) bool { return strings.Contains(m, substr) })
}

// ============================================================================
// Session fixtures
// ============================================================================

// testSettings keeps every window short enough that nothing in a test waits
func testSettings() GameSettings {
	settings := defaultGameSettings()
	settings.MinPlayers = 3
	settings.JoinSeconds = 0
	return settings
}

// newTestSession seats one player per role, named after the role and its
// seat ("Wolf0", "Seer1", ...), and puts the session into its first day.
func newTestSession(t *testing.T, roles ...RoleID) (*Session, *fakeNotifier) {
	t.Helper()
	notifier := newFakeNotifier()
	s := NewSession("group-"+t.Name(), false, testSettings(), notifier, nil)
	for i, id := range roles {
		name := fmt.Sprintf("%s%d", strings.ReplaceAll(RoleByID(id).Name, " ", ""), i)
		if err := s.Join(Participant{ID: ParticipantID(name), Name: name}); err != nil {
			t.Fatalf("Join(%s) failed: %v", name, err)
		}
		s.players[i].Role = RoleByID(id)
		if id == RoleGunner {
			s.players[i].Bullets = 2
		}
	}
	s.setStatus(StatusRunning)
	s.Day = 1
	return s, notifier
}

// fixedChance replaces the session's dice with a constant roll
func fixedChance(s *Session, roll float64) {
	s.chance = func() float64 { return roll }
}

func aliveNames(s *Session) []string {
	var out []string
	for _, p := range s.alivePlayers() {
		out = append(out, p.Name)
	}
	return out
}
