package main

import (
	"context"
	"testing"
)

// ============================================================================
// Lynch vote
// ============================================================================

func TestLynchPlurality(t *testing.T) {
	s, notifier := newTestSession(t, RoleWolf, RoleVillager, RoleSeer, RoleVillager, RoleVillager)
	notifier.script("Villager1", QuestionLynch, "Wolf0")
	notifier.script("Seer2", QuestionLynch, "Wolf0")
	notifier.script("Villager3", QuestionLynch, "Wolf0")
	notifier.script("Wolf0", QuestionLynch, "Villager1")

	s.lynch(context.Background())

	if w := s.players[0]; w.Alive() || w.KillMethod != KillLynch {
		t.Errorf("Wolf should be lynched, dead=%v method=%s", w.Dead, w.KillMethod)
	}
	if s.players[1].Dead {
		t.Error("Minority vote must not lynch")
	}
}

func TestLynchTieHangsNobody(t *testing.T) {
	s, notifier := newTestSession(t, RoleWolf, RoleVillager, RoleSeer)
	notifier.script("Villager1", QuestionLynch, "Wolf0")
	notifier.script("Wolf0", QuestionLynch, "Villager1")

	s.lynch(context.Background())

	if len(aliveNames(s)) != 3 {
		t.Errorf("A tie should lynch nobody, alive: %v", aliveNames(s))
	}
	if !notifier.announced("could not agree") {
		t.Error("Tie should be announced")
	}
}

func TestRevealedMayorCountsTwice(t *testing.T) {
	for _, revealed := range []bool{false, true} {
		s, notifier := newTestSession(t, RoleMayor, RoleWolf, RoleVillager, RoleVillager)
		s.players[0].mayorRevealed = revealed
		notifier.script("Mayor0", QuestionLynch, "Wolf1")
		notifier.script("Wolf1", QuestionLynch, "Villager2")
		notifier.script("Villager2", QuestionLynch, "Villager3")

		s.lynch(context.Background())

		if s.players[1].Dead != revealed {
			t.Errorf("revealed=%v: wolf dead=%v", revealed, s.players[1].Dead)
		}
	}
}

func TestPrinceSurvivesFirstLynch(t *testing.T) {
	s, notifier := newTestSession(t, RolePrince, RoleWolf, RoleVillager)
	notifier.script("Wolf1", QuestionLynch, "Prince0")
	notifier.script("Villager2", QuestionLynch, "Prince0")

	s.lynch(context.Background())
	if s.players[0].Dead {
		t.Fatal("Prince should be spared the first time")
	}
	if !notifier.announced("royal seal") {
		t.Error("The reveal should be announced")
	}

	s.Day++
	s.lynch(context.Background())
	if !s.players[0].Dead {
		t.Error("Prince should hang the second time")
	}
}

func TestLynchedTannerWins(t *testing.T) {
	s, notifier := newTestSession(t, RoleTanner, RoleWolf, RoleVillager, RoleVillager)
	notifier.script("Wolf1", QuestionLynch, "Tanner0")
	notifier.script("Villager2", QuestionLynch, "Tanner0")
	notifier.script("Villager3", QuestionLynch, "Tanner0")

	s.lynch(context.Background())

	if s.Status() != StatusEnded || s.Winner != WinTanner {
		t.Fatalf("Tanner should win, status=%s winner=%s", s.Status(), s.Winner)
	}
	for _, p := range s.players {
		if p.Win != p.is(RoleTanner) {
			t.Errorf("%s win=%v", p.Name, p.Win)
		}
	}
}

func TestClumsyVoteGoesAstray(t *testing.T) {
	s, notifier := newTestSession(t, RoleClumsyGuy, RoleWolf, RoleVillager, RoleSeer)
	fixedChance(s, 0.1)
	notifier.script("ClumsyGuy0", QuestionLynch, "Wolf1")

	s.lynch(context.Background())

	if !notifier.told("ClumsyGuy0", "tripped") {
		t.Error("Clumsy guy should trip over the ballot")
	}
	if len(aliveNames(s)) != 3 {
		t.Errorf("A single vote still lynches someone, alive: %v", aliveNames(s))
	}
	if s.players[0].Dead {
		t.Error("Clumsy guy never votes for themselves")
	}
}

// ============================================================================
// Day abilities
// ============================================================================

func TestGunnerShootsDuringTheDay(t *testing.T) {
	s, notifier := newTestSession(t, RoleGunner, RoleWolf, RoleVillager, RoleSeer)
	notifier.script("Gunner0", QuestionShoot, "Wolf1")

	s.dayAbilities(context.Background())

	if w := s.players[1]; w.Alive() || w.KillMethod != KillShoot {
		t.Errorf("Wolf should be shot, dead=%v method=%s", w.Dead, w.KillMethod)
	}
	if s.players[0].Bullets != 1 {
		t.Errorf("Gunner should have one bullet left, has %d", s.players[0].Bullets)
	}
	if !notifier.announced("Gunner0 shot Wolf1") {
		t.Error("Shot should be announced")
	}
}

func TestGunnerOutOfBulletsIsNotAsked(t *testing.T) {
	s, _ := newTestSession(t, RoleGunner, RoleWolf)
	s.players[0].Bullets = 0
	if _, ok := s.dayQuestion(s.players[0]); ok {
		t.Error("Gunner without bullets should have no prompt")
	}
}

func TestPacifistStopsTheLynch(t *testing.T) {
	s, notifier := newTestSession(t, RolePacifist, RoleWolf, RoleVillager, RoleVillager)
	notifier.script("Pacifist0", QuestionPacifist, "Yes")
	notifier.script("Villager2", QuestionLynch, "Wolf1")

	s.dayAbilities(context.Background())
	s.lynch(context.Background())

	if notifier.wasAsked(QuestionLynch) {
		t.Error("Nobody should vote on a peaceful day")
	}
	if _, ok := s.dayQuestion(s.players[0]); ok {
		t.Error("Pacifist can only preach once")
	}

	s.lynch(context.Background())
	if !s.players[1].Dead {
		t.Error("The next lynch should go ahead")
	}
}

func TestOneShotDayAbilities(t *testing.T) {
	tests := []struct {
		role  RoleID
		qtype QuestionType
		name  string
		flag  func(*Session) bool
	}{
		{RoleBlacksmith, QuestionSpreadSilver, "Blacksmith0", func(s *Session) bool { return s.silverSpread }},
		{RoleSandman, QuestionSandman, "Sandman0", func(s *Session) bool { return s.sleepNight }},
		{RoleMayor, QuestionMayor, "Mayor0", func(s *Session) bool { return s.players[0].mayorRevealed }},
	}
	for _, tt := range tests {
		t.Run(tt.qtype.String(), func(t *testing.T) {
			s, notifier := newTestSession(t, tt.role, RoleWolf, RoleVillager)
			notifier.script(tt.name, tt.qtype, "Yes")

			s.dayAbilities(context.Background())
			if !tt.flag(s) {
				t.Fatal("Ability should take effect")
			}
			s.dayAbilities(context.Background())
			if n := notifier.askedCount(tt.name, tt.qtype); n != 1 {
				t.Errorf("Ability should be offered once, asked %d times", n)
			}
		})
	}
}

func TestDeclinedAbilityStaysAvailable(t *testing.T) {
	s, notifier := newTestSession(t, RoleSandman, RoleWolf, RoleVillager)
	notifier.script("Sandman0", QuestionSandman, skipAnswer)

	s.dayAbilities(context.Background())
	if s.sleepNight {
		t.Fatal("Skipping should not use the ability")
	}
	if _, ok := s.dayQuestion(s.players[0]); !ok {
		t.Error("Sandman should be asked again")
	}
}

// ============================================================================
// Whole day
// ============================================================================

func TestMorningReportListsNightDeaths(t *testing.T) {
	s, notifier := newTestSession(t, RoleVillager, RoleWolf, RoleSeer, RoleVillager)
	s.kill(context.Background(), s.players[0], KillEat, s.players[1], true, true)

	s.morningReport(context.Background())

	if !notifier.announced("Villager0 was found dead") {
		t.Error("Night death should be reported")
	}
}

func TestRunDayStopsWhenGameEnds(t *testing.T) {
	s, notifier := newTestSession(t, RoleVillager, RoleSeer, RoleWolf)
	s.kill(context.Background(), s.players[2], KillSerialKilled, nil, true, true)

	s.runDay(context.Background())

	if s.Status() != StatusEnded || s.Winner != WinVillage {
		t.Fatalf("Village should have won, status=%s winner=%s", s.Status(), s.Winner)
	}
	if notifier.wasAsked(QuestionLynch) {
		t.Error("No vote after the game ended")
	}
}

func TestSilentPlayersIdleAway(t *testing.T) {
	s, notifier := newTestSession(t, RoleVillager, RoleWolf, RoleSeer, RoleVillager)
	notifier.script("Villager0", QuestionLynch, skipAnswer)
	notifier.script("Seer2", QuestionLynch, skipAnswer)
	notifier.script("Villager3", QuestionLynch, skipAnswer)

	for range s.Settings.IdleVotes {
		if len(aliveNames(s)) != 4 {
			t.Fatalf("Nobody should idle away early, alive: %v", aliveNames(s))
		}
		s.lynch(context.Background())
		s.killIdle(context.Background())
	}

	if w := s.players[1]; w.Alive() || w.KillMethod != KillIdle {
		t.Errorf("Silent wolf should idle away, dead=%v method=%s", w.Dead, w.KillMethod)
	}
	if len(aliveNames(s)) != 3 {
		t.Errorf("Skipping counts as voting, alive: %v", aliveNames(s))
	}
}
