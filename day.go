package main

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// runDay plays one day: the morning report, owed shots, day abilities and
// the lynch vote.
func (s *Session) runDay(ctx context.Context) {
	s.Night = false
	s.morningReport(ctx)
	s.resolvePendingShots(ctx)
	if s.checkGameEnd(ctx, false) {
		return
	}

	s.dayAbilities(ctx)
	if s.checkGameEnd(ctx, false) {
		return
	}

	s.lynch(ctx)
	s.killIdle(ctx)
	s.checkRoleChanges(ctx)
}

func (s *Session) morningReport(ctx context.Context) {
	if len(s.nightDeaths) == 0 {
		s.announce(ctx, "☀️ Day %d. The sun rises and, for once, nobody died.", s.Day)
		return
	}
	var report []string
	for _, idx := range s.nightDeaths {
		p := s.players[idx]
		report = append(report, fmt.Sprintf("%s was found dead: %s. %s", p.Name, p.KillMethod, p.RoleDescription()))
	}
	s.announce(ctx, "☀️ Day %d. The village wakes up to bad news.\n%s", s.Day, strings.Join(report, "\n"))
	s.narrate(ctx, report)
}

// dayQuestion builds p's day ability prompt, if p has one left
func (s *Session) dayQuestion(p *Player) (Question, bool) {
	switch p.Role.Day {
	case DayShoot:
		if p.Bullets > 0 {
			others := without(s.alivePlayers(), func(o *Player) bool { return o == p })
			return targetQuestion(QuestionShoot, fmt.Sprintf("You have %d silver bullet(s). Who do you want to shoot?", p.Bullets), others, true), true
		}
	case DayMayor:
		if !p.mayorRevealed {
			return yesNoQuestion(QuestionMayor, "Do you want to reveal yourself as the mayor? Your vote will count twice."), true
		}
	case DaySpreadSilver:
		if !p.daySpent {
			return yesNoQuestion(QuestionSpreadSilver, "Do you want to spread silver dust tonight? The wolves will not hunt."), true
		}
	case DaySandman:
		if !p.daySpent {
			return yesNoQuestion(QuestionSandman, "Do you want to put the whole village to sleep tonight?"), true
		}
	case DayPacifist:
		if !p.daySpent {
			return yesNoQuestion(QuestionPacifist, "Do you want to stop today's lynch?"), true
		}
	}
	return Question{}, false
}

// dayAbilities asks every holder of a day ability at once and applies the
// answers: reveals and charms first, shots last.
func (s *Session) dayAbilities(ctx context.Context) {
	var actions []*nightAction
	for _, p := range s.alivePlayers() {
		if q, ok := s.dayQuestion(p); ok {
			actions = append(actions, &nightAction{player: p, q: q})
		}
	}
	if len(actions) == 0 {
		return
	}
	s.collectAnswers(ctx, actions, s.timeout(s.Settings.DaySeconds))

	yes := func(a *nightAction) bool {
		return a.player.Alive() && !a.choice.Skipped() && a.choice.Index == 0
	}
	for _, a := range actions {
		if !yes(a) {
			continue
		}
		p := a.player
		switch a.q.Type {
		case QuestionMayor:
			p.mayorRevealed = true
			s.announce(ctx, "🎖 %s reveals themselves as the mayor! Their vote now counts twice.", p.Name)
		case QuestionSpreadSilver:
			p.daySpent = true
			s.silverSpread = true
			s.announce(ctx, "⚒ %s spreads silver dust all over the village. The wolves will not hunt tonight.", p.Name)
		case QuestionSandman:
			p.daySpent = true
			s.sleepNight = true
			s.announce(ctx, "💤 %s sprinkles magic sand. Tonight everyone will sleep.", p.Name)
		case QuestionPacifist:
			p.daySpent = true
			s.noLynch = true
			s.announce(ctx, "☮️ %s preaches peace. There will be no lynch today.", p.Name)
		}
	}
	for _, a := range actions {
		if a.q.Type != QuestionShoot || !a.acted() || !a.target.Alive() {
			continue
		}
		gunner, target := a.player, a.target
		gunner.Bullets--
		s.announce(ctx, "🔫 A shot rings out! %s shot %s. %s", gunner.Name, target.Name, target.RoleDescription())
		s.kill(ctx, target, KillShoot, gunner, false, true)
	}
}

// lynch runs the village vote. A tie lynches nobody.
func (s *Session) lynch(ctx context.Context) {
	if s.noLynch {
		s.noLynch = false
		return
	}
	alive := s.alivePlayers()
	var actions []*nightAction
	for _, p := range alive {
		others := without(alive, func(o *Player) bool { return o == p })
		q := targetQuestion(QuestionLynch, "Who do you want to lynch?", others, true)
		actions = append(actions, &nightAction{player: p, q: q})
	}
	s.announce(ctx, "It is time to vote. Who will hang today?")
	s.collectAnswers(ctx, actions, s.timeout(s.Settings.DaySeconds))
	for _, a := range actions {
		if a.choice.TimedOut {
			a.player.missedVotes++
		} else {
			a.player.missedVotes = 0
		}
	}

	victim := s.tallyLynch(ctx, actions)
	if victim == nil {
		s.announce(ctx, "The village could not agree. Nobody is lynched today.")
		return
	}

	if victim.is(RolePrince) && !victim.princeRevealed {
		victim.princeRevealed = true
		s.announce(ctx, "💍 As the rope is tied, %s reveals the royal seal. The village lets the prince go.", victim.Name)
		return
	}

	s.announce(ctx, "The village has spoken. %s is hanged. %s", victim.Name, victim.RoleDescription())
	log.Printf("Session %s: day %d lynched %s", s.ID, s.Day, victim.Name)
	s.kill(ctx, victim, KillLynch, nil, false, true)
	if victim.is(RoleTanner) {
		s.end(ctx, WinTanner)
	}
}

// tallyLynch counts the votes. A revealed mayor counts twice and the
// clumsy guy's vote lands on a random player half of the time.
func (s *Session) tallyLynch(ctx context.Context, actions []*nightAction) *Player {
	counts := make(map[*Player]int)
	for _, a := range actions {
		if !a.acted() {
			continue
		}
		target := a.target
		if a.player.is(RoleClumsyGuy) && s.chance() < 0.5 {
			others := without(s.alivePlayers(), func(o *Player) bool { return o == a.player })
			target = others[s.rng.IntN(len(others))]
			s.send(ctx, a.player, "🤕 Oops! You tripped and voted for %s.", target.Name)
		}
		weight := 1
		if a.player.is(RoleMayor) && a.player.mayorRevealed {
			weight = 2
		}
		counts[target] += weight
	}

	var victim *Player
	best, tie := 0, false
	for _, p := range s.players {
		switch c := counts[p]; {
		case c > best:
			best, victim, tie = c, p, false
		case c == best && c > 0:
			tie = true
		}
	}
	if tie {
		return nil
	}
	return victim
}

// killIdle removes players who let too many lynch votes in a row time out
func (s *Session) killIdle(ctx context.Context) {
	if s.Settings.IdleVotes <= 0 || s.Status() == StatusEnded {
		return
	}
	for _, p := range s.alivePlayers() {
		if p.missedVotes < s.Settings.IdleVotes {
			continue
		}
		s.announce(ctx, "%s has not voted for %d days and wandered off into the woods. %s", p.Name, p.missedVotes, p.RoleDescription())
		s.kill(ctx, p, KillIdle, nil, false, false)
	}
}
