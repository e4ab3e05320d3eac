package main

import (
	"context"
	"slices"
	"strings"
	"time"
)

// WinType is the outcome of a finished game
type WinType int

const (
	WinNone WinType = iota
	WinVillage
	WinCult
	WinWolf
	WinTanner
	WinNeutral
	WinSerialKiller
	WinLovers
	WinSKHunter
	WinNoOne
	WinArsonist
	WinDoppelganger
	WinSorcerer
)

var winNames = map[WinType]string{
	WinVillage:      "village",
	WinCult:         "cult",
	WinWolf:         "wolves",
	WinTanner:       "tanner",
	WinNeutral:      "neutral",
	WinSerialKiller: "serial_killer",
	WinLovers:       "lovers",
	WinSKHunter:     "sk_hunter",
	WinNoOne:        "no_one",
	WinArsonist:     "arsonist",
	WinDoppelganger: "doppelganger",
	WinSorcerer:     "sorcerer",
}

func (w WinType) String() string {
	if name, ok := winNames[w]; ok {
		return name
	}
	return "none"
}

var factionWins = map[Faction]WinType{
	FactionVillage:      WinVillage,
	FactionWolf:         WinWolf,
	FactionCult:         WinCult,
	FactionTanner:       WinTanner,
	FactionSerialKiller: WinSerialKiller,
	FactionArsonist:     WinArsonist,
	FactionSorcerer:     WinSorcerer,
	FactionDoppelganger: WinDoppelganger,
	FactionNeutral:      WinNeutral,
}

// winFaction is the faction whose members share a win, if any
func winFaction(w WinType) (Faction, bool) {
	for f, wt := range factionWins {
		if wt == w {
			return f, true
		}
	}
	return "", false
}

// pairWith splits a pair into the player holding id and the other one
func pairWith(a, b *Player, id RoleID) (holder, other *Player) {
	switch {
	case a.is(id):
		return a, b
	case b.is(id):
		return b, a
	}
	return nil, nil
}

func isKillingWolf(p *Player) bool {
	return IsWolf(p.Role) && !p.is(RoleSnowWolf)
}

// convertLastWolf keeps the pack alive: once no killing wolf survives, a
// snow wolf (else a traitor) becomes a plain wolf. A pending bite counts
// as a wolf when checkBitten is set.
func (s *Session) convertLastWolf(ctx context.Context, checkBitten bool) {
	alive := s.alivePlayers()
	if slices.ContainsFunc(alive, isKillingWolf) {
		return
	}
	if checkBitten && slices.ContainsFunc(alive, func(p *Player) bool { return p.Bitten }) {
		return
	}
	if sw := s.survivorWithRole(RoleSnowWolf); sw != nil {
		sw.setRole(RoleByID(RoleWolf))
		s.send(ctx, sw, "You seem to be the last wolf. To survive you had to become a plain 🐺 wolf.")
		return
	}
	if traitor := s.survivorWithRole(RoleTraitor); traitor != nil {
		traitor.setRole(RoleByID(RoleWolf))
		s.send(ctx, traitor, "You have become a wolf now, you traitor!")
	}
}

// checkGameEnd decides whether the game is over and ends it if so. It
// reports true when the session has ended, including earlier calls.
func (s *Session) checkGameEnd(ctx context.Context, checkBitten bool) bool {
	if s.Status() == StatusEnded {
		return true
	}
	s.convertLastWolf(ctx, checkBitten)

	for {
		alive := s.alivePlayers()
		switch len(alive) {
		case 0:
			s.end(ctx, WinNoOne)
			return true
		case 1:
			p := alive[0]
			if IsNeutral(p.Role) {
				s.end(ctx, WinNoOne)
				return true
			}
			s.end(ctx, factionWins[p.Role.Faction])
			return true
		case 2:
			if s.duel(ctx, alive[0], alive[1]) {
				if s.Status() == StatusEnded {
					return true
				}
				continue
			}
		case 3:
			if IsNeutral(alive[0].Role) && IsNeutral(alive[1].Role) && IsNeutral(alive[2].Role) {
				s.end(ctx, WinNoOne)
				return true
			}
		}
		return s.checkMajority(ctx, alive, checkBitten)
	}
}

// duel settles the two-survivor endgames. It reports true when it changed
// the alive set or ended the game, after which the caller re-evaluates.
func (s *Session) duel(ctx context.Context, a, b *Player) bool {
	if a.Lover == b.Index && b.Lover == a.Index {
		s.end(ctx, WinLovers)
		return true
	}
	if IsNeutral(a.Role) && IsNeutral(b.Role) {
		s.end(ctx, WinNoOne)
		return true
	}

	if hunter, other := pairWith(a, b, RoleHunter); hunter != nil {
		switch {
		case other.is(RoleSerialKiller):
			s.announce(ctx, "%s and %s draw on each other at the same time. Both fall.", hunter.Name, other.Name)
			s.kill(ctx, other, KillHunterShot, hunter, false, false)
			s.kill(ctx, hunter, KillSerialKilled, other, false, false)
			s.end(ctx, WinSKHunter)
			return true
		case IsWolf(other.Role):
			if s.chance() < 0.5 {
				s.announce(ctx, "At midnight %s goes out to practice shooting and finds %s feasting. Safety off, aim, fire. The wolf is dead. %s",
					hunter.Name, other.Name, other.RoleDescription())
				s.kill(ctx, other, KillHunterShot, hunter, false, false)
			} else {
				s.announce(ctx, "%s reaches for the gun a moment too late. %s tears them apart. %s",
					hunter.Name, other.Name, hunter.RoleDescription())
				s.kill(ctx, hunter, KillEat, other, false, false)
			}
			return true
		}
	}

	for _, id := range []RoleID{RoleSerialKiller, RoleArsonist} {
		if killer, other := pairWith(a, b, id); killer != nil {
			method := KillSerialKilled
			if id == RoleArsonist {
				method = KillBurn
			}
			s.announce(ctx, "Only %s and %s are left. %s does not hesitate. %s",
				killer.Name, other.Name, killer.Name, other.RoleDescription())
			s.kill(ctx, other, method, killer, false, false)
			return true
		}
	}

	// a wolf facing anyone but the hunter gets no roll; the majority rule decides
	if IsWolf(a.Role) != IsWolf(b.Role) {
		return false
	}

	if cultist, other := pairWith(a, b, RoleCultist); cultist != nil {
		if other.is(RoleCultistHunter) {
			s.announce(ctx, "The cultist hunter %s finally corners %s. %s", other.Name, cultist.Name, cultist.RoleDescription())
			s.kill(ctx, cultist, KillHunt, other, false, false)
			return true
		}
		other.setRole(RoleByID(RoleCultist))
		s.send(ctx, other, "With no one else left, %s finally converts you. You are now a cultist.", cultist.Name)
		s.end(ctx, WinCult)
		return true
	}
	return false
}

// checkMajority applies the faction rules that need no duel
func (s *Session) checkMajority(ctx context.Context, alive []*Player, checkBitten bool) bool {
	if slices.ContainsFunc(alive, func(p *Player) bool {
		return p.is(RoleSerialKiller) || p.is(RoleArsonist)
	}) {
		return false
	}

	if !slices.ContainsFunc(alive, func(p *Player) bool { return p.Role.Faction != FactionCult }) {
		s.end(ctx, WinCult)
		return true
	}

	wolves := 0
	for _, p := range alive {
		if IsWolf(p.Role) {
			wolves++
		}
	}
	others := len(alive) - wolves
	if wolves > 0 && wolves >= others {
		gunnerHolds := wolves == others && slices.ContainsFunc(alive, func(p *Player) bool {
			return p.is(RoleGunner) && p.Bullets > 0
		})
		if !gunnerHolds {
			s.end(ctx, WinWolf)
			return true
		}
	}

	// any evil survivor, neutrals included, keeps the village from winning
	if slices.ContainsFunc(alive, func(p *Player) bool { return IsEvil(p.Role) }) {
		return false
	}
	if checkBitten && slices.ContainsFunc(alive, func(p *Player) bool { return p.Bitten }) {
		return false
	}
	s.end(ctx, WinVillage)
	return true
}

// end finishes the game once. A second call changes nothing and reports false.
func (s *Session) end(ctx context.Context, win WinType) bool {
	if !s.setStatus(StatusEnded) {
		return false
	}
	s.Winner = win
	s.EndTime = time.Now()
	s.markWinners(win)
	s.announce(ctx, "%s", s.epilogue(win))
	s.recorder.RecordResult(ctx, s)
	DebugLog("Session.end: group %s won by %s on day %d", s.Group, win, s.Day)
	return true
}

func (s *Session) markWinners(win WinType) {
	switch win {
	case WinLovers:
		for _, p := range s.players {
			if p.Lover != noPlayer {
				p.Win = true
			}
		}
		return
	case WinNoOne, WinSKHunter, WinNone:
		return
	}

	faction, _ := winFaction(win)
	for _, p := range s.players {
		member := p.Role.Faction == faction || (p.is(RoleSorcerer) && win == WinWolf)
		if !member {
			continue
		}
		if (p.is(RoleSerialKiller) || p.is(RoleArsonist)) && p.Dead {
			continue
		}
		if p.is(RoleTanner) && !(p.KillMethod == KillLynch && p.TimeDied == s.Day) {
			continue
		}
		p.Win = true
		if lover := s.lover(p); lover != nil {
			lover.Win = true
		}
	}
}

func (s *Session) epilogue(win WinType) string {
	var b strings.Builder
	switch win {
	case WinVillage:
		b.WriteString("The last threat is gone. The village survives! #VillageWins\n")
	case WinWolf:
		b.WriteString("The wolves outnumber the villagers and finish them off. #WolvesWin\n")
	case WinCult:
		b.WriteString("Everyone left belongs to the cult. #CultWins\n")
	case WinTanner:
		b.WriteString("The tanner got exactly what they wanted. #TannerWins\n")
	case WinSerialKiller:
		b.WriteString("The serial killer stands alone among the corpses. #SerialKillerWins\n")
	case WinArsonist:
		b.WriteString("The village burns to the ground. #ArsonistWins\n")
	case WinLovers:
		b.WriteString("The lovers are the only ones left. #LoversWin\n")
	case WinSKHunter:
		b.WriteString("The hunter and the serial killer took each other down. No one wins.\n")
	case WinNoOne:
		if len(s.alivePlayers()) == 0 {
			b.WriteString("Everyone is dead. Vultures circle above the silent village. #NoOneWins\n")
			for _, p := range s.lastToDie() {
				if IsNeutral(p.Role) {
					b.WriteString(p.Name + " the " + p.Role.String() + " was among the last to fall.\n")
				}
			}
		} else {
			b.WriteString("No side could claim the village. #NoOneWins\n")
		}
	}
	if win == WinWolf || win == WinSorcerer {
		for _, p := range s.playersWithRole(RoleSorcerer) {
			if p.Alive() {
				b.WriteString(p.Name + " leaves the empty village in search of the next one. #SorcererWins\n")
			}
		}
	}
	for _, p := range s.players {
		mark := "lost"
		if p.Win {
			mark = "won"
		}
		b.WriteString(p.Name + ": " + p.Role.String() + " (" + p.KillMethod.String() + ", " + mark + ")\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// lastToDie returns the players who died on the latest day of death
func (s *Session) lastToDie() []*Player {
	last := -1
	for _, p := range s.players {
		if p.Dead && p.TimeDied > last {
			last = p.TimeDied
		}
	}
	return without(s.players, func(p *Player) bool { return !p.Dead || p.TimeDied != last })
}
