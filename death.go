package main

import (
	"context"
)

// kill marks p dead and settles everything that hangs off the death: the
// lover's bonded death, role mutations it triggers, the wolf cub's revenge
// and the hunter's final shot. A night shot is only owed, the day phase
// collects it.
func (s *Session) kill(ctx context.Context, p *Player, method KillMethod, killer *Player, isNight, finalShot bool) {
	if p.Dead {
		return
	}
	p.Dead = true
	p.DiedLastNight = isNight && method != KillLoverDied
	p.TimeDied = s.Day
	p.KillMethod = method
	if killer != nil {
		p.KilledBy = killer.Role
	}
	if isNight {
		s.nightDeaths = append(s.nightDeaths, p.Index)
	}
	s.recorder.RecordDeath(ctx, s, p)
	DebugLog("Session.kill: '%s' (%s) %s on day %d", p.Name, p.Role.Name, method, s.Day)

	if lover := s.lover(p); lover != nil && lover.Alive() {
		if !isNight {
			s.announce(ctx, "Seeing %s fall, %s cannot bear to live on alone and follows them into death. %s",
				p.Name, lover.Name, lover.RoleDescription())
		}
		s.kill(ctx, lover, KillLoverDied, p, isNight, true)
		s.checkRoleChanges(ctx)
	}

	if p.is(RoleWolfCub) {
		s.wolfCubKilled = true
	}
	if p.is(RoleHunter) && finalShot && method != KillNone {
		s.hunterFinalShot(ctx, p, method, isNight)
	}
}

// hunterFinalShot lets a dying hunter take someone along. Deferred shots
// are parked on the player until resolvePendingShots runs.
func (s *Session) hunterFinalShot(ctx context.Context, hunter *Player, method KillMethod, deferred bool) {
	if deferred {
		hunter.FinalShotOwed = method
		return
	}

	targets := s.shuffled(s.alivePlayers())
	if len(targets) == 0 {
		return
	}
	text := "You have been murdered! With your last breath you may shoot someone. Quick!"
	if method == KillLynch {
		text = "The village has decided to hang you! This is your last chance to take someone with you. Quick!"
	}
	q := targetQuestion(QuestionHunterKill, text, targets, true)
	c := s.ask(ctx, hunter, q, s.timeout(s.Settings.ShotSeconds))
	s.recorder.RecordAction(ctx, s, hunter, QuestionHunterKill, s.chosenPlayer(q, c))

	switch {
	case c.TimedOut:
		if method == KillLynch {
			s.announce(ctx, "As the noose tightens around %s's neck, they fumble for their gun, but it is too late.", hunter.Name)
		} else {
			s.announce(ctx, "%s lies in a pool of blood, too weak to reach for their weapon.", hunter.Name)
		}
		return
	case c.Skipped():
		s.announce(ctx, "%s draws their gun, looks at the crowd, and lowers it again. They accept their fate.", hunter.Name)
		return
	}

	target := s.chosenPlayer(q, c)
	if target == nil {
		return
	}
	if target.is(RoleWiseElder) {
		target.setRole(RoleByID(RoleVillager))
		s.announce(ctx, "🎯 Hunter %s shoots at the wise elder %s and instantly regrets it. %s gives up their wisdom and becomes a simple villager.",
			hunter.Name, target.Name, target.Name)
		return
	}
	s.announce(ctx, "With a final effort %s fires at %s, who drops dead on the spot. %s",
		hunter.Name, target.Name, target.RoleDescription())
	s.kill(ctx, target, KillHunterShot, hunter, false, true)
}

// resolvePendingShots runs every final shot owed from the night
func (s *Session) resolvePendingShots(ctx context.Context) {
	for _, p := range s.players {
		if p.FinalShotOwed == KillNone {
			continue
		}
		method := p.FinalShotOwed
		p.FinalShotOwed = KillNone
		s.hunterFinalShot(ctx, p, method, false)
	}
}

// checkRoleChanges runs the identity triggers after a death settles
func (s *Session) checkRoleChanges(ctx context.Context) {
	for _, p := range s.alivePlayers() {
		if p.is(RoleApprenticeSeer) {
			s.processApprenticeSeer(ctx, p)
		}
	}
	for _, p := range s.alivePlayers() {
		if p.is(RoleWildChild) {
			s.processWildChild(ctx, p)
		}
	}
	for _, p := range s.alivePlayers() {
		if p.is(RoleDoppelganger) {
			s.processDoppelganger(ctx, p)
		}
	}
}

func (s *Session) processApprenticeSeer(ctx context.Context, aps *Player) {
	if aps.promoted {
		return
	}
	seers := s.playersWithRole(RoleSeer)
	if len(seers) == 0 || s.survivorWithRole(RoleSeer) != nil {
		return
	}
	seer := seers[0]
	aps.setRole(RoleByID(RoleSeer))
	aps.promoted = true
	s.send(ctx, aps, "%s was the Seer. As the apprentice, you step up and take their place.", seer.Name)
	if beholder := s.survivorWithRole(RoleBeholder); beholder != nil {
		s.send(ctx, beholder, "%s was the Seer's apprentice and has now taken %s's place as the Seer.", aps.Name, seer.Name)
	}
}

func (s *Session) processWildChild(ctx context.Context, wc *Player) {
	model := s.roleModel(wc)
	if wc.mutated || model == nil || model.Alive() {
		return
	}
	wc.setRole(RoleByID(RoleWolf))
	wc.mutated = true
	wolves := s.aliveWolves()
	for _, w := range wolves {
		if w != wc {
			s.send(ctx, w, "%s's role model has died. They have joined the pack!", wc.Name)
		}
	}
	s.send(ctx, wc, "Your role model %s has died! You are now a wolf. Your pack:\n%s", model.Name, names(wolves))
}

func (s *Session) processDoppelganger(ctx context.Context, dg *Player) {
	model := s.roleModel(dg)
	if dg.adopted || model == nil || model.Alive() {
		return
	}
	role := model.Role
	dg.setRole(role)
	dg.adopted = true
	if role.ID == RoleGunner {
		dg.Bullets = model.Bullets
	}

	switch {
	case role.ID == RoleMason:
		masons := without(s.playersWithRole(RoleMason), func(p *Player) bool { return p.Dead })
		for _, m := range masons {
			if m != dg {
				s.send(ctx, m, "The doppelganger %s has become a mason, just like you.", dg.Name)
			}
		}
		s.send(ctx, dg, "%s has died, so you became a mason. Your brothers:\n%s", model.Name, names(masons))
	case IsWolf(role):
		wolves := s.aliveWolves()
		for _, w := range wolves {
			if w != dg {
				s.send(ctx, w, "The doppelganger %s has become a %s, just like you.", dg.Name, role)
			}
		}
		s.send(ctx, dg, "%s has died, so you became a %s. Your pack:\n%s", model.Name, role, names(wolves))
	case role.ID == RoleCultist:
		cult := without(s.playersWithRole(RoleCultist), func(p *Player) bool { return p.Dead })
		for _, c := range cult {
			if c != dg {
				s.send(ctx, c, "The doppelganger %s has joined the cult.", dg.Name)
			}
		}
		s.send(ctx, dg, "%s has died, so you became a cultist. The cult:\n%s", model.Name, names(cult))
	default:
		if role.ID == RoleSeer {
			if beholder := s.survivorWithRole(RoleBeholder); beholder != nil {
				s.send(ctx, beholder, "The doppelganger %s has taken %s's place as the Seer.", dg.Name, model.Name)
			}
		}
		s.send(ctx, dg, "%s has died, so you became the %s.\n%s", model.Name, role, s.roleInfo(role))
	}
}
