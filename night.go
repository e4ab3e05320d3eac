package main

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// nightAction is one prompt posed during a phase and what came of it
type nightAction struct {
	player *Player
	q      Question
	choice Choice
	target *Player
	// second is Cupid's second lover
	second *Player
}

func (a *nightAction) acted() bool {
	return a.player.Alive() && a.target != nil
}

// nightTargets lists who p may pick for the question type
func (s *Session) nightTargets(p *Player, t QuestionType) []*Player {
	others := without(s.alivePlayers(), func(o *Player) bool { return o == p })
	switch t {
	case QuestionKill, QuestionKill2, QuestionFreeze:
		return without(others, func(o *Player) bool { return IsWolf(o.Role) })
	case QuestionDouse:
		return without(others, func(o *Player) bool { return o.Doused })
	case QuestionConvert:
		return without(others, func(o *Player) bool { return o.is(RoleCultist) })
	case QuestionLover1:
		return s.alivePlayers()
	}
	return others
}

var nightPrompts = map[QuestionType]string{
	QuestionKill:       "Who do you want to eat tonight?",
	QuestionKill2:      "Revenge for the cub! Who do you want to eat second?",
	QuestionVisit:      "Whose house do you want to spend the night in?",
	QuestionSee:        "Whose role do you want to see?",
	QuestionGuard:      "Who do you want to protect tonight?",
	QuestionDetect:     "Who do you want to investigate?",
	QuestionConvert:    "Who should the cult try to convert?",
	QuestionRoleModel:  "Who do you choose as your role model?",
	QuestionHunt:       "Who do you want to hunt?",
	QuestionSerialKill: "Who do you want to kill tonight?",
	QuestionLover1:     "Choose the first lover.",
	QuestionLover2:     "Choose the second lover.",
	QuestionThief:      "Whose role do you want to steal?",
	QuestionFreeze:     "Who do you want to freeze?",
	QuestionDouse:      "Whose house do you want to douse? Or set them all on fire?",
}

// nightQuestion builds p's prompt for tonight, if p gets one
func (s *Session) nightQuestion(p *Player) (Question, bool) {
	if !p.Alive() || p.Frozen || p.Drunk || p.Role.Night == QuestionNone {
		return Question{}, false
	}
	if s.sleepNight || (s.silverSpread && IsWolf(p.Role)) {
		return Question{}, false
	}
	if p.Role.Once && s.Day != 1 && !(p.is(RoleThief) && s.Settings.ThiefFull) {
		return Question{}, false
	}

	t := p.Role.Night
	targets := s.nightTargets(p, t)
	q := targetQuestion(t, nightPrompts[t], targets, true)
	if t == QuestionDouse {
		for _, o := range s.alivePlayers() {
			if o.Doused {
				q.Options = append(q.Options, "🔥 Ignite")
				q.Targets = append(q.Targets, noPlayer)
				break
			}
		}
	}
	if len(q.Options) == 0 {
		return Question{}, false
	}
	return q, true
}

// nightQuestions collects every prompt of the night. With the cub flag
// armed the killing wolves get a second kill prompt.
func (s *Session) nightQuestions(kill2 bool) []*nightAction {
	var actions []*nightAction
	for _, p := range s.players {
		q, ok := s.nightQuestion(p)
		if !ok {
			continue
		}
		actions = append(actions, &nightAction{player: p, q: q})
		if kill2 && q.Type == QuestionKill {
			q2 := targetQuestion(QuestionKill2, nightPrompts[QuestionKill2], s.nightTargets(p, QuestionKill2), true)
			actions = append(actions, &nightAction{player: p, q: q2})
		}
	}
	return actions
}

// collectAnswers poses all prompts at once and waits for every answer or
// its timeout. Kill and Kill2 for the same wolf are asked in sequence.
func (s *Session) collectAnswers(ctx context.Context, actions []*nightAction, window time.Duration) {
	phaseCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	byPlayer := make(map[*Player][]*nightAction)
	var order []*Player
	for _, a := range actions {
		if _, ok := byPlayer[a.player]; !ok {
			order = append(order, a.player)
		}
		byPlayer[a.player] = append(byPlayer[a.player], a)
	}

	var g errgroup.Group
	for _, p := range order {
		g.Go(func() error {
			for _, a := range byPlayer[p] {
				s.answer(phaseCtx, a, window)
			}
			return nil
		})
	}
	g.Wait()

	for _, a := range actions {
		s.recorder.RecordAction(ctx, s, a.player, a.q.Type, a.target)
	}
}

func (s *Session) answer(ctx context.Context, a *nightAction, window time.Duration) {
	a.choice = s.ask(ctx, a.player, a.q, window)
	a.target = s.chosenPlayer(a.q, a.choice)
	if a.q.Type != QuestionLover1 || a.target == nil {
		return
	}
	rest := without(s.alivePlayers(), func(o *Player) bool { return o == a.target })
	q2 := targetQuestion(QuestionLover2, nightPrompts[QuestionLover2], rest, true)
	a.second = s.chosenPlayer(q2, s.ask(ctx, a.player, q2, window))
}

// runNight plays one night: prompts, answers, resolution
func (s *Session) runNight(ctx context.Context) {
	s.Night = true
	s.nightDeaths = nil
	s.announce(ctx, "🌙 Night %d falls. Everyone goes to sleep... or do they?", s.Day)

	for _, p := range s.alivePlayers() {
		p.resetNight()
		if p.Bitten {
			p.Bitten = false
			p.setRole(RoleByID(RoleWolf))
			s.send(ctx, p, "The bite has done its work. You are now a wolf! Your pack:\n%s", names(s.aliveWolves()))
		}
	}

	kill2 := s.wolfCubKilled
	s.wolfCubKilled = false
	actions := s.nightQuestions(kill2)
	if s.sleepNight {
		s.announce(ctx, "💤 The sandman has put the whole village to sleep.")
	}
	s.sleepNight = false
	s.silverSpread = false
	for _, p := range s.players {
		p.Frozen = false
		p.Drunk = false
	}

	s.collectAnswers(ctx, actions, s.timeout(s.Settings.NightSeconds))
	s.resolveNight(ctx, actions)
	s.checkRoleChanges(ctx)
	log.Printf("Session %s: night %d resolved, %d deaths", s.ID, s.Day, len(s.nightDeaths))
}

// resolveNight applies the answers in a fixed order
func (s *Session) resolveNight(ctx context.Context, actions []*nightAction) {
	of := func(types ...QuestionType) []*nightAction {
		var out []*nightAction
		for _, a := range actions {
			for _, t := range types {
				if a.q.Type == t {
					out = append(out, a)
				}
			}
		}
		return out
	}
	guarded := make(map[*Player]*Player) // target -> guardian angel

	s.resolveThief(ctx, of(QuestionThief))
	s.resolveCupid(ctx, of(QuestionLover1))
	for _, a := range of(QuestionRoleModel) {
		if !a.acted() {
			continue
		}
		a.player.RoleModel = a.target.Index
		s.send(ctx, a.player, "You chose %s as your role model.", a.target.Name)
	}
	for _, a := range of(QuestionFreeze) {
		if a.acted() {
			a.target.Frozen = true
			s.send(ctx, a.target, "❄️ You were frozen by the snow wolf and cannot use your ability tomorrow night.")
		}
	}
	for _, a := range of(QuestionVisit) {
		if a.acted() {
			a.player.Target = a.target.Index
		}
	}
	for _, a := range of(QuestionGuard) {
		if a.acted() {
			a.player.Target = a.target.Index
			guarded[a.target] = a.player
		}
	}

	eaten := s.resolveWolves(ctx, of(QuestionKill), of(QuestionKill2), guarded)
	skVictim := s.resolveSerialKiller(ctx, of(QuestionSerialKill), guarded)
	s.resolveHarlots(ctx, eaten, skVictim)
	s.resolveGuardians(ctx, guarded)
	s.resolveCult(ctx, of(QuestionConvert), guarded)
	s.resolveHunt(ctx, of(QuestionHunt))
	s.resolveArsonist(ctx, of(QuestionDouse))
	s.resolveInfo(ctx, of(QuestionSee, QuestionDetect))
}

func (s *Session) resolveThief(ctx context.Context, actions []*nightAction) {
	for _, a := range actions {
		if !a.acted() || !a.target.Alive() {
			continue
		}
		thief, victim := a.player, a.target
		if victim.is(RoleSerialKiller) {
			s.send(ctx, thief, "You tried to rob the serial killer. Bad idea.")
			s.kill(ctx, thief, KillStealKiller, victim, true, true)
			continue
		}
		stolen := victim.Role
		thief.setRole(stolen)
		if stolen.ID == RoleGunner {
			thief.Bullets, victim.Bullets = victim.Bullets, 0
		}
		if s.Settings.ThiefFull {
			victim.setRole(RoleByID(RoleThief))
		} else {
			victim.setRole(RoleByID(RoleVillager))
		}
		s.send(ctx, thief, "You stole the role of %s.\n%s", victim.Name, s.roleInfo(stolen))
		s.send(ctx, victim, "Someone stole your role! You are now the %s.", victim.Role)
	}
}

func (s *Session) resolveCupid(ctx context.Context, actions []*nightAction) {
	for _, a := range actions {
		if !a.player.Alive() || a.target == nil || a.second == nil || a.target == a.second {
			continue
		}
		first, second := a.target, a.second
		first.Lover, second.Lover = second.Index, first.Index
		s.send(ctx, first, "💘 You fell in love with %s (%s). If one of you dies, so does the other.", second.Name, second.Role)
		s.send(ctx, second, "💘 You fell in love with %s (%s). If one of you dies, so does the other.", first.Name, first.Role)
	}
}

// pickVote returns the most voted player, breaking ties at random
func (s *Session) pickVote(actions []*nightAction) *Player {
	counts := make(map[*Player]int)
	best := 0
	for _, a := range actions {
		if !a.acted() || !a.target.Alive() {
			continue
		}
		counts[a.target]++
		best = max(best, counts[a.target])
	}
	var top []*Player
	for _, p := range s.players {
		if counts[p] == best && best > 0 {
			top = append(top, p)
		}
	}
	if len(top) == 0 {
		return nil
	}
	return top[s.rng.IntN(len(top))]
}

// resolveWolves carries out the pack's attacks and returns who was eaten
func (s *Session) resolveWolves(ctx context.Context, kills, kills2 []*nightAction, guarded map[*Player]*Player) []*Player {
	var eaten []*Player
	victim := s.pickVote(kills)
	if victim != nil && s.wolfAttack(ctx, victim, kills, guarded) {
		eaten = append(eaten, victim)
	}
	if len(kills2) > 0 {
		var second []*nightAction
		for _, a := range kills2 {
			if a.target != victim {
				second = append(second, a)
			}
		}
		if v2 := s.pickVote(second); v2 != nil && s.wolfAttack(ctx, v2, kills2, guarded) {
			eaten = append(eaten, v2)
		}
	}
	return eaten
}

// wolfAttack resolves one attack on victim and reports whether it was eaten
func (s *Session) wolfAttack(ctx context.Context, victim *Player, votes []*nightAction, guarded map[*Player]*Player) bool {
	var pack []*Player
	for _, a := range votes {
		if a.player.Alive() {
			pack = append(pack, a.player)
		}
	}
	if len(pack) == 0 {
		return false
	}
	killer := pack[0]
	notifyPack := func(format string, args ...any) {
		for _, w := range s.aliveWolves() {
			s.send(ctx, w, format, args...)
		}
	}

	switch {
	case guarded[victim] != nil:
		s.send(ctx, guarded[victim], "👼 You protected %s from the wolves tonight!", victim.Name)
		s.send(ctx, victim, "The wolves came for you, but a guardian angel kept you safe.")
		notifyPack("A guardian angel protected %s.", victim.Name)
		return false
	case victim.is(RoleHarlot) && victim.Target != noPlayer:
		notifyPack("%s was not at home tonight.", victim.Name)
		return false
	case victim.is(RoleCursed):
		victim.setRole(RoleByID(RoleWolf))
		s.send(ctx, victim, "The wolves attacked you, and their curse took hold. You are now a wolf! Your pack:\n%s", names(s.aliveWolves()))
		notifyPack("%s was cursed and has joined the pack!", victim.Name)
		return false
	case victim.is(RoleWiseElder) && !victim.elderSpent:
		victim.elderSpent = true
		s.send(ctx, victim, "📚 The wolves attacked you, but your wisdom saved you. It won't work twice.")
		notifyPack("%s was too wise to be eaten tonight.", victim.Name)
		return false
	case victim.is(RoleSerialKiller):
		w := pack[s.rng.IntN(len(pack))]
		s.send(ctx, victim, "The wolves came for you. You stabbed %s instead.", w.Name)
		s.kill(ctx, w, KillSerialKilled, victim, true, true)
		return false
	}

	if s.survivorWithRole(RoleAlphaWolf) != nil && s.chance() < 0.2 {
		victim.Bitten = true
		s.send(ctx, victim, "The alpha wolf bit you. Something inside you starts to change...")
		notifyPack("The alpha bit %s. They will join the pack next night.", victim.Name)
		return false
	}

	s.kill(ctx, victim, KillEat, killer, true, true)
	if victim.is(RoleDrunk) {
		for _, w := range s.aliveWolves() {
			w.Drunk = true
			s.send(ctx, w, "🍻 You ate the drunk and are too drunk to hunt tomorrow night.")
		}
	}
	return true
}

func (s *Session) resolveSerialKiller(ctx context.Context, actions []*nightAction, guarded map[*Player]*Player) *Player {
	var victim *Player
	for _, a := range actions {
		if !a.acted() || !a.target.Alive() {
			continue
		}
		target := a.target
		switch {
		case guarded[target] != nil:
			s.send(ctx, guarded[target], "👼 You protected %s from the serial killer tonight!", target.Name)
			s.send(ctx, a.player, "Someone protected %s tonight.", target.Name)
		case target.is(RoleHarlot) && target.Target != noPlayer:
			s.send(ctx, a.player, "%s was not at home tonight.", target.Name)
		default:
			s.kill(ctx, target, KillSerialKilled, a.player, true, true)
			victim = target
		}
	}
	return victim
}

// resolveHarlots kills harlots who spent the night at the wrong house
func (s *Session) resolveHarlots(ctx context.Context, eaten []*Player, skVictim *Player) {
	for _, h := range s.playersWithRole(RoleHarlot) {
		if !h.Alive() || h.Target == noPlayer {
			continue
		}
		host := s.players[h.Target]
		switch {
		case IsWolf(host.Role):
			s.kill(ctx, h, KillVisitWolf, host, true, true)
		case host.is(RoleSerialKiller):
			s.kill(ctx, h, KillVisitKiller, host, true, true)
		case host == skVictim:
			s.kill(ctx, h, KillVisitVictim, host, true, true)
		default:
			for _, e := range eaten {
				if e == host {
					s.kill(ctx, h, KillVisitVictim, host, true, true)
					break
				}
			}
		}
		if h.Alive() {
			s.send(ctx, h, "You spent the night with %s, who seems to be just a %s.", host.Name, seenRole(host))
		}
	}
}

// resolveGuardians gives angels guarding a killer a coin flip for their life
func (s *Session) resolveGuardians(ctx context.Context, guarded map[*Player]*Player) {
	for target, ga := range guarded {
		if !ga.Alive() {
			continue
		}
		switch {
		case IsWolf(target.Role):
			if s.chance() < 0.5 {
				s.kill(ctx, ga, KillGuardWolf, target, true, true)
			}
		case target.is(RoleSerialKiller):
			if s.chance() < 0.5 {
				s.kill(ctx, ga, KillGuardKiller, target, true, true)
			}
		}
	}
}

func (s *Session) resolveCult(ctx context.Context, actions []*nightAction, guarded map[*Player]*Player) {
	target := s.pickVote(actions)
	if target == nil {
		return
	}
	var cult []*Player
	for _, a := range actions {
		if a.player.Alive() {
			cult = append(cult, a.player)
		}
	}
	if len(cult) == 0 {
		return
	}
	notifyCult := func(format string, args ...any) {
		for _, c := range cult {
			s.send(ctx, c, format, args...)
		}
	}

	switch {
	case target.is(RoleCultistHunter):
		victim := cult[s.rng.IntN(len(cult))]
		notifyCult("You tried to convert the cultist hunter %s. %s did not make it home.", target.Name, victim.Name)
		s.kill(ctx, victim, KillHunterCult, target, true, true)
	case IsWolf(target.Role) || target.is(RoleSerialKiller) || target.is(RoleArsonist) || guarded[target] != nil:
		notifyCult("%s could not be converted.", target.Name)
	default:
		target.setRole(RoleByID(RoleCultist))
		roster := without(s.playersWithRole(RoleCultist), func(p *Player) bool { return p.Dead })
		s.send(ctx, target, "👤 You have been converted to the cult! Your brothers:\n%s", names(roster))
		notifyCult("%s has joined the cult.", target.Name)
	}
}

func (s *Session) resolveHunt(ctx context.Context, actions []*nightAction) {
	for _, a := range actions {
		if !a.acted() || !a.target.Alive() {
			continue
		}
		switch {
		case a.target.is(RoleCultist):
			s.send(ctx, a.player, "💂 %s was a cultist. You took care of them.", a.target.Name)
			s.kill(ctx, a.target, KillHunt, a.player, true, true)
		case a.target.is(RoleSerialKiller):
			s.kill(ctx, a.player, KillSerialKilled, a.target, true, true)
		default:
			s.send(ctx, a.player, "%s is not a cultist.", a.target.Name)
		}
	}
}

func (s *Session) resolveArsonist(ctx context.Context, actions []*nightAction) {
	for _, a := range actions {
		if !a.player.Alive() || a.choice.Skipped() {
			continue
		}
		if a.target != nil {
			a.target.Doused = true
			s.send(ctx, a.player, "🔥 You doused %s's house.", a.target.Name)
			continue
		}
		var burning []*Player
		for _, p := range s.alivePlayers() {
			if p.Doused {
				burning = append(burning, p)
			}
		}
		for _, p := range burning {
			s.kill(ctx, p, KillBurn, a.player, true, true)
		}
		for _, h := range s.playersWithRole(RoleHarlot) {
			if h.Alive() && h.Target != noPlayer && s.players[h.Target].Doused {
				s.kill(ctx, h, KillVisitBurning, s.players[h.Target], true, true)
			}
		}
	}
}

// seenRole is what information roles learn about p
func seenRole(p *Player) *Role {
	if p.is(RoleLycan) {
		return RoleByID(RoleVillager)
	}
	return p.Role
}

func (s *Session) resolveInfo(ctx context.Context, actions []*nightAction) {
	for _, a := range actions {
		if !a.acted() {
			continue
		}
		seer, target := a.player, a.target
		switch {
		case seer.is(RoleSeer):
			s.send(ctx, seer, "👳 You see that %s is a %s.", target.Name, seenRole(target))
		case seer.is(RoleFool):
			roles := Roles()
			s.send(ctx, seer, "👳 You see that %s is a %s.", target.Name, roles[s.rng.IntN(len(roles))])
		case seer.is(RoleSorcerer):
			switch {
			case IsWolf(target.Role) && !target.is(RoleLycan):
				s.send(ctx, seer, "🔮 %s is a wolf.", target.Name)
			case target.is(RoleSeer):
				s.send(ctx, seer, "🔮 %s is the Seer.", target.Name)
			default:
				s.send(ctx, seer, "🔮 %s is neither a wolf nor the Seer.", target.Name)
			}
		case seer.is(RoleDetective):
			s.send(ctx, seer, "🕵️ %s is a %s.", target.Name, seenRole(target))
			if s.chance() < 0.4 {
				for _, w := range s.aliveWolves() {
					s.send(ctx, w, "%s was snooping around. They are the detective!", seer.Name)
				}
			}
		}
	}
}
