package main

import (
	"context"
	"slices"
)

// maxBalanceAttempts bounds the rejection sampling in balance
const maxBalanceAttempts = 500

// wolfCount is the size of the wolf-aligned contingent for n players
func wolfCount(n int) int {
	return min(max(n/5, 1), 5)
}

// rolePool builds the candidate roles for n players. The wolf contingent
// always comes first; the rest is drawn from by balance.
func (s *Session) rolePool(n int) []*Role {
	settings := s.Settings
	var possibleWolves []*Role
	for _, r := range WolfRoles() {
		if !settings.IsDisabled(r) {
			possibleWolves = append(possibleWolves, r)
		}
	}
	wolves := wolfCount(n)
	if wolves == 1 {
		possibleWolves = slices.DeleteFunc(possibleWolves, func(r *Role) bool { return r.ID == RoleSnowWolf })
	}

	pool := make([]*Role, 0, n*2)
	for range wolves {
		if len(possibleWolves) == 0 {
			pool = append(pool, RoleByID(RoleWolf))
			continue
		}
		i := s.rng.IntN(len(possibleWolves))
		r := possibleWolves[i]
		if r.ID != RoleWolf {
			possibleWolves = slices.Delete(possibleWolves, i, i+1)
		}
		pool = append(pool, r)
	}

	for _, r := range SpecialRoles() {
		if settings.IsDisabled(r) {
			continue
		}
		if r.ID == RoleCultist {
			if n > 10 {
				pool = append(pool, r)
			}
			continue
		}
		pool = append(pool, r)
	}

	if mason := RoleByID(RoleMason); !settings.IsDisabled(mason) {
		pool = append(pool, mason, mason)
	}

	cultist := RoleByID(RoleCultist)
	if n > 10 && !settings.IsDisabled(cultist) && slices.ContainsFunc(pool, func(r *Role) bool { return r.ID == RoleCultistHunter }) {
		pool = append(pool, cultist, cultist)
	}

	villager := RoleByID(RoleVillager)
	for range n / 4 {
		pool = append(pool, villager)
	}
	for len(pool) < n {
		pool = append(pool, villager)
	}
	return pool
}

// draw keeps the wolf contingent and samples the remaining seats from the
// rest of the pool without replacement.
func (s *Session) draw(pool []*Role, n int) []*Role {
	wolves := wolfCount(n)
	rest := slices.Clone(pool[wolves:])
	s.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	roles := make([]*Role, 0, n)
	roles = append(roles, pool[:wolves]...)
	return append(roles, rest[:n-wolves]...)
}

func indexOfRole(roles []*Role, id RoleID) int {
	return slices.IndexFunc(roles, func(r *Role) bool { return r.ID == id })
}

func hasRole(roles []*Role, id RoleID) bool {
	return indexOfRole(roles, id) >= 0
}

// repair fixes combinations that make no sense on their own
func (s *Session) repair(roles []*Role) {
	if !hasRole(roles, RoleWolf) {
		i := indexOfRole(roles, RoleSnowWolf)
		if i < 0 {
			i = slices.IndexFunc(roles, func(r *Role) bool {
				return r.ID == RoleTraitor || r.ID == RoleSorcerer
			})
		}
		if i >= 0 {
			roles[i] = RoleByID(RoleWolf)
		}
	}

	if hasRole(roles, RoleCultist) && !hasRole(roles, RoleCultistHunter) && !s.Settings.IsDisabled(RoleByID(RoleCultistHunter)) {
		if i := indexOfRole(roles, RoleVillager); i >= 0 {
			roles[i] = RoleByID(RoleCultistHunter)
		} else {
			roles[indexOfRole(roles, RoleCultist)] = RoleByID(RoleVillager)
		}
	}

	if !s.Settings.BurningOverkill && hasRole(roles, RoleArsonist) && hasRole(roles, RoleSerialKiller) {
		roles[indexOfRole(roles, RoleArsonist)] = RoleByID(RoleVillager)
	}

	if i := indexOfRole(roles, RoleApprenticeSeer); i >= 0 && !hasRole(roles, RoleSeer) {
		roles[i] = RoleByID(RoleSeer)
	}
}

// strengths partitions a draw and sums both sides
func strengths(roles []*Role) (good, evil, goodSum, evilSum int) {
	for _, r := range roles {
		if IsEvil(r) {
			evil++
			evilSum += r.Strength
		} else {
			good++
			goodSum += r.Strength
		}
	}
	return
}

// fair is the acceptance predicate of a draw
func fair(roles []*Role, n int, chaos bool) bool {
	good, evil, goodSum, evilSum := strengths(roles)
	if good == 0 || evil == 0 || evil > good {
		return false
	}
	if chaos {
		return true
	}
	diff := goodSum - evilSum
	if diff < 0 {
		diff = -diff
	}
	return diff <= n/4+1
}

// balance draws n roles until one passes the fairness predicate or the
// attempt budget runs out, in which case the last draw stands.
func (s *Session) balance(n int) (roles []*Role, attempts int) {
	pool := s.rolePool(n)
	for attempts = 1; attempts <= maxBalanceAttempts; attempts++ {
		roles = s.draw(pool, n)
		s.repair(roles)
		if fair(roles, n, s.Chaos) {
			return roles, attempts
		}
	}
	return roles, maxBalanceAttempts
}

// assignRoles deals a balanced role set to the seated players
func (s *Session) assignRoles(ctx context.Context) {
	roles, attempts := s.balance(len(s.players))
	DebugLog("Session.assignRoles: %d roles for group %s after %d attempts", len(roles), s.Group, attempts)

	s.rng.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })
	seats := s.shuffled(s.players)
	for i, p := range seats {
		p.Role = roles[i]
		p.ChangedRole = 0
		p.CultLeader = p.is(RoleCultist)
		if p.is(RoleGunner) {
			p.Bullets = 2
		}
	}

	for _, p := range s.players {
		s.recorder.RecordPlayer(ctx, s, p)
	}
}

// roleInfo is the private briefing a player gets for a role
func (s *Session) roleInfo(r *Role) string {
	msg := "You are the " + r.String() + ". " + r.Desc
	switch {
	case r.ID == RoleThief && s.Settings.ThiefFull:
		msg += " Under the full rules you may steal every night."
	case r.ID == RoleBeholder:
		if seer := s.survivorWithRole(RoleSeer); seer != nil {
			msg += "\n" + seer.Name + " is the Seer."
		} else {
			msg += "\nThere is no Seer this game!"
		}
	case r.ID == RoleMason:
		msg += "\nThe masons are:\n" + names(s.playersWithRole(RoleMason))
	case IsWolf(r):
		msg += "\nThe pack:\n" + names(s.aliveWolves())
	case r.ID == RoleCultist:
		msg += "\nThe cult:\n" + names(s.playersWithRole(RoleCultist))
	}
	return msg
}

func (s *Session) notifyRoles(ctx context.Context) {
	for _, p := range s.players {
		s.send(ctx, p, "%s", s.roleInfo(p.Role))
	}
}
