package main

// Faction is the alignment group whose survival decides a win
type Faction string

const (
	FactionVillage      Faction = "Village"
	FactionWolf         Faction = "Wolf"
	FactionCult         Faction = "Cult"
	FactionTanner       Faction = "Tanner"
	FactionSerialKiller Faction = "SerialKiller"
	FactionArsonist     Faction = "Arsonist"
	FactionSorcerer     Faction = "Sorcerer"
	FactionThief        Faction = "Thief"
	FactionDoppelganger Faction = "Doppelganger"
	FactionNeutral      Faction = "Neutral"
)

// RoleID is the closed set of role tags
type RoleID int

const (
	RoleVillager RoleID = iota
	RoleDrunk
	RoleHarlot
	RoleSeer
	RoleTraitor
	RoleGuardianAngel
	RoleDetective
	RoleWolf
	RoleCursed
	RoleGunner
	RoleTanner
	RoleFool
	RoleClumsyGuy
	RoleCultist
	RoleCultistHunter
	RoleWildChild
	RoleBeholder
	RoleMason
	RoleDoppelganger
	RoleCupid
	RoleHunter
	RoleSerialKiller
	RoleSorcerer
	RoleAlphaWolf
	RoleWolfCub
	RoleBlacksmith
	RoleApprenticeSeer
	RolePrince
	RoleMayor
	RoleLycan
	RoleWiseElder
	RolePacifist
	RoleSandman
	RoleThief
	RoleSnowWolf
	RoleArsonist
	roleCount
)

// DayAbility is a once-per-game or repeatable ability used during the day
type DayAbility int

const (
	DayNone DayAbility = iota
	DayShoot
	DayMayor
	DaySpreadSilver
	DaySandman
	DayPacifist
)

// Role is an immutable catalog entry shared by every player holding it
type Role struct {
	ID       RoleID
	Name     string
	Emoji    string
	Faction  Faction
	Strength int
	Bit      uint
	Night    QuestionType // QuestionNone when the role has no night ability
	Once     bool         // night ability is offered on the first night only
	Day      DayAbility
	Desc     string
}

func (r *Role) String() string {
	return r.Emoji + r.Name
}

var catalog = [roleCount]*Role{
	RoleVillager:       {Name: "Villager", Emoji: "👱", Faction: FactionVillage, Strength: 1, Desc: "You are a simple villager. Find the wolves and lynch them."},
	RoleDrunk:          {Name: "Drunk", Emoji: "🍻", Faction: FactionVillage, Strength: 3, Desc: "You are the village drunk. Wolves that eat you will be too drunk to hunt the next night."},
	RoleHarlot:         {Name: "Harlot", Emoji: "💋", Faction: FactionVillage, Strength: 6, Night: QuestionVisit, Desc: "Each night you visit someone. If the wolves come for you, you are not home."},
	RoleSeer:           {Name: "Seer", Emoji: "👳", Faction: FactionVillage, Strength: 7, Night: QuestionSee, Desc: "Each night you may see the true role of one player."},
	RoleTraitor:        {Name: "Traitor", Emoji: "🖕", Faction: FactionWolf, Strength: 0, Desc: "You look like a villager, but you side with the wolves. If every wolf dies, you become one."},
	RoleGuardianAngel:  {Name: "Guardian Angel", Emoji: "👼", Faction: FactionVillage, Strength: 7, Night: QuestionGuard, Desc: "Each night you may protect one player from death."},
	RoleDetective:      {Name: "Detective", Emoji: "🕵️", Faction: FactionVillage, Strength: 6, Night: QuestionDetect, Desc: "Each night you investigate one player. The wolves may notice you."},
	RoleWolf:           {Name: "Wolf", Emoji: "🐺", Faction: FactionWolf, Strength: 10, Night: QuestionKill, Desc: "You are a werewolf. Each night, choose a villager to eat with your pack."},
	RoleCursed:         {Name: "Cursed", Emoji: "😾", Faction: FactionVillage, Strength: 1, Desc: "You are a villager, but if the wolves attack you, you turn into one of them."},
	RoleGunner:         {Name: "Gunner", Emoji: "🔫", Faction: FactionVillage, Strength: 6, Day: DayShoot, Desc: "You have two silver bullets. During the day you may shoot one player."},
	RoleTanner:         {Name: "Tanner", Emoji: "👺", Faction: FactionTanner, Strength: 5, Desc: "You hate your job and your life. You win only if the village lynches you."},
	RoleFool:           {Name: "Fool", Emoji: "🃏", Faction: FactionVillage, Strength: 3, Night: QuestionSee, Desc: "You are the Seer! Probably."},
	RoleClumsyGuy:      {Name: "Clumsy Guy", Emoji: "🤕", Faction: FactionVillage, Strength: 1, Desc: "You are so clumsy that half of your lynch votes land on someone random."},
	RoleCultist:        {Name: "Cultist", Emoji: "👤", Faction: FactionCult, Strength: 10, Night: QuestionConvert, Desc: "Each night the cult tries to convert one player to its cause."},
	RoleCultistHunter:  {Name: "Cultist Hunter", Emoji: "💂", Faction: FactionVillage, Strength: 7, Night: QuestionHunt, Desc: "Each night you hunt one player. If they belong to the cult, they die."},
	RoleWildChild:      {Name: "Wild Child", Emoji: "👶", Faction: FactionVillage, Strength: 1, Night: QuestionRoleModel, Once: true, Desc: "Choose a role model. If they die, you become a wolf."},
	RoleBeholder:       {Name: "Beholder", Emoji: "👁", Faction: FactionVillage, Strength: 2, Desc: "You know who the Seer is."},
	RoleMason:          {Name: "Mason", Emoji: "👷", Faction: FactionVillage, Strength: 3, Desc: "You know the other masons."},
	RoleDoppelganger:   {Name: "Doppelganger", Emoji: "🎭", Faction: FactionDoppelganger, Strength: 2, Night: QuestionRoleModel, Once: true, Desc: "Choose a player. When they die, you take their role."},
	RoleCupid:          {Name: "Cupid", Emoji: "🏹", Faction: FactionVillage, Strength: 2, Night: QuestionLover1, Once: true, Desc: "On the first night you choose two lovers. If one dies, so does the other."},
	RoleHunter:         {Name: "Hunter", Emoji: "🎯", Faction: FactionVillage, Strength: 6, Desc: "When you die, you may take one player with you."},
	RoleSerialKiller:   {Name: "Serial Killer", Emoji: "🔪", Faction: FactionSerialKiller, Strength: 15, Night: QuestionSerialKill, Desc: "Each night you kill someone. You win if you are the last one standing."},
	RoleSorcerer:       {Name: "Sorcerer", Emoji: "🔮", Faction: FactionSorcerer, Strength: 2, Night: QuestionSee, Desc: "You side with the wolves. Each night you learn whether a player is a wolf or the Seer."},
	RoleAlphaWolf:      {Name: "Alpha Wolf", Emoji: "⚡️", Faction: FactionWolf, Strength: 12, Night: QuestionKill, Desc: "You lead the pack. Your victims may be bitten and turned instead of eaten."},
	RoleWolfCub:        {Name: "Wolf Cub", Emoji: "🐶", Faction: FactionWolf, Strength: 10, Night: QuestionKill, Desc: "You are a young wolf. If you die, the pack kills twice the next night."},
	RoleBlacksmith:     {Name: "Blacksmith", Emoji: "⚒", Faction: FactionVillage, Strength: 5, Day: DaySpreadSilver, Desc: "Once per game you may spread silver dust, keeping the wolves away for a night."},
	RoleApprenticeSeer: {Name: "Apprentice Seer", Emoji: "🙇", Faction: FactionVillage, Strength: 6, Desc: "If the Seer dies, you take their place."},
	RolePrince:         {Name: "Prince", Emoji: "💍", Faction: FactionVillage, Strength: 3, Desc: "The first time the village tries to lynch you, your royal blood saves you."},
	RoleMayor:          {Name: "Mayor", Emoji: "🎖", Faction: FactionVillage, Strength: 3, Day: DayMayor, Desc: "Once revealed, your lynch vote counts twice."},
	RoleLycan:          {Name: "Lycan", Emoji: "🐺🌝", Faction: FactionWolf, Strength: 10, Night: QuestionKill, Desc: "You are a wolf, but the Seer sees you as a villager."},
	RoleWiseElder:      {Name: "Wise Elder", Emoji: "📚", Faction: FactionVillage, Strength: 3, Desc: "You survive the first wolf attack. A hunter's bullet only strips you of your wisdom."},
	RolePacifist:       {Name: "Pacifist", Emoji: "☮️", Faction: FactionVillage, Strength: 3, Day: DayPacifist, Desc: "Once per game you may stop the village from lynching anyone."},
	RoleSandman:        {Name: "Sandman", Emoji: "💤", Faction: FactionVillage, Strength: 3, Day: DaySandman, Desc: "Once per game you may put the whole village to sleep for a night."},
	RoleThief:          {Name: "Thief", Emoji: "😈", Faction: FactionThief, Strength: 0, Night: QuestionThief, Once: true, Desc: "You steal the role of another player."},
	RoleSnowWolf:       {Name: "Snow Wolf", Emoji: "🐺☃️", Faction: FactionWolf, Strength: 15, Night: QuestionFreeze, Desc: "Each night you freeze a player, stopping their ability the next night."},
	RoleArsonist:       {Name: "Arsonist", Emoji: "🔥", Faction: FactionArsonist, Strength: 8, Night: QuestionDouse, Desc: "Each night you douse a house, or set every doused house on fire."},
}

var (
	wolfRoles     []*Role
	specialRoles  []*Role
	wolfSet       [roleCount]bool
	evilSet       [roleCount]bool
	neutralSet    [roleCount]bool
	evilRoleIDs   = []RoleID{RoleWolf, RoleAlphaWolf, RoleWolfCub, RoleLycan, RoleSnowWolf, RoleCultist, RoleSerialKiller, RoleTanner, RoleSorcerer, RoleThief, RoleArsonist}
	wolfRoleIDs   = []RoleID{RoleWolf, RoleAlphaWolf, RoleWolfCub, RoleLycan, RoleSnowWolf}
	neutralRoleID = []RoleID{RoleTanner, RoleSorcerer, RoleThief, RoleDoppelganger}
)

func init() {
	for id, r := range catalog {
		r.ID = RoleID(id)
		r.Bit = uint(id)
	}
	for _, id := range wolfRoleIDs {
		wolfSet[id] = true
		wolfRoles = append(wolfRoles, catalog[id])
	}
	for _, id := range evilRoleIDs {
		evilSet[id] = true
	}
	for _, id := range neutralRoleID {
		neutralSet[id] = true
	}
	for _, r := range catalog {
		if wolfSet[r.ID] || r.ID == RoleVillager || r.ID == RoleMason {
			continue
		}
		specialRoles = append(specialRoles, r)
	}
}

// RoleByID looks up a catalog entry
func RoleByID(id RoleID) *Role {
	if id < 0 || id >= roleCount {
		return nil
	}
	return catalog[id]
}

// Roles returns every catalog entry in bit order
func Roles() []*Role {
	return catalog[:]
}

// WolfRoles returns the wolf-aligned roles
func WolfRoles() []*Role { return wolfRoles }

// SpecialRoles returns the non-wolf roles drawn once each into the pool
func SpecialRoles() []*Role { return specialRoles }

func IsWolf(r *Role) bool    { return r != nil && wolfSet[r.ID] }
func IsEvil(r *Role) bool    { return r != nil && evilSet[r.ID] }
func IsNotEvil(r *Role) bool { return r != nil && !evilSet[r.ID] }

// IsNeutral reports the unaligned roles whose win is not a plain majority
func IsNeutral(r *Role) bool { return r != nil && neutralSet[r.ID] }
