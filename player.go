package main

// KillMethod is the recorded cause of a death
type KillMethod int

const (
	KillNone KillMethod = iota
	KillLynch
	KillEat
	KillShoot
	KillVisitWolf
	KillVisitVictim
	KillGuardWolf
	KillDetected
	KillFlee
	KillHunt
	KillHunterShot
	KillLoverDied
	KillSerialKilled
	KillHunterCult
	KillGuardKiller
	KillVisitKiller
	KillIdle
	KillSuicide
	KillStealKiller
	KillChemistry
	KillFallGrave
	KillSpotted
	KillBurn
	KillVisitBurning
)

var killMethodNames = map[KillMethod]string{
	KillLynch:        "lynched",
	KillEat:          "eaten by wolves",
	KillShoot:        "shot by the gunner",
	KillVisitWolf:    "visited a wolf",
	KillVisitVictim:  "visited the wolves' victim",
	KillGuardWolf:    "guarded a wolf",
	KillDetected:     "detected",
	KillFlee:         "fled the village",
	KillHunt:         "hunted down",
	KillHunterShot:   "shot by the hunter",
	KillLoverDied:    "died of a broken heart",
	KillSerialKilled: "stabbed by the serial killer",
	KillHunterCult:   "killed by the cultist hunter",
	KillGuardKiller:  "guarded the serial killer",
	KillVisitKiller:  "visited the serial killer",
	KillIdle:         "idled away",
	KillSuicide:      "took their own life",
	KillStealKiller:  "tried to rob the serial killer",
	KillChemistry:    "lost a potion duel",
	KillFallGrave:    "fell into a grave",
	KillSpotted:      "spotted by the wolves",
	KillBurn:         "burned alive",
	KillVisitBurning: "visited a burning house",
}

func (k KillMethod) String() string {
	if name, ok := killMethodNames[k]; ok {
		return name
	}
	return "alive"
}

// noPlayer marks an unset index relation
const noPlayer = -1

// Player is one participant's seat in a session. Lover and RoleModel are
// indexes into the session's player table, never owning links.
type Player struct {
	Participant
	Index int
	Role  *Role

	Dead          bool
	DiedLastNight bool
	TimeDied      int
	KillMethod    KillMethod
	KilledBy      *Role

	Lover       int
	RoleModel   int
	CultLeader  bool
	Win         bool
	ChangedRole int

	// night state
	Target      int
	AbilityUsed bool
	Frozen      bool
	Drunk       bool
	Doused      bool
	Bitten      bool
	Bullets     int
	missedVotes int

	// FinalShotOwed holds the cause of a night death whose hunter shot is deferred
	FinalShotOwed KillMethod

	promoted       bool
	mutated        bool
	adopted        bool
	elderSpent     bool
	daySpent       bool
	princeRevealed bool
	mayorRevealed  bool
}

func newPlayer(p Participant, index int) *Player {
	return &Player{
		Participant: p,
		Index:       index,
		Lover:       noPlayer,
		RoleModel:   noPlayer,
		Target:      noPlayer,
	}
}

func (p *Player) Alive() bool { return !p.Dead }

func (p *Player) is(id RoleID) bool { return p.Role != nil && p.Role.ID == id }

// setRole swaps the player's role and counts the change
func (p *Player) setRole(r *Role) {
	if p.Role != nil && p.Role != r {
		p.ChangedRole++
	}
	p.Role = r
}

func (p *Player) RoleDescription() string {
	return p.Name + " was the " + p.Role.String()
}

// resetNight clears per-night choices
func (p *Player) resetNight() {
	p.Target = noPlayer
	p.AbilityUsed = false
	p.DiedLastNight = false
}
