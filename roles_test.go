package main

import "testing"

func TestCatalogIsComplete(t *testing.T) {
	roles := Roles()
	if len(roles) != int(roleCount) {
		t.Fatalf("Expected %d roles, got %d", roleCount, len(roles))
	}
	names := make(map[string]bool)
	for i, r := range roles {
		if r == nil {
			t.Fatalf("Role %d is missing", i)
		}
		if r.ID != RoleID(i) || r.Bit != uint(i) {
			t.Errorf("%s: id %d bit %d at position %d", r.Name, r.ID, r.Bit, i)
		}
		if names[r.Name] {
			t.Errorf("Duplicate role name %s", r.Name)
		}
		names[r.Name] = true
		if r.Desc == "" || r.Emoji == "" || r.Faction == "" {
			t.Errorf("%s is missing its description, emoji or faction", r.Name)
		}
		if r.Once && r.Night == QuestionNone {
			t.Errorf("%s has a first-night flag without a night ability", r.Name)
		}
	}
	if RoleByID(roleCount) != nil || RoleByID(-1) != nil {
		t.Error("Out of range lookups should return nil")
	}
}

func TestWolvesAreEvilAndNeverSpecial(t *testing.T) {
	for _, w := range WolfRoles() {
		if !IsEvil(w) || w.Faction != FactionWolf {
			t.Errorf("%s should be an evil wolf", w.Name)
		}
	}
	for _, r := range SpecialRoles() {
		if IsWolf(r) || r.ID == RoleVillager || r.ID == RoleMason {
			t.Errorf("%s should not be in the special set", r.Name)
		}
	}
	if IsWolf(RoleByID(RoleTraitor)) || IsWolf(RoleByID(RoleSorcerer)) {
		t.Error("Traitor and sorcerer side with the wolves but do not hunt")
	}
}

func TestNeutralRoles(t *testing.T) {
	for _, r := range Roles() {
		want := r.ID == RoleTanner || r.ID == RoleSorcerer || r.ID == RoleThief || r.ID == RoleDoppelganger
		if IsNeutral(r) != want {
			t.Errorf("IsNeutral(%s) = %v", r.Name, !want)
		}
		if IsEvil(r) == IsNotEvil(r) {
			t.Errorf("%s is both or neither evil and not evil", r.Name)
		}
	}
}

func TestRoleString(t *testing.T) {
	if got := RoleByID(RoleSeer).String(); got != "👳Seer" {
		t.Errorf("String() = %q", got)
	}
}
