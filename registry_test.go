package main

import (
	"context"
	"errors"
	"testing"
)

// waitingSession sits in its join countdown until the context is cancelled
func waitingSession(group string) *Session {
	settings := testSettings()
	settings.JoinSeconds = 3600
	return NewSession(group, false, settings, newFakeNotifier(), nil)
}

func TestRegistryOneSessionPerGroup(t *testing.T) {
	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := waitingSession("wolves")
	if err := reg.Start(ctx, first, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := reg.Start(ctx, waitingSession("wolves"), nil); !errors.Is(err, ErrSessionExists) {
		t.Errorf("Expected ErrSessionExists, got %v", err)
	}
	if got, ok := reg.Get("wolves"); !ok || got != first {
		t.Error("The first session should stay registered")
	}

	cancel()
	reg.Wait()
	if _, ok := reg.Get("wolves"); ok {
		t.Error("Session should be removed once Run returns")
	}
}

func TestRegistryCallsOnDone(t *testing.T) {
	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	var doneErr error
	var doneSession *Session
	s := waitingSession("village")
	reg.Start(ctx, s, func(s *Session, err error) {
		doneSession, doneErr = s, err
	})
	cancel()
	reg.Wait()

	if doneSession != s || !errors.Is(doneErr, context.Canceled) {
		t.Errorf("onDone got %v, %v", doneSession, doneErr)
	}
	if err := reg.Start(context.Background(), NewSession("village", false, testSettings(), newFakeNotifier(), nil), nil); err != nil {
		t.Errorf("Group should be free again: %v", err)
	}
	reg.Wait()
}

func TestRegistryListIsSortedByGroup(t *testing.T) {
	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		reg.Wait()
	}()

	for _, group := range []string{"charlie", "alpha", "bravo"} {
		s := waitingSession(group)
		s.Join(Participant{ID: "p", Name: "P"})
		if err := reg.Start(ctx, s, nil); err != nil {
			t.Fatalf("Start(%s) failed: %v", group, err)
		}
	}

	list := reg.List()
	if len(list) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(list))
	}
	for i, want := range []string{"alpha", "bravo", "charlie"} {
		if list[i].Group != want {
			t.Errorf("list[%d] = %s, want %s", i, list[i].Group, want)
		}
		if list[i].Status != "joining" || list[i].Players != 1 {
			t.Errorf("%s: status %s with %d players", want, list[i].Status, list[i].Players)
		}
	}
}
