package main

import (
	"context"
	"fmt"
	"log"
	"time"
)

// countdownMarks are the remaining seconds at which the join timer is announced
var countdownMarks = map[int]string{
	60: "One minute left to join!",
	30: "30 seconds left to join!",
	10: "10 seconds left to join!",
}

// waitForPlayers runs the join countdown until it expires or someone
// forces the start.
func (s *Session) waitForPlayers(ctx context.Context) error {
	remaining := s.Settings.JoinSeconds
	if remaining <= 0 {
		return nil
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.forceStart:
			DebugLog("Session.waitForPlayers: group %s forced start with %ds left", s.Group, remaining)
			return nil
		case <-ticker.C:
			remaining--
			if msg, ok := countdownMarks[remaining]; ok {
				s.announce(ctx, "%s\n%s", msg, s.PlayerListString())
			}
		}
	}
	return nil
}

// closeJoining stops accepting players and moves the session on: to
// running when there are enough players, else straight to ended.
func (s *Session) closeJoining() (players int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	players = len(s.players)
	if players < s.Settings.MinPlayers {
		s.status = StatusEnded
		return players, false
	}
	s.status = StatusRunning
	return players, true
}

// Run drives the session from the join countdown to the end of the game.
// It returns ErrNotEnoughPlayers when the game was cancelled at start.
func (s *Session) Run(ctx context.Context) error {
	if err := s.waitForPlayers(ctx); err != nil {
		s.setStatus(StatusEnded)
		return fmt.Errorf("join countdown for %s: %w", s.Group, err)
	}

	players, ok := s.closeJoining()
	if !ok {
		s.announce(ctx, "Not enough players (%d of %d). The game is cancelled.", players, s.Settings.MinPlayers)
		return ErrNotEnoughPlayers
	}

	s.StartTime = time.Now()
	s.announce(ctx, "The game is starting with %d players. Assigning roles...", players)
	s.recorder.RecordGame(ctx, s)
	s.assignRoles(ctx)
	s.notifyRoles(ctx)
	log.Printf("Session %s: game started in group %s with %d players", s.ID, s.Group, players)

	for {
		s.Day++
		s.processFlees(ctx)
		s.runNight(ctx)
		if s.checkGameEnd(ctx, true) {
			break
		}
		if err := ctx.Err(); err != nil {
			return s.abort(err)
		}
		s.processFlees(ctx)
		s.runDay(ctx)
		if s.checkGameEnd(ctx, false) {
			break
		}
		if err := ctx.Err(); err != nil {
			return s.abort(err)
		}
	}

	log.Printf("Session %s: game over after %d days, winner %s", s.ID, s.Day, s.Winner)
	return nil
}

// abort ends a running session whose context is done
func (s *Session) abort(err error) error {
	s.setStatus(StatusEnded)
	log.Printf("Session %s: aborted during %s of day %d: %v", s.ID, phaseName(s), s.Day, err)
	return err
}
