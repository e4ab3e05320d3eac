package main

import (
	"errors"
	"log"
)

// handleWSStart opens a new session in the client's group with the client
// as its first player.
func (h *Hub) handleWSStart(client *Client, chaos bool) {
	if s, ok := h.registry.Get(client.group); ok {
		DebugLog("handleWSStart: group %s already has session %s (%s)", client.group, s.ID, s.Status())
		sendErrorToast(client, ErrSessionExists.Error())
		return
	}

	s := NewSession(client.group, chaos, h.settings, h, h.recorder)
	if err := s.Join(client.participant); err != nil {
		logError("handleWSStart: Join", err)
		sendErrorToast(client, "Failed to join the new game")
		return
	}
	if err := h.registry.Start(h.ctx, s, h.sessionDone); err != nil {
		sendErrorToast(client, err.Error())
		return
	}

	mode := "normal"
	if chaos {
		mode = "chaos"
	}
	log.Printf("Starting game: id=%s, group=%s, mode=%s, by %s", s.ID, s.Group, mode, client.participant.Name)
	h.Broadcast(h.ctx, client.group, client.participant.Name+" started a new "+mode+" game! Send join to play.\n"+s.PlayerListString())
}

func (h *Hub) handleWSJoin(client *Client) {
	s, ok := h.registry.Get(client.group)
	if !ok {
		sendErrorToast(client, "There is no game to join. Start one first.")
		return
	}
	err := s.Join(client.participant)
	switch {
	case errors.Is(err, ErrAlreadyJoined):
		sendToast(client, "info", "You already joined this game.")
		return
	case errors.Is(err, ErrNotJoining):
		sendErrorToast(client, "The game has already started.")
		return
	case err != nil:
		logError("handleWSJoin: Join", err)
		sendErrorToast(client, "Failed to join")
		return
	}
	h.Broadcast(h.ctx, client.group, client.participant.Name+" joined the game.\n"+s.PlayerListString())
}

func (h *Hub) handleWSLeave(client *Client) {
	s, ok := h.registry.Get(client.group)
	if !ok {
		sendErrorToast(client, "There is no game to leave.")
		return
	}
	running := s.Status() == StatusRunning
	if err := s.Leave(client.participant.ID); err != nil {
		if errors.Is(err, ErrNotInSession) {
			sendErrorToast(client, "You are not in this game.")
			return
		}
		sendErrorToast(client, err.Error())
		return
	}
	if running {
		sendToast(client, "info", "You will flee the village at the next phase.")
		return
	}
	h.Broadcast(h.ctx, client.group, client.participant.Name+" left the game.\n"+s.PlayerListString())
}

func (h *Hub) handleWSForceStart(client *Client) {
	s, ok := h.registry.Get(client.group)
	if !ok || s.Status() != StatusJoining {
		sendErrorToast(client, "There is no game waiting for players.")
		return
	}
	if _, in := s.Player(client.participant.ID); !in {
		sendErrorToast(client, "Only players can force the start.")
		return
	}
	s.ForceStart()
}

// sessionDone runs when a session's game loop returns
func (h *Hub) sessionDone(s *Session, err error) {
	if errors.Is(err, ErrNotEnoughPlayers) {
		DebugLog("sessionDone: %s in group %s cancelled for lack of players", s.ID, s.Group)
		return
	}
	if err == nil {
		log.Printf("Game over in group %s: %s after %d days", s.Group, s.Winner, s.Day)
	}
}
