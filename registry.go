package main

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
)

var ErrSessionExists = errors.New("a game is already running in this group")

// Registry holds the one live session per group. A session is inserted by
// Start and removed when its Run returns.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Get(group string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[group]
	return s, ok
}

// Start registers s under its group and runs it in its own goroutine.
// onDone, if set, is called with Run's result after the session is removed.
func (r *Registry) Start(ctx context.Context, s *Session, onDone func(*Session, error)) error {
	r.mu.Lock()
	if _, ok := r.sessions[s.Group]; ok {
		r.mu.Unlock()
		return ErrSessionExists
	}
	r.sessions[s.Group] = s
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := s.Run(ctx)
		r.remove(s)
		if err != nil {
			log.Printf("Registry: session %s in group %s ended: %v", s.ID, s.Group, err)
		}
		if onDone != nil {
			onDone(s, err)
		}
	}()
	return nil
}

// remove drops s only if it is still the group's session
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.Group] == s {
		delete(r.sessions, s.Group)
	}
}

// SessionInfo is the public summary of a live session
type SessionInfo struct {
	ID      string `json:"id"`
	Group   string `json:"group"`
	Status  string `json:"status"`
	Players int    `json:"players"`
	Chaos   bool   `json:"chaos"`
}

// List summarizes the live sessions ordered by group
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, SessionInfo{
			ID:      s.ID,
			Group:   s.Group,
			Status:  s.Status().String(),
			Players: s.PlayerCount(),
			Chaos:   s.Chaos,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Group < infos[j].Group })
	return infos
}

// Wait blocks until every started session has returned
func (r *Registry) Wait() {
	r.wg.Wait()
}
