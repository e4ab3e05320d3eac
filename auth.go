package main

import (
	"net/http"

	"github.com/google/uuid"
)

const participantCookieName = "werewolf_participant"

// participantID reads the participant cookie or issues a new one. The new
// cookie is added to header so it rides on the WebSocket upgrade response.
func participantID(r *http.Request, header http.Header) ParticipantID {
	if cookie, err := r.Cookie(participantCookieName); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return ParticipantID(id.String())
		}
		DebugLog("participantID: discarding malformed cookie %q", cookie.Value)
	}

	id := uuid.NewString()
	cookie := &http.Cookie{
		Name:     participantCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	header.Add("Set-Cookie", cookie.String())
	return ParticipantID(id)
}
