package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ============================================================================
// Test server
// ============================================================================

type testServer struct {
	*httptest.Server
	hub      *Hub
	registry *Registry
	ledger   *Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ledger := newTestLedger(t)
	registry := NewRegistry()
	settings := testSettings()
	settings.JoinSeconds = 3600
	hub := newHub(ctx, registry, settings, ledger)
	go hub.run()
	srv := httptest.NewServer(newRouter(hub, registry, ledger))
	t.Cleanup(func() {
		cancel()
		registry.Wait()
		hub.stop()
		srv.Close()
	})
	return &testServer{Server: srv, hub: hub, registry: registry, ledger: ledger}
}

// dial connects a participant, reusing cookie when it is not empty
func (ts *testServer) dial(t *testing.T, group, name, cookie string) (*websocket.Conn, *http.Response) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + url.Values{"group": {group}, "name": {name}}.Encode()
	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", participantCookieName+"="+cookie)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("Dial(%s) failed: %v", name, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, resp
}

func cookieValue(resp *http.Response) string {
	for _, c := range resp.Cookies() {
		if c.Name == participantCookieName {
			return c.Value
		}
	}
	return ""
}

func sendAction(t *testing.T, conn *websocket.Conn, msg WSMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
}

// readUntil reads frames until one matches or the deadline passes
func readUntil(t *testing.T, conn *websocket.Conn, match func(OutMessage) bool) OutMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg OutMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("No matching frame: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func textContains(typ, substr string) func(OutMessage) bool {
	return func(m OutMessage) bool { return m.Type == typ && strings.Contains(m.Text, substr) }
}

func isQuestion(m OutMessage) bool { return m.Type == "question" }

func intPtr(i int) *int { return &i }

// ============================================================================
// Connection
// ============================================================================

func TestWebSocketRequiresGroupAndName(t *testing.T) {
	ts := newTestServer(t)
	for _, query := range []string{"", "?group=g", "?name=Alice", "?group=g&name=" + strings.Repeat("x", maxNameLength+1)} {
		resp, err := http.Get(ts.URL + "/ws" + query)
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET /ws%s = %d, want 400", query, resp.StatusCode)
		}
	}
}

func TestParticipantCookieIsIssuedOnce(t *testing.T) {
	ts := newTestServer(t)
	_, resp := ts.dial(t, "g", "Alice", "")
	id := cookieValue(resp)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("Expected a uuid cookie, got %q", id)
	}

	_, resp = ts.dial(t, "g", "Alice", id)
	if got := cookieValue(resp); got != "" {
		t.Errorf("Known participant got a new cookie %q", got)
	}
}

// ============================================================================
// Lobby
// ============================================================================

func TestStartJoinAndList(t *testing.T) {
	ts := newTestServer(t)
	alice, _ := ts.dial(t, "village", "Alice", "")
	bob, _ := ts.dial(t, "village", "Bob", "")

	sendAction(t, alice, WSMessage{Action: "start"})
	readUntil(t, bob, textContains("broadcast", "Alice started a new normal game"))

	sendAction(t, bob, WSMessage{Action: "join"})
	readUntil(t, alice, textContains("broadcast", "Bob joined the game"))

	sendAction(t, alice, WSMessage{Action: "chaos"})
	readUntil(t, alice, textContains("toast", ErrSessionExists.Error()))

	resp, err := http.Get(ts.URL + "/sessions")
	if err != nil {
		t.Fatalf("GET /sessions failed: %v", err)
	}
	defer resp.Body.Close()
	var list []SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(list) != 1 || list[0].Group != "village" || list[0].Players != 2 || list[0].Status != "joining" {
		t.Errorf("Unexpected session list: %+v", list)
	}
}

func TestLobbyErrors(t *testing.T) {
	ts := newTestServer(t)
	alice, _ := ts.dial(t, "g", "Alice", "")
	carol, _ := ts.dial(t, "g", "Carol", "")

	sendAction(t, alice, WSMessage{Action: "join"})
	readUntil(t, alice, textContains("toast", "no game to join"))

	sendAction(t, alice, WSMessage{Action: "start"})
	readUntil(t, alice, textContains("broadcast", "started a new"))

	sendAction(t, alice, WSMessage{Action: "join"})
	readUntil(t, alice, textContains("toast", "already joined"))

	sendAction(t, carol, WSMessage{Action: "force_start"})
	readUntil(t, carol, textContains("toast", "Only players"))

	sendAction(t, carol, WSMessage{Action: "leave"})
	readUntil(t, carol, textContains("toast", "not in this game"))

	sendAction(t, carol, WSMessage{Action: "dance"})
	readUntil(t, carol, textContains("toast", "Unknown action"))
}

func TestLeaveBeforeStart(t *testing.T) {
	ts := newTestServer(t)
	alice, _ := ts.dial(t, "g", "Alice", "")
	bob, _ := ts.dial(t, "g", "Bob", "")

	sendAction(t, alice, WSMessage{Action: "start"})
	readUntil(t, bob, textContains("broadcast", "started a new"))
	sendAction(t, alice, WSMessage{Action: "leave"})
	readUntil(t, bob, textContains("broadcast", "Alice left the game"))

	s, ok := ts.registry.Get("g")
	if !ok || s.PlayerCount() != 0 {
		t.Error("Alice should be gone from the session")
	}
}

// ============================================================================
// Prompts
// ============================================================================

var testQuestion = Question{
	Type:    QuestionLynch,
	Text:    "Who do you want to lynch?",
	Options: []string{"Bob", "Carol"},
	Targets: []int{1, 2},
	CanSkip: true,
}

func TestRequestChoiceRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	alice, resp := ts.dial(t, "g", "Alice", "")
	who := Participant{ID: ParticipantID(cookieValue(resp)), Name: "Alice"}

	result := make(chan Choice, 1)
	go func() { result <- ts.hub.RequestChoice(context.Background(), who, testQuestion) }()

	q := readUntil(t, alice, isQuestion)
	if q.Question != testQuestion.Text || len(q.Options) != 2 || !q.CanSkip {
		t.Fatalf("Unexpected question frame: %+v", q)
	}

	sendAction(t, alice, WSMessage{Action: "answer", PromptID: q.PromptID, Choice: intPtr(7)})
	readUntil(t, alice, textContains("toast", "not one of the options"))

	sendAction(t, alice, WSMessage{Action: "answer", PromptID: "nope", Choice: intPtr(0)})
	readUntil(t, alice, textContains("toast", "no longer open"))

	sendAction(t, alice, WSMessage{Action: "answer", PromptID: q.PromptID, Choice: intPtr(1)})
	select {
	case c := <-result:
		if c.TimedOut || c.Index != 1 {
			t.Errorf("Expected choice 1, got %+v", c)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RequestChoice did not return")
	}

	sendAction(t, alice, WSMessage{Action: "answer", PromptID: q.PromptID, Choice: intPtr(0)})
	readUntil(t, alice, textContains("toast", "no longer open"))
}

func TestOthersCannotAnswerYourPrompt(t *testing.T) {
	ts := newTestServer(t)
	alice, resp := ts.dial(t, "g", "Alice", "")
	mallory, _ := ts.dial(t, "g", "Mallory", "")
	who := Participant{ID: ParticipantID(cookieValue(resp)), Name: "Alice"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ts.hub.RequestChoice(ctx, who, testQuestion)
	q := readUntil(t, alice, isQuestion)

	sendAction(t, mallory, WSMessage{Action: "answer", PromptID: q.PromptID, Choice: intPtr(0)})
	readUntil(t, mallory, textContains("toast", "no longer open"))
}

func TestRequestChoiceTimesOut(t *testing.T) {
	ts := newTestServer(t)
	alice, resp := ts.dial(t, "g", "Alice", "")
	who := Participant{ID: ParticipantID(cookieValue(resp)), Name: "Alice"}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	c := ts.hub.RequestChoice(ctx, who, testQuestion)

	if !c.TimedOut {
		t.Errorf("Expected a timeout, got %+v", c)
	}
	readUntil(t, alice, textContains("toast", "Time is up"))
}

func TestReconnectGetsOpenPrompt(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.NewString()
	who := Participant{ID: ParticipantID(id), Name: "Alice"}

	result := make(chan Choice, 1)
	go func() { result <- ts.hub.RequestChoice(context.Background(), who, testQuestion) }()

	// wait until the prompt is registered before connecting
	deadline := time.Now().Add(5 * time.Second)
	for {
		ts.hub.mu.RLock()
		n := len(ts.hub.pending)
		ts.hub.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Prompt was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	alice, _ := ts.dial(t, "g", "Alice", id)
	q := readUntil(t, alice, isQuestion)
	sendAction(t, alice, WSMessage{Action: "answer", PromptID: q.PromptID, Choice: intPtr(SkipChoice)})

	select {
	case c := <-result:
		if !c.Skipped() || c.TimedOut {
			t.Errorf("Expected an explicit skip, got %+v", c)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RequestChoice did not return")
	}
}

func TestClientsAreRateLimited(t *testing.T) {
	ts := newTestServer(t)
	alice, _ := ts.dial(t, "g", "Alice", "")

	for range clientBurst + 5 {
		sendAction(t, alice, WSMessage{Action: "answer", PromptID: "none"})
	}
	readUntil(t, alice, textContains("toast", "Slow down"))
}

// ============================================================================
// JSON endpoints
// ============================================================================

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || body["ledger"] != "ok" {
		t.Errorf("GET /healthz = %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Error("Responses should not be cached")
	}
}

func TestStatsAreGzipped(t *testing.T) {
	ts := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/stats", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /stats failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Encoding") != "gzip" {
		t.Fatalf("Expected gzip, got %q", resp.Header.Get("Content-Encoding"))
	}
	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	var counts []WinCount
	if err := json.NewDecoder(gz).Decode(&counts); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if counts == nil || len(counts) != 0 {
		t.Errorf("Expected an empty list, got %v", counts)
	}
}

func TestGameEndpointListsRecordedPlayers(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	s := NewSession("recorded", false, testSettings(), newFakeNotifier(), ts.ledger)
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		s.Join(Participant{ID: ParticipantID(name), Name: name})
	}
	s.setStatus(StatusRunning)
	s.StartTime = time.Now()
	s.Day = 1
	s.recorder.RecordGame(ctx, s)
	for i, id := range []RoleID{RoleVillager, RoleWolf, RoleSeer} {
		s.players[i].Role = RoleByID(id)
		s.recorder.RecordPlayer(ctx, s, s.players[i])
	}
	s.kill(ctx, s.players[1], KillLynch, nil, false, true)
	s.checkGameEnd(ctx, false)

	resp, err := http.Get(ts.URL + "/games/" + s.ID)
	if err != nil {
		t.Fatalf("GET /games failed: %v", err)
	}
	defer resp.Body.Close()
	var results []PlayerResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK || len(results) != 3 {
		t.Fatalf("GET /games = %d %+v", resp.StatusCode, results)
	}
	if bob := results[1]; bob.Name != "Bob" || bob.DiedDay != 1 || bob.KillMethod != KillLynch.String() || bob.Won {
		t.Errorf("Unexpected wolf line: %+v", bob)
	}
	if !results[0].Won || !results[2].Won {
		t.Errorf("Village should have won: %+v", results)
	}

	missing, err := http.Get(ts.URL + "/games/" + uuid.NewString())
	if err != nil {
		t.Fatalf("GET /games failed: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("Unknown game should be 404, got %d", missing.StatusCode)
	}
}
