package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Recorder receives the history of a session as it happens. Games are
// never resumed from it; it only feeds statistics.
type Recorder interface {
	RecordGame(ctx context.Context, s *Session)
	RecordPlayer(ctx context.Context, s *Session, p *Player)
	RecordAction(ctx context.Context, s *Session, actor *Player, t QuestionType, target *Player)
	RecordDeath(ctx context.Context, s *Session, p *Player)
	RecordResult(ctx context.Context, s *Session)
}

type nopRecorder struct{}

func (nopRecorder) RecordGame(context.Context, *Session)                                   {}
func (nopRecorder) RecordPlayer(context.Context, *Session, *Player)                        {}
func (nopRecorder) RecordAction(context.Context, *Session, *Player, QuestionType, *Player) {}
func (nopRecorder) RecordDeath(context.Context, *Session, *Player)                         {}
func (nopRecorder) RecordResult(context.Context, *Session)                                 {}

type GameRow struct {
	ID        string         `db:"id"`
	GroupID   string         `db:"group_id"`
	Chaos     bool           `db:"chaos"`
	Players   int            `db:"players"`
	StartedAt time.Time      `db:"started_at"`
	EndedAt   sql.NullTime   `db:"ended_at"`
	Winner    sql.NullString `db:"winner"`
	Days      int            `db:"days"`
}

type GamePlayerRow struct {
	GameID        string         `db:"game_id"`
	ParticipantID string         `db:"participant_id"`
	Name          string         `db:"name"`
	Role          string         `db:"role"`
	CultLeader    bool           `db:"cult_leader"`
	DiedDay       sql.NullInt64  `db:"died_day"`
	KillMethod    sql.NullString `db:"kill_method"`
	KilledBy      sql.NullString `db:"killed_by"`
	Won           bool           `db:"won"`
}

type GameActionRow struct {
	GameID     string         `db:"game_id"`
	Day        int            `db:"day"`
	Phase      string         `db:"phase"`
	Actor      string         `db:"actor"`
	ActionType string         `db:"action_type"`
	Target     sql.NullString `db:"target"`
}

// Ledger is the sqlite-backed Recorder
type Ledger struct {
	db *sqlx.DB
}

// openLedger connects to the ledger database and creates the schema
func openLedger(dsn string) (*Ledger, error) {
	conn, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// sqlite serializes writers anyway; one connection keeps in-memory databases shared
	conn.SetMaxOpenConns(1)
	l := &Ledger{db: conn}
	if err := l.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS game (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		chaos INTEGER NOT NULL DEFAULT 0,
		players INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		winner TEXT,
		days INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS game_player (
		game_id TEXT NOT NULL,
		participant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		cult_leader INTEGER NOT NULL DEFAULT 0,
		died_day INTEGER,
		kill_method TEXT,
		killed_by TEXT,
		won INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (game_id) REFERENCES game(id),
		UNIQUE(game_id, participant_id)
	);
	CREATE TABLE IF NOT EXISTS game_action (
		game_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		phase TEXT NOT NULL,
		actor TEXT NOT NULL,
		action_type TEXT NOT NULL,
		target TEXT,
		FOREIGN KEY (game_id) REFERENCES game(id)
	);
	CREATE INDEX IF NOT EXISTS idx_game_action_game ON game_action(game_id, day);
	`
	if _, err := l.db.Exec(schema); err != nil {
		log.Printf("Ledger: schema error: %v", err)
		return fmt.Errorf("init ledger schema: %w", err)
	}
	log.Printf("Ledger initialized successfully")
	return nil
}

func phaseName(s *Session) string {
	if s.Night {
		return "night"
	}
	return "day"
}

func (l *Ledger) RecordGame(ctx context.Context, s *Session) {
	_, err := l.db.NamedExecContext(ctx, `
		INSERT INTO game (id, group_id, chaos, players, started_at)
		VALUES (:id, :group_id, :chaos, :players, :started_at)`,
		GameRow{ID: s.ID, GroupID: s.Group, Chaos: s.Chaos, Players: len(s.players), StartedAt: s.StartTime})
	if err != nil {
		logError("Ledger.RecordGame", err)
	}
}

func (l *Ledger) RecordPlayer(ctx context.Context, s *Session, p *Player) {
	_, err := l.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO game_player (game_id, participant_id, name, role, cult_leader)
		VALUES (:game_id, :participant_id, :name, :role, :cult_leader)`,
		GamePlayerRow{GameID: s.ID, ParticipantID: string(p.ID), Name: p.Name, Role: p.Role.Name, CultLeader: p.CultLeader})
	if err != nil {
		logError("Ledger.RecordPlayer", err)
	}
}

func (l *Ledger) RecordAction(ctx context.Context, s *Session, actor *Player, t QuestionType, target *Player) {
	row := GameActionRow{GameID: s.ID, Day: s.Day, Phase: phaseName(s), Actor: string(actor.ID), ActionType: t.String()}
	if target != nil {
		row.Target = sql.NullString{String: string(target.ID), Valid: true}
	}
	_, err := l.db.NamedExecContext(ctx, `
		INSERT INTO game_action (game_id, day, phase, actor, action_type, target)
		VALUES (:game_id, :day, :phase, :actor, :action_type, :target)`, row)
	if err != nil {
		logError("Ledger.RecordAction", err)
	}
}

func (l *Ledger) RecordDeath(ctx context.Context, s *Session, p *Player) {
	var killedBy sql.NullString
	if p.KilledBy != nil {
		killedBy = sql.NullString{String: p.KilledBy.Name, Valid: true}
	}
	_, err := l.db.ExecContext(ctx, `
		UPDATE game_player SET died_day = ?, kill_method = ?, killed_by = ?, role = ?
		WHERE game_id = ? AND participant_id = ?`,
		p.TimeDied, p.KillMethod.String(), killedBy, p.Role.Name, s.ID, string(p.ID))
	if err != nil {
		logError("Ledger.RecordDeath", err)
	}
}

// RecordResult stores the winner and every player's final role and win flag
func (l *Ledger) RecordResult(ctx context.Context, s *Session) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		logError("Ledger.RecordResult: begin", err)
		return
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE game SET ended_at = ?, winner = ?, days = ? WHERE id = ?`,
		s.EndTime, s.Winner.String(), s.Day, s.ID); err != nil {
		logError("Ledger.RecordResult: game", err)
		return
	}
	for _, p := range s.players {
		if _, err := tx.ExecContext(ctx, `UPDATE game_player SET won = ?, role = ? WHERE game_id = ? AND participant_id = ?`,
			p.Win, p.Role.Name, s.ID, string(p.ID)); err != nil {
			logError("Ledger.RecordResult: player", err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		logError("Ledger.RecordResult: commit", err)
		return
	}
	LogDBState(l.db, "after game "+s.ID)
}

// WinCount is one row of the win statistics
type WinCount struct {
	Winner string `db:"winner" json:"winner"`
	Games  int    `db:"games" json:"games"`
}

// WinCounts tallies finished games by winner
func (l *Ledger) WinCounts(ctx context.Context) ([]WinCount, error) {
	counts := []WinCount{}
	err := l.db.SelectContext(ctx, &counts, `
		SELECT winner, COUNT(*) AS games FROM game
		WHERE winner IS NOT NULL
		GROUP BY winner ORDER BY games DESC, winner`)
	if err != nil {
		return nil, fmt.Errorf("win counts: %w", err)
	}
	return counts, nil
}

// GamePlayers returns the ledger rows of one game in join order
func (l *Ledger) GamePlayers(ctx context.Context, gameID string) ([]GamePlayerRow, error) {
	var rows []GamePlayerRow
	err := l.db.SelectContext(ctx, &rows, `
		SELECT game_id, participant_id, name, role, cult_leader, died_day, kill_method, killed_by, won
		FROM game_player WHERE game_id = ? ORDER BY rowid`, gameID)
	if err != nil {
		return nil, fmt.Errorf("game players %s: %w", gameID, err)
	}
	return rows, nil
}

// PlayerResult is one player's line of a recorded game
type PlayerResult struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	CultLeader bool   `json:"cult_leader,omitempty"`
	DiedDay    int64  `json:"died_day,omitempty"`
	KillMethod string `json:"kill_method,omitempty"`
	KilledBy   string `json:"killed_by,omitempty"`
	Won        bool   `json:"won"`
}

func (r GamePlayerRow) result() PlayerResult {
	return PlayerResult{
		Name:       r.Name,
		Role:       r.Role,
		CultLeader: r.CultLeader,
		DiedDay:    r.DiedDay.Int64,
		KillMethod: r.KillMethod.String,
		KilledBy:   r.KilledBy.String,
		Won:        r.Won,
	}
}
