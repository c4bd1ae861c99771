package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/engine"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

// SQLiteIndex is a secondary read-model of everything the crews emit:
// resolved rounds, per-role actions, mining outcomes, briefing chat, system
// events and per-round analytics. Writes funnel through a single goroutine;
// when the indexer falls behind, entries are dropped because the JSONL logs
// remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqRound reqKind = iota + 1
	reqChat
	reqSystem
	reqFlush
)

type req struct {
	kind reqKind

	round  protocol.RoundResultMsg
	crewID string
	chat   protocol.ChatMsg
	system engine.SystemEvent
	done   chan struct{}
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style workload; NORMAL is enough durability for
	// a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			crew_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			training INTEGER NOT NULL,
			location TEXT NOT NULL,
			remaining_pu INTEGER NOT NULL,
			minerals INTEGER NOT NULL,
			complete INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (crew_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			crew_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			kind TEXT NOT NULL,
			target TEXT,
			depth TEXT,
			cost INTEGER NOT NULL,
			applied INTEGER NOT NULL,
			noop INTEGER NOT NULL,
			PRIMARY KEY (crew_id, round, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_role ON actions(crew_id, role, round);`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			crew_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			asteroid TEXT NOT NULL,
			depth TEXT NOT NULL,
			intel_combo TEXT NOT NULL,
			probability REAL NOT NULL,
			success INTEGER NOT NULL,
			minerals INTEGER NOT NULL,
			cost_paid INTEGER NOT NULL,
			PRIMARY KEY (crew_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS analytics (
			crew_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			minerals INTEGER NOT NULL,
			pu_captain INTEGER NOT NULL,
			pu_navigator INTEGER NOT NULL,
			pu_driller INTEGER NOT NULL,
			PRIMARY KEY (crew_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS chat (
			crew_id TEXT NOT NULL,
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			round INTEGER NOT NULL,
			from_role TEXT NOT NULL,
			to_role TEXT,
			text TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_crew_round ON chat(crew_id, round);`,
		`CREATE TABLE IF NOT EXISTS system_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			crew_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			kind TEXT NOT NULL,
			role TEXT,
			detail TEXT,
			at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// SetMeta stores a key/value pair (session id, config digest).
func (s *SQLiteIndex) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
		key, value)
	return err
}

// RecordRound implements multicrew.RoundSink.
func (s *SQLiteIndex) RecordRound(msg protocol.RoundResultMsg) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqRound, round: msg}:
	default:
	}
	return nil
}

// RecordChat implements multicrew.ChatSink.
func (s *SQLiteIndex) RecordChat(crewID string, msg protocol.ChatMsg) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqChat, crewID: crewID, chat: msg}:
	default:
	}
	return nil
}

// RecordSystemEvent implements multicrew.AuditSink.
func (s *SQLiteIndex) RecordSystemEvent(ev engine.SystemEvent) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqSystem, system: ev}:
	default:
	}
	return nil
}

// Flush blocks until every record queued before the call has been written.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqFlush, done: done}
	<-done
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		var err error
		switch r.kind {
		case reqRound:
			err = s.writeRound(r.round)
		case reqChat:
			err = s.writeChat(r.crewID, r.chat)
		case reqSystem:
			err = s.writeSystem(r.system)
		case reqFlush:
			close(r.done)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "indexdb: %v\n", err)
		}
	}
}

func (s *SQLiteIndex) writeRound(msg protocol.RoundResultMsg) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO rounds(crew_id, round, training, location, remaining_pu, minerals, complete, raw_json, recorded_at)
		 VALUES(?,?,?,?,?,?,?,?,?);`,
		msg.CrewID, msg.Round, b2i(msg.Training), msg.Location, msg.RemainingPU, msg.Minerals, b2i(msg.Complete), string(raw), now,
	); err != nil {
		return err
	}
	for seq, ra := range msg.Actions {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO actions(crew_id, round, seq, role, kind, target, depth, cost, applied, noop)
			 VALUES(?,?,?,?,?,?,?,?,?,?);`,
			msg.CrewID, msg.Round, seq, ra.Role, ra.Kind, ra.Target, ra.Depth, ra.Cost, b2i(ra.Applied), b2i(ra.NoOp),
		); err != nil {
			return err
		}
	}
	if out := msg.Outcome; out != nil {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO outcomes(crew_id, round, asteroid, depth, intel_combo, probability, success, minerals, cost_paid)
			 VALUES(?,?,?,?,?,?,?,?,?);`,
			msg.CrewID, msg.Round, out.Asteroid, out.Depth, out.IntelCombo, out.Probability, b2i(out.Success), out.Minerals, out.CostPaid,
		); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO analytics(crew_id, round, minerals, pu_captain, pu_navigator, pu_driller)
		 VALUES(?,?,?,?,?,?);`,
		msg.CrewID, msg.Round, msg.Minerals,
		msg.PUSpentByRole[protocol.RoleCaptain],
		msg.PUSpentByRole[protocol.RoleNavigator],
		msg.PUSpentByRole[protocol.RoleDriller],
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) writeChat(crewID string, msg protocol.ChatMsg) error {
	_, err := s.db.Exec(
		`INSERT INTO chat(crew_id, round, from_role, to_role, text, recorded_at) VALUES(?,?,?,?,?,?);`,
		crewID, msg.Round, msg.FromRole, msg.ToRole, msg.Text,
		time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteIndex) writeSystem(ev engine.SystemEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO system_events(crew_id, round, kind, role, detail, at) VALUES(?,?,?,?,?,?);`,
		ev.CrewID, ev.Round, ev.Kind, ev.Role, ev.Detail, ev.At.UTC().Format(time.RFC3339Nano))
	return err
}

// RoundCount reports how many rounds are indexed for a crew.
func (s *SQLiteIndex) RoundCount(crewID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM rounds WHERE crew_id = ?;`, crewID).Scan(&n)
	return n, err
}

// CumulativeMinerals reports the latest indexed mineral total for a crew.
func (s *SQLiteIndex) CumulativeMinerals(crewID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT minerals FROM rounds WHERE crew_id = ? ORDER BY round DESC LIMIT 1;`, crewID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}

// ChatCount reports how many chat lines are indexed for a crew.
func (s *SQLiteIndex) ChatCount(crewID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chat WHERE crew_id = ?;`, crewID).Scan(&n)
	return n, err
}

func b2i(v bool) int {
	if v {
		return 1
	}
	return 0
}
