package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index.db)")
	crewID := fs.String("crew", "", "crew id filter")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "summary"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index.db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "summary":
		querySummary(db)
	case "rounds":
		queryRounds(db, *crewID, *limit)
	case "chat":
		queryChat(db, *crewID, *limit)
	case "events":
		queryEvents(db, *crewID, *limit)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want summary|rounds|chat|events)")
		os.Exit(2)
	}
}

// querySummary prints one line per crew: rounds played, latest score, PU
// spent per role.
func querySummary(db *sql.DB) {
	rows, err := db.Query(`
		SELECT a.crew_id,
		       COUNT(*) AS rounds,
		       SUM(a.pu_captain), SUM(a.pu_navigator), SUM(a.pu_driller),
		       (SELECT r.minerals FROM rounds r WHERE r.crew_id = a.crew_id ORDER BY r.round DESC LIMIT 1)
		FROM analytics a
		GROUP BY a.crew_id
		ORDER BY a.crew_id;`)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			crew                 string
			rounds               int
			puCap, puNav, puDril int
			minerals             int
		)
		if err := rows.Scan(&crew, &rounds, &puCap, &puNav, &puDril, &minerals); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("crew=%s rounds=%d minerals=%d pu_captain=%d pu_navigator=%d pu_driller=%d\n",
			crew, rounds, minerals, puCap, puNav, puDril)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func queryRounds(db *sql.DB, crewID string, limit int) {
	rows, err := db.Query(`
		SELECT raw_json FROM rounds
		WHERE (? = '' OR crew_id = ?)
		ORDER BY crew_id, round
		LIMIT ?;`, crewID, crewID, limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		// Round-trip through json to drop nulls and keep output compact.
		var v map[string]any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			fmt.Println(raw)
			continue
		}
		b, _ := json.Marshal(v)
		fmt.Println(string(b))
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func queryChat(db *sql.DB, crewID string, limit int) {
	rows, err := db.Query(`
		SELECT crew_id, round, from_role, COALESCE(to_role,''), text, recorded_at FROM chat
		WHERE (? = '' OR crew_id = ?)
		ORDER BY seq
		LIMIT ?;`, crewID, crewID, limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			crew, from, to, text, at string
			round                    int
		)
		if err := rows.Scan(&crew, &round, &from, &to, &text, &at); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		if to == "" {
			to = "*"
		}
		fmt.Printf("%s crew=%s round=%d %s->%s: %s\n", at, crew, round, from, to, text)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func queryEvents(db *sql.DB, crewID string, limit int) {
	rows, err := db.Query(`
		SELECT crew_id, round, kind, COALESCE(role,''), COALESCE(detail,''), at FROM system_events
		WHERE (? = '' OR crew_id = ?)
		ORDER BY seq
		LIMIT ?;`, crewID, crewID, limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			crew, kind, role, detail, at string
			round                        int
		)
		if err := rows.Scan(&crew, &round, &kind, &role, &detail, &at); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("%s crew=%s round=%d kind=%s role=%s %s\n", at, crew, round, kind, role, detail)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}
