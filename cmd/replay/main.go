// Command replay verifies recorded round logs against the deterministic
// resolver. Given the session config that produced a crew's log, it replays
// every mining outcome through a freshly seeded resolver and checks that
// probabilities, successes and the cumulative score line up.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/engine"
	persistlog "github.com/Justin2280/AI-Coordination-Wireframe/internal/persistence/log"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

func main() {
	var (
		roundsDir   = flag.String("rounds", "", "dir containing rounds-*.jsonl.zst")
		sessionPath = flag.String("session", "", "session config yaml for the crew being verified")
		crewID      = flag.String("crew", "", "crew id to verify")
	)
	flag.Parse()

	if *roundsDir == "" || *sessionPath == "" || *crewID == "" {
		fmt.Fprintln(os.Stderr, "missing -rounds, -session or -crew")
		os.Exit(2)
	}

	cfg, err := engine.Load(*sessionPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load session config:", err)
		os.Exit(1)
	}

	files, err := listRoundFiles(*roundsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list rounds:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no round files found in", *roundsDir)
		os.Exit(1)
	}

	var rounds []protocol.RoundResultMsg
	for _, path := range files {
		err := persistlog.ScanJSONL(path, func(line []byte) error {
			var msg protocol.RoundResultMsg
			if err := json.Unmarshal(line, &msg); err != nil {
				return err
			}
			if msg.CrewID == *crewID {
				rounds = append(rounds, msg)
			}
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
	}
	if len(rounds) == 0 {
		fmt.Fprintln(os.Stderr, "no rounds recorded for crew", *crewID)
		os.Exit(1)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].Round < rounds[j].Round })

	resolver := engine.NewResolver(cfg)
	var mines, minerals int
	for _, rr := range rounds {
		out := rr.Outcome
		if out == nil {
			continue
		}
		mines++

		wantP, wantSuccess := resolver.Resolve(out.Depth, out.IntelCombo)
		if out.Probability != wantP {
			fail(rr.Round, fmt.Sprintf("probability %.2f, resolver says %.2f (depth=%s combo=%s)",
				out.Probability, wantP, out.Depth, out.IntelCombo))
		}
		if out.Success != wantSuccess {
			fail(rr.Round, fmt.Sprintf("success=%v, resolver draw says %v", out.Success, wantSuccess))
		}
		if !out.Success && out.Minerals != 0 {
			fail(rr.Round, fmt.Sprintf("failed mine yielded %d minerals", out.Minerals))
		}
		if !rr.Training && out.Success {
			minerals += out.Minerals
		}
	}

	last := rounds[len(rounds)-1]
	if last.Minerals != minerals {
		fail(last.Round, fmt.Sprintf("cumulative minerals %d, recomputed %d", last.Minerals, minerals))
	}

	fmt.Printf("replay ok: crew=%s rounds=%d mines=%d draws=%d minerals=%d\n",
		*crewID, len(rounds), mines, resolver.Draws(), minerals)
}

func fail(round int, msg string) {
	fmt.Fprintf(os.Stderr, "round %d: %s\n", round, msg)
	os.Exit(1)
}

func listRoundFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "rounds-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}
