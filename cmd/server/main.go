package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/engine"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/multicrew"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/persistence/indexdb"
	persistlog "github.com/Justin2280/AI-Coordination-Wireframe/internal/persistence/log"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/transport/observer"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/transport/ws"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "http listen address")
		crewsPath = flag.String("crews", "./configs/crews.yaml", "crew manifest path")
		dataDir   = flag.String("data", "./data", "runtime data directory")
		disableDB = flag.Bool("disable_db", false, "disable the sqlite read-model index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := multicrew.Load(*crewsPath)
	if err != nil {
		logger.Fatalf("load crews: %v", err)
	}

	sessionDir := filepath.Join(*dataDir, "sessions")
	_ = os.MkdirAll(sessionDir, 0o755)

	roundLog := persistlog.NewRoundLogger(sessionDir)
	chatLog := persistlog.NewChatLogger(sessionDir)
	auditLog := persistlog.NewAuditLogger(sessionDir)
	defer roundLog.Close()
	defer chatLog.Close()
	defer auditLog.Close()

	// Optional read-model index. The JSONL logs stay authoritative either way.
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
	}

	sinks := multicrew.Sinks{
		Rounds: teeRounds{a: roundLog, b: idx},
		Chat:   teeChat{a: chatLog, b: idx},
		Audit:  teeAudit{a: auditLog, b: idx},
	}

	mgr, err := multicrew.NewManager(cfg, sinks, logger)
	if err != nil {
		logger.Fatalf("manager: %v", err)
	}
	if idx != nil {
		if err := idx.SetMeta("session_id", mgr.SessionID()); err != nil {
			logger.Printf("index: set meta: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	mgr.Start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, mgr)
	})

	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()

		views := make(map[string]protocol.StateMsg)
		for _, id := range mgr.CrewIDs() {
			if v, err := mgr.View(ctx2, id, engine.RoleCaptain); err == nil {
				views[id] = v
			}
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(struct {
			SessionID string                       `json:"session_id"`
			Crews     map[string]protocol.StateMsg `json:"crews"`
		}{SessionID: mgr.SessionID(), Crews: views})
	})
	mux.HandleFunc("/admin/v1/abort", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		crewID := strings.TrimSpace(r.URL.Query().Get("crew"))
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		err := mgr.Abort(ctx2, crewID)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "crew": crewID})
	})

	obsSrv := observer.NewServer(mgr, logger)
	mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())

	mux.HandleFunc("/v1/ws", ws.NewServer(mgr, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("session=%s crews=%d listening on %s", mgr.SessionID(), len(mgr.CrewIDs()), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func writeMetrics(rw http.ResponseWriter, mgr *multicrew.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ids := mgr.CrewIDs()

	fmt.Fprintf(rw, "# HELP spaceship_crews Configured crew count.\n")
	fmt.Fprintf(rw, "# TYPE spaceship_crews gauge\n")
	fmt.Fprintf(rw, "spaceship_crews %d\n", len(ids))

	fmt.Fprintf(rw, "# HELP spaceship_crew_round Current round number per crew.\n")
	fmt.Fprintf(rw, "# TYPE spaceship_crew_round gauge\n")
	for _, id := range ids {
		v, err := mgr.View(ctx, id, engine.RoleCaptain)
		if err != nil {
			continue
		}
		fmt.Fprintf(rw, "spaceship_crew_round{crew=%q} %d\n", id, v.Round)
	}

	fmt.Fprintf(rw, "# HELP spaceship_crew_minerals Cumulative scored minerals per crew.\n")
	fmt.Fprintf(rw, "# TYPE spaceship_crew_minerals gauge\n")
	for _, id := range ids {
		v, err := mgr.View(ctx, id, engine.RoleCaptain)
		if err != nil {
			continue
		}
		fmt.Fprintf(rw, "spaceship_crew_minerals{crew=%q} %d\n", id, v.Minerals)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type teeRounds struct {
	a multicrew.RoundSink
	b *indexdb.SQLiteIndex
}

func (t teeRounds) RecordRound(msg protocol.RoundResultMsg) error {
	if t.a != nil {
		_ = t.a.RecordRound(msg)
	}
	if t.b != nil {
		_ = t.b.RecordRound(msg)
	}
	return nil
}

type teeChat struct {
	a multicrew.ChatSink
	b *indexdb.SQLiteIndex
}

func (t teeChat) RecordChat(crewID string, msg protocol.ChatMsg) error {
	if t.a != nil {
		_ = t.a.RecordChat(crewID, msg)
	}
	if t.b != nil {
		_ = t.b.RecordChat(crewID, msg)
	}
	return nil
}

type teeAudit struct {
	a multicrew.AuditSink
	b *indexdb.SQLiteIndex
}

func (t teeAudit) RecordSystemEvent(ev engine.SystemEvent) error {
	if t.a != nil {
		_ = t.a.RecordSystemEvent(ev)
	}
	if t.b != nil {
		_ = t.b.RecordSystemEvent(ev)
	}
	return nil
}
