package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/engine"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// RoundLogger writes one JSONL entry per resolved round (compressed). These
// files are the source of truth for replay and offline analysis.
type RoundLogger struct{ w *JSONLZstdWriter }

func NewRoundLogger(sessionDir string) *RoundLogger {
	return &RoundLogger{w: NewJSONLZstdWriter(filepath.Join(sessionDir, "rounds"), "rounds")}
}

func (l *RoundLogger) RecordRound(msg protocol.RoundResultMsg) error { return l.w.Write(msg) }
func (l *RoundLogger) Close() error                                  { return l.w.Close() }

// ChatEntry is the JSONL form of a briefing chat line, stamped with the crew
// it belongs to.
type ChatEntry struct {
	CrewID string           `json:"crew_id"`
	At     time.Time        `json:"at"`
	Msg    protocol.ChatMsg `json:"msg"`
}

// ChatLogger writes briefing chat JSONL entries (compressed).
type ChatLogger struct{ w *JSONLZstdWriter }

func NewChatLogger(sessionDir string) *ChatLogger {
	return &ChatLogger{w: NewJSONLZstdWriter(filepath.Join(sessionDir, "chat"), "chat")}
}

func (l *ChatLogger) RecordChat(crewID string, msg protocol.ChatMsg) error {
	return l.w.Write(ChatEntry{CrewID: crewID, At: time.Now().UTC(), Msg: msg})
}
func (l *ChatLogger) Close() error { return l.w.Close() }

// AuditLogger writes system event JSONL entries (compressed).
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(sessionDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(sessionDir, "audit"), "audit")}
}

func (l *AuditLogger) RecordSystemEvent(ev engine.SystemEvent) error { return l.w.Write(ev) }
func (l *AuditLogger) Close() error                                  { return l.w.Close() }

// ScanJSONL reads a .jsonl.zst file and invokes fn for every line. Used by
// the replay tool.
func ScanJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}
