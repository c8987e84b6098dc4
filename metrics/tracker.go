package metrics

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"diffmerge/logger"
	"diffmerge/types"
)

const (
	EventShown    = "change_shown"
	EventAccepted = "change_accepted"
	EventDisposed = "change_disposed"
)

// FileName is the JSON-lines file OpenTracker appends to
const FileName = "metrics.jsonl"

type Record struct {
	EventType     string    `json:"event_type"`
	ChangeID      string    `json:"change_id"`
	IsReplacement bool      `json:"is_replacement"`
	Additions     int       `json:"additions"`
	Deletions     int       `json:"deletions"`
	Mode          string    `json:"mode,omitempty"`
	Auto          bool      `json:"auto,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Lifespan      *int64    `json:"lifespan_ms,omitempty"`
	SessionID     string    `json:"session_id"`
	Time          time.Time `json:"time"`
}

// Stats are the counters for one tracker
type Stats struct {
	Shown       int            `json:"shown"`
	Accepted    int            `json:"accepted"`
	Appended    int            `json:"appended"`
	AutoApplied int            `json:"auto_applied"`
	Disposed    map[string]int `json:"disposed"`
}

// MetricsTracker records the lifecycle of pending changes. It implements
// engine.Tracker.
type MetricsTracker struct {
	mu        sync.Mutex
	out       io.Writer
	sessionID string
	now       func() time.Time
	shownAt   map[uint64]time.Time
	stats     Stats
}

// NewTracker writes one JSON record per event to out; out may be nil.
func NewTracker(out io.Writer, sessionID string) *MetricsTracker {
	if sessionID == "" {
		sessionID = GenerateUUID()
	}
	return &MetricsTracker{
		out:       out,
		sessionID: sessionID,
		now:       time.Now,
		shownAt:   make(map[uint64]time.Time),
		stats:     Stats{Disposed: make(map[string]int)},
	}
}

// OpenTracker appends records to FileName in dataDir. The returned file is
// owned by the caller.
func OpenTracker(dataDir string) (*MetricsTracker, *os.File, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	f, err := os.OpenFile(filepath.Join(dataDir, FileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return NewTracker(f, ""), f, nil
}

func (t *MetricsTracker) TrackShown(pc *types.PendingChange) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.shownAt[pc.ID] = t.now()
	t.stats.Shown++
	t.write(t.record(EventShown, pc))
}

func (t *MetricsTracker) TrackAccepted(pc *types.PendingChange, mode types.ApplyMode, auto bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Accepted++
	if mode == types.ApplyAppend {
		t.stats.Appended++
	}
	if auto {
		t.stats.AutoApplied++
	}
	r := t.record(EventAccepted, pc)
	r.Mode = mode.String()
	r.Auto = auto
	r.Lifespan = t.lifespan(pc.ID)
	t.write(r)
}

func (t *MetricsTracker) TrackDisposed(pc *types.PendingChange, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Disposed[reason]++
	r := t.record(EventDisposed, pc)
	r.Reason = reason
	r.Lifespan = t.lifespan(pc.ID)
	t.write(r)
}

// Stats returns a snapshot of the counters
func (t *MetricsTracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	s.Disposed = make(map[string]int, len(t.stats.Disposed))
	for k, v := range t.stats.Disposed {
		s.Disposed[k] = v
	}
	return s
}

func (t *MetricsTracker) record(event string, pc *types.PendingChange) *Record {
	additions, deletions := pc.Stats()
	return &Record{
		EventType:     event,
		ChangeID:      fmt.Sprintf("%016x", pc.ID),
		IsReplacement: pc.IsReplacement,
		Additions:     additions,
		Deletions:     deletions,
		SessionID:     t.sessionID,
		Time:          t.now().UTC(),
	}
}

// lifespan is the time since the change was shown; the entry is dropped
// because every change is resolved once.
func (t *MetricsTracker) lifespan(id uint64) *int64 {
	shown, ok := t.shownAt[id]
	if !ok {
		return nil
	}
	delete(t.shownAt, id)
	ms := t.now().Sub(shown).Milliseconds()
	return &ms
}

func (t *MetricsTracker) write(r *Record) {
	logger.Debug("metrics: %s (id=%s reason=%s)", r.EventType, r.ChangeID, r.Reason)
	if t.out == nil {
		return
	}
	body, err := json.Marshal(r)
	if err != nil {
		logger.Debug("metrics: marshal error: %v", err)
		return
	}
	if _, err := t.out.Write(append(body, '\n')); err != nil {
		logger.Warn("metrics: write error: %v", err)
	}
}

func GenerateUUID() string {
	var uuid [16]byte
	if _, err := rand.Read(uuid[:]); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	uuid[6] = (uuid[6] & 0x0f) | 0x40 // version 4
	uuid[8] = (uuid[8] & 0x3f) | 0x80 // variant 2
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		uuid[0:4], uuid[4:6], uuid[6:8], uuid[8:10], uuid[10:16])
}
