// Package diagnostics implements the Retained Diagnostics component (spec.md
// §4.6): best-effort JSON/text snapshot files for the bridge's retained
// state, plus three capped append-only logs. Every write here is advisory — a
// failure is logged and otherwise ignored, per spec.md §7 — since
// diagnostics must never be able to take the bridge down. Grounded on the
// shape of the teacher's internal/store/repo.go, repurposed from SQL rows to
// flat files since durable state persistence is explicitly out of scope (see
// DESIGN.md). All writes are gated behind debug logging, per spec.md §4.6
// ("When log level is DEBUG").
package diagnostics

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"zigbee-bridge/internal/model"
)

const maxLogEntries = 10000

// Store writes retained-state snapshots and the three capped append logs
// under Dir, gated on Debug. A nil *Store (returned by New when Dir is
// empty) makes every method a safe no-op, so diagnostics can be disabled
// entirely.
type Store struct {
	dir   string
	debug bool

	mu        sync.Mutex
	events    []logEntry
	payloads  []logEntry
	publishes []logEntry
}

type logEntry struct {
	At      time.Time       `json:"at"`
	Topic   string          `json:"topic,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// New builds a Store rooted at dir, creating it if necessary. Returns nil if
// dir is empty (diagnostics disabled) or the directory cannot be created.
// debug gates every write per spec.md §4.6; when false the Store still
// exists, but every Save*/Append* method is a no-op, so it records and
// persists nothing (RecentEvents only returns events loaded from an existing
// event log file).
func New(dir string, debug bool) *Store {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("diagnostics directory unavailable, disabling diagnostics", "dir", dir, "error", err)
		return nil
	}
	s := &Store{dir: dir, debug: debug}
	s.loadEventLog()
	return s
}

func (s *Store) writeJSON(filename string, v any) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		slog.Warn("diagnostics marshal failed", "file", filename, "error", err)
		return
	}
	s.writeFile(filename, body)
}

func (s *Store) writeFile(filename string, body []byte) {
	path := filepath.Join(s.dir, filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		slog.Warn("diagnostics write failed", "file", filename, "error", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		slog.Warn("diagnostics rename failed", "file", filename, "error", err)
	}
}

// SaveBridgeInfo persists the latest bridge/info snapshot.
func (s *Store) SaveBridgeInfo(info model.BridgeInfo) {
	if s == nil || !s.debug {
		return
	}
	s.writeJSON("bridge-info.json", info)
}

// SaveDevices persists the latest bridge/devices snapshot.
func (s *Store) SaveDevices(devices []model.BridgeDevice) {
	if s == nil || !s.debug {
		return
	}
	s.writeJSON("bridge-devices.json", devices)
}

// SaveGroups persists the latest bridge/groups snapshot.
func (s *Store) SaveGroups(groups []model.BridgeGroup) {
	if s == nil || !s.debug {
		return
	}
	s.writeJSON("bridge-groups.json", groups)
}

// networkMapResponse is the bridge/response/networkmap payload shape: a
// "type" selecting the rendering, and a "value" holding either raw text
// (graphviz/plantuml) or a topology object (raw).
type networkMapResponse struct {
	Data struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"data"`
}

// SaveNetworkMap persists a bridge/response/networkmap payload, splitting
// by rendering type per spec.md §6's three networkmap artifacts.
func (s *Store) SaveNetworkMap(raw json.RawMessage) {
	if s == nil || !s.debug {
		return
	}
	var resp networkMapResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		slog.Warn("diagnostics: failed to decode networkmap response", "error", err)
		return
	}
	switch resp.Data.Type {
	case "graphviz":
		s.writeFile("networkmap_graphviz.txt", rawText(resp.Data.Value))
	case "plantuml":
		s.writeFile("networkmap_plantuml.txt", rawText(resp.Data.Value))
	default:
		s.writeJSON("networkmap_raw.json", resp.Data.Value)
	}
}

// rawText unwraps a JSON string value to its plain bytes; falls back to the
// raw encoded bytes if the value wasn't a JSON string.
func rawText(v json.RawMessage) []byte {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return []byte(s)
	}
	return v
}

const eventLogFilename = "bridge-events.json"

func (s *Store) loadEventLog() {
	path := filepath.Join(s.dir, eventLogFilename)
	body, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var entries []logEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		slog.Warn("diagnostics event log corrupt, starting fresh", "error", err)
		return
	}
	s.events = entries
}

// AppendEvent appends one bridge/event entry to the capped log, dropping
// the oldest entries once the cap is exceeded. This log is auxiliary (not
// part of spec.md §6's persisted state layout) and feeds RecentEvents; it
// is still gated behind debug, consistent with the rest of this component.
func (s *Store) AppendEvent(kind string, payload []byte) {
	if s == nil || !s.debug {
		return
	}
	s.mu.Lock()
	s.events = appendCapped(s.events, logEntry{At: time.Now().UTC(), Kind: kind, Payload: json.RawMessage(payload)})
	snapshot := append([]logEntry(nil), s.events...)
	s.mu.Unlock()

	s.writeJSON(eventLogFilename, snapshot)
}

// AppendPayload appends one unrecognized-topic payload to bridge-payloads.txt,
// one JSON object per line, capped at 10,000 entries, per spec.md §4.6.
func (s *Store) AppendPayload(topic string, payload []byte) {
	if s == nil || !s.debug {
		return
	}
	s.mu.Lock()
	s.payloads = appendCapped(s.payloads, logEntry{At: time.Now().UTC(), Topic: topic, Payload: json.RawMessage(payload)})
	snapshot := append([]logEntry(nil), s.payloads...)
	s.mu.Unlock()

	s.writeJSONL("bridge-payloads.txt", snapshot)
}

// AppendPublish mirrors one outbound publish to bridge-publish-payloads.txt,
// under the same cap as AppendPayload.
func (s *Store) AppendPublish(topic string, payload []byte) {
	if s == nil || !s.debug {
		return
	}
	s.mu.Lock()
	s.publishes = appendCapped(s.publishes, logEntry{At: time.Now().UTC(), Topic: topic, Payload: json.RawMessage(payload)})
	snapshot := append([]logEntry(nil), s.publishes...)
	s.mu.Unlock()

	s.writeJSONL("bridge-publish-payloads.txt", snapshot)
}

func appendCapped(entries []logEntry, e logEntry) []logEntry {
	entries = append(entries, e)
	if len(entries) > maxLogEntries {
		entries = entries[len(entries)-maxLogEntries:]
	}
	return entries
}

func (s *Store) writeJSONL(filename string, entries []logEntry) {
	var buf bytes.Buffer
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			continue
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	s.writeFile(filename, buf.Bytes())
}

// RecentEvents returns up to n most recent logged events, most recent last.
func (s *Store) RecentEvents(n int) []logEntry {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	return append([]logEntry(nil), s.events[len(s.events)-n:]...)
}
