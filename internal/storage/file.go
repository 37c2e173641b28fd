package storage

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"statuswatch/internal/transport"
	"statuswatch/pkg/logx"
)

// fileStore keeps the channel map in memory and persists it as a JSON
// snapshot rewritten atomically on every change.
//
// Files:
//   - <prefix>.channels.json (snapshot)
//   - <prefix>.audit.jsonl   (append-only JSON Lines)
type fileStore struct {
	log logx.Logger

	mu        sync.Mutex
	snapPath  string
	auditFile *os.File
	channels  map[int64]transport.ChatTarget
}

type channelRecord struct {
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:      log,
		snapPath: prefix + ".channels.json",
		channels: map[int64]transport.ChatTarget{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.auditFile = af
	return s, nil
}

func (s *fileStore) load() error {
	b, err := os.ReadFile(s.snapPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var m map[string]channelRecord
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	for k, v := range m {
		tenant, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			s.log.Warn("skipping bad tenant key", logx.String("key", k))
			continue
		}
		s.channels[tenant] = transport.ChatTarget{ChatID: v.ChatID, ThreadID: v.ThreadID}
	}
	return nil
}

// saveLocked writes the snapshot via a temp file + rename.
func (s *fileStore) saveLocked() error {
	m := make(map[string]channelRecord, len(s.channels))
	for k, v := range s.channels {
		m[strconv.FormatInt(k, 10)] = channelRecord{ChatID: v.ChatID, ThreadID: v.ThreadID}
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.snapPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.snapPath)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}

func (s *fileStore) SetChannel(_ context.Context, tenant int64, ch transport.ChatTarget) (transport.ChatTarget, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return transport.ChatTarget{}, false, ErrClosed
	}
	prev, had := s.channels[tenant]
	s.channels[tenant] = ch
	if err := s.saveLocked(); err != nil {
		if had {
			s.channels[tenant] = prev
		} else {
			delete(s.channels, tenant)
		}
		return transport.ChatTarget{}, false, err
	}
	return prev, had, nil
}

func (s *fileStore) RemoveChannel(_ context.Context, tenant int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return false, ErrClosed
	}
	prev, had := s.channels[tenant]
	if !had {
		return false, nil
	}
	delete(s.channels, tenant)
	if err := s.saveLocked(); err != nil {
		s.channels[tenant] = prev
		return false, err
	}
	return true, nil
}

func (s *fileStore) Channel(_ context.Context, tenant int64) (transport.ChatTarget, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[tenant]
	return ch, ok, nil
}

func (s *fileStore) Channels(context.Context) (map[int64]transport.ChatTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.channels), nil
}

func (s *fileStore) AppendAudit(_ context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}
