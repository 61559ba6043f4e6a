package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	logx "pacebot/pkg/logx"
)

// fileStore keeps each record in its own JSON file.
//
// Files:
//   - <prefix>.sudo.json   (array of user ids)
//   - <prefix>.state.json  ({"known_chats": [...], "delay_settings": {"<id>": seconds}})
//   - <prefix>.audit.jsonl (append-only JSON Lines)
//
// Records are replaced atomically (write temp file, rename).
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	sudoPath  string
	statePath string
	auditFile *os.File
}

// fileChatState is the on-disk shape; JSON object keys must be strings.
type fileChatState struct {
	Known  []int64            `json:"known_chats"`
	Delays map[string]float64 `json:"delay_settings"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:       log,
		sudoPath:  prefix + ".sudo.json",
		statePath: prefix + ".state.json",
		auditFile: af,
	}, nil
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

func (s *fileStore) LoadSudo(ctx context.Context) ([]int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	ok, err := readJSON(s.sudoPath, &ids)
	if err != nil || !ok {
		return nil, err
	}
	return ids, nil
}

func (s *fileStore) SaveSudo(ctx context.Context, ids []int64) error {
	_ = ctx
	ids = sortedIDs(ids)
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.sudoPath, ids)
}

func (s *fileStore) LoadChats(ctx context.Context) (ChatState, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw fileChatState
	ok, err := readJSON(s.statePath, &raw)
	if err != nil || !ok {
		return ChatState{}, err
	}
	st := ChatState{Known: raw.Known, Delays: make(map[int64]float64, len(raw.Delays))}
	for k, v := range raw.Delays {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			s.log.Warn("skipping bad delay key", logx.String("key", k))
			continue
		}
		st.Delays[id] = v
	}
	return st, nil
}

func (s *fileStore) SaveChats(ctx context.Context, st ChatState) error {
	_ = ctx
	raw := fileChatState{
		Known:  sortedIDs(st.Known),
		Delays: make(map[string]float64, len(st.Delays)),
	}
	for k, v := range st.Delays {
		raw.Delays[strconv.FormatInt(k, 10)] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.statePath, raw)
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

// readJSON decodes path into v. It reports false when the file does not exist.
func readJSON(path string, v any) (bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, filepath.Base(path), err)
	}
	return true, nil
}

func writeJSONAtomic(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func sortedIDs(ids []int64) []int64 {
	out := append([]int64{}, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
