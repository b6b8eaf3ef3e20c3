package common

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RequestEntry records one bus request and what came back.
type RequestEntry struct {
	Kind        string    `json:"kind"` // global|ds|dm7|collect
	PGN         uint32    `json:"pgn"`
	Destination int       `json:"destination"`
	RequestHex  string    `json:"requestHex,omitempty"`
	Responses   []string  `json:"responses,omitempty"`
	Error       string    `json:"error,omitempty"`
	Ts          time.Time `json:"ts"`
}

// RequestBytes decodes the request payload.
func (e RequestEntry) RequestBytes() ([]byte, error) {
	if strings.TrimSpace(e.RequestHex) == "" {
		return nil, nil
	}
	return hex.DecodeString(e.RequestHex)
}

// RequestLog provides append-only access to a JSONL audit log.
type RequestLog struct {
	path string
	mu   sync.Mutex
}

// NewRequestLog returns a RequestLog that writes to the provided path.
func NewRequestLog(path string) *RequestLog {
	return &RequestLog{path: path}
}

// Path returns the backing file path for the log.
func (l *RequestLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a new entry to the audit log, one JSON object per line.
func (l *RequestLog) Append(entry RequestEntry) error {
	if l == nil {
		return errors.New("nil request log")
	}
	if entry.Kind == "" {
		return errors.New("request entry missing kind")
	}
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	dir := filepath.Dir(l.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// ReadRequestLog loads every entry from the supplied JSONL file.
func ReadRequestLog(path string) ([]RequestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var entries []RequestEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry RequestEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode request entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
