package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrStoreClosed is returned by stores used after Close.
var ErrStoreClosed = errors.New("dispatch log store closed")

// JSONLStore appends one JSON document per dispatch to a local file. The file
// stays open for appends until Close.
type JSONLStore struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dispatch log: %w", err)
	}
	return &JSONLStore{path: path, f: f}, nil
}

func (s *JSONLStore) Append(_ context.Context, rec LogRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrStoreClosed
	}
	_, err = s.f.Write(append(line, '\n'))
	return err
}

// Query scans the whole file; records come back in append order.
func (s *JSONLStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil, ErrStoreClosed
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scanRecords(ctx, f, q, nil)
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// scanRecords appends the records of r matching q to res. Undecodable lines,
// such as a record cut short by a crash, are skipped.
func scanRecords(ctx context.Context, r io.Reader, q LogQuery, res []LogRecord) ([]LogRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec LogRecord
		if json.Unmarshal(sc.Bytes(), &rec) != nil || !q.Match(rec) {
			continue
		}
		res = append(res, rec)
	}
	return res, sc.Err()
}
