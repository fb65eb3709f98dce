// Package settings is a persistent key/value store backed by a single JSON
// file. Values keep their JSON shape on disk and are coerced to the caller's
// type on read.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// ErrEmptyKey is returned when a key is blank.
var ErrEmptyKey = errors.New("settings: empty key")

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the logger used for load and save problems.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l.Named("settings")
		}
	}
}

// Store holds settings in memory and rewrites the whole file on every
// change. It is safe for concurrent use.
type Store struct {
	path string

	mu      sync.RWMutex
	log     *zap.Logger
	values  map[string]any
	written []byte

	lmu       sync.Mutex
	listeners map[int]func(key string)
	nextID    int
}

// Open loads the file at path. A missing file yields an empty store; a
// malformed one is logged and also treated as empty.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("settings: empty path")
	}
	s := &Store{
		path:      filepath.Clean(path),
		log:       zap.NewNop(),
		values:    make(map[string]any),
		listeners: make(map[int]func(string)),
	}
	for _, opt := range opts {
		opt(s)
	}

	values, _, err := s.read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.log.Debug("settings file not found, starting empty", zap.String("path", s.path))
	case err != nil:
		var syntax *json.SyntaxError
		var typ *json.UnmarshalTypeError
		if !errors.As(err, &syntax) && !errors.As(err, &typ) {
			return nil, fmt.Errorf("settings: reading %s: %w", s.path, err)
		}
		s.log.Warn("settings file is malformed, starting empty", zap.String("path", s.path), zap.Error(err))
	default:
		s.values = values
	}
	return s, nil
}

// SetLogger replaces the logger after the store has been opened.
func (s *Store) SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	s.mu.Lock()
	s.log = l.Named("settings")
	s.mu.Unlock()
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) read() (map[string]any, []byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil, err
	}
	values := make(map[string]any)
	if len(bytes.TrimSpace(data)) == 0 {
		return values, data, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, data, err
	}
	return values, data, nil
}

// saveLocked must be called with s.mu held.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encoding: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("settings: creating directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("settings: writing %s: %w", s.path, err)
	}
	s.written = data
	return nil
}

// Get returns the value for key coerced to T, or def when the key is missing
// or cannot be converted. Scalars are converted loosely, so "5" reads as 5
// and 5 reads as "5". Objects and arrays are decoded through JSON.
func Get[T any](s *Store, key string, def T) T {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	if !ok || v == nil {
		return def
	}
	if out, ok := v.(T); ok {
		return out
	}
	if out, ok := coerce[T](v); ok {
		return out
	}
	return def
}

func coerce[T any](v any) (T, bool) {
	var zero T
	var (
		out any
		err error
	)
	switch any(zero).(type) {
	case string:
		out, err = cast.ToStringE(v)
	case bool:
		out, err = cast.ToBoolE(v)
	case int:
		out, err = cast.ToIntE(v)
	case int32:
		out, err = cast.ToInt32E(v)
	case int64:
		out, err = cast.ToInt64E(v)
	case uint:
		out, err = cast.ToUintE(v)
	case float32:
		out, err = cast.ToFloat32E(v)
	case float64:
		out, err = cast.ToFloat64E(v)
	case time.Duration:
		out, err = cast.ToDurationE(v)
	case []string:
		out, err = cast.ToStringSliceE(v)
	default:
		data, merr := json.Marshal(v)
		if merr != nil {
			return zero, false
		}
		var decoded T
		if err := json.Unmarshal(data, &decoded); err != nil {
			return zero, false
		}
		return decoded, true
	}
	if err != nil {
		return zero, false
	}
	typed, ok := out.(T)
	return typed, ok
}

// String returns the value for key as a string.
func (s *Store) String(key, def string) string { return Get(s, key, def) }

// Bool returns the value for key as a bool.
func (s *Store) Bool(key string, def bool) bool { return Get(s, key, def) }

// Int returns the value for key as an int.
func (s *Store) Int(key string, def int) int { return Get(s, key, def) }

// Set stores value under key and rewrites the file. The value must be
// encodable as JSON. When the write fails the in-memory value is kept and
// the error returned.
func (s *Store) Set(key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}
	if _, err := json.Marshal(value); err != nil {
		return fmt.Errorf("settings: value for %q: %w", key, err)
	}

	s.mu.Lock()
	s.values[key] = value
	err := s.saveLocked()
	s.mu.Unlock()

	s.notify(key)
	return err
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	if _, ok := s.values[key]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.values, key)
	err := s.saveLocked()
	s.mu.Unlock()

	s.notify(key)
	return err
}

// Has reports whether key is set.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// All returns a copy of every stored value.
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Reset clears every value and persists the empty store.
func (s *Store) Reset() error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	s.values = make(map[string]any)
	err := s.saveLocked()
	s.mu.Unlock()

	sort.Strings(keys)
	for _, k := range keys {
		s.notify(k)
	}
	return err
}

// Flush writes the current values to disk.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Reload re-reads the file and notifies subscribers of every key whose
// value changed. A malformed file leaves the store untouched, as does
// content this store wrote itself.
func (s *Store) Reload() error {
	s.mu.Lock()
	values, data, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		values, err = make(map[string]any), nil
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("settings: reloading %s: %w", s.path, err)
	}
	if data != nil && bytes.Equal(data, s.written) {
		s.mu.Unlock()
		return nil
	}
	changed := diff(s.values, values)
	s.values = values
	s.mu.Unlock()

	for _, k := range changed {
		s.notify(k)
	}
	return nil
}

func diff(old, cur map[string]any) []string {
	var changed []string
	for k, v := range cur {
		if prev, ok := old[k]; !ok || !sameJSON(prev, v) {
			changed = append(changed, k)
		}
	}
	for k := range old {
		if _, ok := cur[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

// Subscribe registers fn to be called with the key after every change. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn func(key string)) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) notify(key string) {
	s.lmu.Lock()
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}
