package winvault

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Shared test types and constructors used across test files.

// mustRegister calls t.Fatal if registration fails.
func mustRegister(t *testing.T, c Container, constructor interface{}, opts ...Option) {
	t.Helper()
	if err := c.Register(constructor, opts...); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

// mustSupply calls t.Fatal if supplying a value fails.
func mustSupply(t *testing.T, c Container, value interface{}, opts ...Option) {
	t.Helper()
	if err := c.Supply(value, opts...); err != nil {
		t.Fatalf("Supply: %v", err)
	}
}

// mustBuild calls t.Fatal if build fails.
func mustBuild(t *testing.T, c Container) {
	t.Helper()
	if err := c.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

type testLog struct{ Component string }
type testPaths struct{ Root string }

// testSettingsFile, testPrefs and testThemeService form a three-level chain
// rooted at testPaths and testLog.
type testSettingsFile struct {
	Paths *testPaths
	Log   *testLog
}

type testPrefs struct {
	File *testSettingsFile
	Log  *testLog
}

type testNamed interface {
	Name() string
}

type testThemeService struct {
	Prefs *testPrefs
	Log   *testLog
}

func (s *testThemeService) Name() string { return "theme" }

type testCatalogService struct{ Log *testLog }

func (s *testCatalogService) Name() string { return "catalog" }

type testCircA struct{ B *testCircB }
type testCircB struct{ C *testCircC }
type testCircC struct{ A *testCircA }

func newTestLog() *testLog                 { return &testLog{Component: "app"} }
func newTestPaths() *testPaths             { return &testPaths{Root: "/var/lib/winvault"} }
func newTestCircA(b *testCircB) *testCircA { return &testCircA{B: b} }
func newTestCircB(c *testCircC) *testCircB { return &testCircB{C: c} }
func newTestCircC(a *testCircA) *testCircC { return &testCircC{A: a} }

func newTestSettingsFile(p *testPaths, log *testLog) *testSettingsFile {
	return &testSettingsFile{Paths: p, Log: log}
}

func newTestPrefs(f *testSettingsFile, log *testLog) *testPrefs {
	return &testPrefs{File: f, Log: log}
}

func newTestThemeService(prefs *testPrefs, log *testLog) *testThemeService {
	return &testThemeService{Prefs: prefs, Log: log}
}

func newTestCatalogService(log *testLog) *testCatalogService {
	return &testCatalogService{Log: log}
}

// testClosable is a singleton that implements io.Closer for shutdown tests.
type testClosable struct {
	Name   string
	Closed bool
	Order  *[]string // shared slice to record close order
}

func (c *testClosable) Close() error {
	c.Closed = true
	if c.Order != nil {
		*c.Order = append(*c.Order, c.Name)
	}
	return nil
}

// testClosable2 is a second closable type.
type testClosable2 struct{ testClosable }

// testFailCloser implements io.Closer but returns an error.
type testFailCloser struct{}

func (f *testFailCloser) Close() error {
	return errors.New("close failed")
}

// ---------------------------------------------------------------------------
// Lifecycle fixtures
// ---------------------------------------------------------------------------

// journal records lifecycle calls from several services in order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// recordingService appends "init:<name>" and "stop:<name>" to a journal.
type recordingService struct {
	*Base
	j        *journal
	initErr  error
	stopErr  error
	initHook func(ctx context.Context) error
	inits    int
}

func newRecording(name string, j *journal) *recordingService {
	return &recordingService{Base: NewBase(name), j: j}
}

func (s *recordingService) Initialize(ctx context.Context) error {
	return s.Start(ctx, func(ctx context.Context) error {
		s.inits++
		s.j.add("init:" + s.Name())
		if s.initHook != nil {
			if err := s.initHook(ctx); err != nil {
				return err
			}
		}
		return s.initErr
	})
}

func (s *recordingService) Shutdown(ctx context.Context) error {
	return s.Stop(ctx, func(context.Context) error {
		s.j.add("stop:" + s.Name())
		return s.stopErr
	})
}

// Services A <- B <- C, expressed through constructor parameters.
type svcA struct{ *recordingService }
type svcB struct {
	*recordingService
	A *svcA
}
type svcC struct {
	*recordingService
	B *svcB
}

func chainModule(j *journal) Module {
	return NewModule("chain", func(c Container) error {
		if err := c.Register(func(b *svcB) *svcC {
			return &svcC{recordingService: newRecording("C", j), B: b}
		}, WithAutoInitialize()); err != nil {
			return err
		}
		if err := c.Register(func(a *svcA) *svcB {
			return &svcB{recordingService: newRecording("B", j), A: a}
		}, WithAutoInitialize()); err != nil {
			return err
		}
		return c.Register(func() *svcA {
			return &svcA{recordingService: newRecording("A", j)}
		}, WithAutoInitialize())
	})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
