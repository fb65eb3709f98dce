// Package diagnostics records what the process saw at startup and turns
// panics into crash entries instead of silent exits.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/host"
)

// FileName is the diagnostics log written next to the data directory.
const FileName = "startup_diagnostics.log"

const stampLayout = "2006-01-02 15:04:05.000"

// ErrPanic wraps a recovered panic returned by [Guard].
var ErrPanic = errors.New("diagnostics: recovered panic")

// KeyEnv lists the environment variables captured in a report.
var KeyEnv = []string{"PATH", "TEMP", "TMP", "HOME", "USERPROFILE", "APPDATA", "LOCALAPPDATA"}

type FileCheck struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Size   int64  `json:"size,omitempty"`
}

type Memory struct {
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

type Build struct {
	Path     string `json:"path"`
	Version  string `json:"version"`
	Revision string `json:"revision,omitempty"`
	Modified bool   `json:"modified,omitempty"`
}

// Report is a snapshot of the process environment.
type Report struct {
	Time       time.Time         `json:"time"`
	OS         string            `json:"os"`
	Arch       string            `json:"arch"`
	Platform   string            `json:"platform,omitempty"`
	GoVersion  string            `json:"go_version"`
	NumCPU     int               `json:"num_cpu"`
	PageSize   int               `json:"page_size"`
	Hostname   string            `json:"hostname"`
	User       string            `json:"user"`
	WorkingDir string            `json:"working_dir"`
	Executable string            `json:"executable"`
	Env        map[string]string `json:"env"`
	Memory     Memory            `json:"memory"`
	Build      Build             `json:"build"`
	Files      []FileCheck       `json:"files,omitempty"`
}

// Collect gathers a report. Every path in check is tested for existence.
func Collect(ctx context.Context, check ...string) Report {
	r := Report{
		Time:      time.Now(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
		NumCPU:    runtime.NumCPU(),
		PageSize:  os.Getpagesize(),
		Env:       make(map[string]string, len(KeyEnv)),
	}
	r.Hostname, _ = os.Hostname()
	r.WorkingDir, _ = os.Getwd()
	r.Executable, _ = os.Executable()
	if u, err := user.Current(); err == nil {
		r.User = u.Username
	}
	if hi, err := host.InfoWithContext(ctx); err == nil {
		r.Platform = strings.TrimSpace(hi.Platform + " " + hi.PlatformVersion)
	}
	for _, k := range KeyEnv {
		if v, ok := os.LookupEnv(k); ok {
			r.Env[k] = v
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	r.Memory = Memory{
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.HeapSys,
		Sys:        ms.Sys,
		NumGC:      ms.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		r.Build = Build{Path: bi.Main.Path, Version: bi.Main.Version}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				r.Build.Revision = s.Value
			case "vcs.modified":
				r.Build.Modified = s.Value == "true"
			}
		}
	}

	for _, p := range check {
		fc := FileCheck{Path: p}
		if fi, err := os.Stat(p); err == nil {
			fc.Exists = true
			fc.Size = fi.Size()
		}
		r.Files = append(r.Files, fc)
	}
	return r
}

// WriteTo writes the report as readable text.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "=== System ===\n")
	fmt.Fprintf(&b, "OS: %s/%s %s\n", r.OS, r.Arch, r.Platform)
	fmt.Fprintf(&b, "Go: %s\n", r.GoVersion)
	fmt.Fprintf(&b, "CPUs: %d\n", r.NumCPU)
	fmt.Fprintf(&b, "Page size: %d\n", r.PageSize)
	fmt.Fprintf(&b, "Host: %s\n", r.Hostname)
	fmt.Fprintf(&b, "User: %s\n", r.User)
	fmt.Fprintf(&b, "Working directory: %s\n", r.WorkingDir)
	fmt.Fprintf(&b, "Executable: %s\n", r.Executable)

	fmt.Fprintf(&b, "=== Environment ===\n")
	keys := make([]string, 0, len(r.Env))
	for k := range r.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, r.Env[k])
	}

	fmt.Fprintf(&b, "=== Application ===\n")
	fmt.Fprintf(&b, "Module: %s %s\n", r.Build.Path, r.Build.Version)
	if r.Build.Revision != "" {
		fmt.Fprintf(&b, "Revision: %s (modified: %t)\n", r.Build.Revision, r.Build.Modified)
	}
	fmt.Fprintf(&b, "Heap: %d / %d bytes, GC runs: %d, goroutines: %d\n",
		r.Memory.HeapAlloc, r.Memory.HeapSys, r.Memory.NumGC, r.Memory.Goroutines)

	if len(r.Files) > 0 {
		fmt.Fprintf(&b, "=== Files ===\n")
		for _, f := range r.Files {
			state := "missing"
			if f.Exists {
				state = fmt.Sprintf("ok (%d bytes)", f.Size)
			}
			fmt.Fprintf(&b, "%s: %s\n", f.Path, state)
		}
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

var fileMu sync.Mutex

// Log appends a timestamped entry to the diagnostics file at path.
func Log(path, msg string) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "[%s] %s\n", time.Now().Format(stampLayout), msg)
	return errors.Join(werr, f.Close())
}

// WriteReport appends r to the diagnostics file at path.
func WriteReport(path string, r Report) error {
	var b strings.Builder
	if _, err := r.WriteTo(&b); err != nil {
		return err
	}
	return Log(path, "startup report\n"+b.String())
}

// Guard runs fn and converts a panic into an entry in the file at path and
// an error wrapping [ErrPanic]. Errors returned by fn are logged the same
// way and passed through.
func Guard(path string, fn func() error) (err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		stack := debug.Stack()
		_ = Log(path, fmt.Sprintf("panic: %v\ntype: %T\nstack:\n%s", rec, rec, stack))
		err = fmt.Errorf("%w: %v", ErrPanic, rec)
	}()

	if err := fn(); err != nil {
		_ = Log(path, "fatal: "+err.Error())
		return err
	}
	return nil
}
