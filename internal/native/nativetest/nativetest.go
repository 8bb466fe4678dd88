// Package nativetest provides an in-process stand-in for libccasm. Engine
// fills a native.Table with Go closures that keep sinks and project contexts
// in maps, so the handle and dispatch layers can be exercised without the
// shared libraries.
package nativetest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"unsafe"

	"github.com/prisms-center/casm-go/internal/locator"
	"github.com/prisms-center/casm-go/internal/native"
)

const (
	stdoutHandle uintptr = 1
	stderrHandle uintptr = 2
	nullHandle   uintptr = 3
)

// Config is one enumerated configuration of a fake project.
type Config struct {
	Name      string
	Selected  bool
	Structure map[string]any
}

// RefreshCall records the flags passed to casm_primclex_refresh.
type RefreshCall struct {
	Context uintptr

	Settings, Composition, ChemRef, Configs, Clex bool
}

type project struct {
	configs []Config
}

type primclex struct {
	root    string
	configs []Config
	clex    bool
}

// Engine is a fake CASM engine. The zero value is not usable; call New.
type Engine struct {
	mu sync.Mutex

	next     uintptr
	sinks    map[uintptr]*bytes.Buffer
	projects map[string]*project
	contexts map[uintptr]*primclex

	stdout bytes.Buffer
	stderr bytes.Buffer

	// ForceStatus, when non-nil, is returned by every dispatch.
	ForceStatus *int32

	invalidFrees int
	refreshes    []RefreshCall
	dispatched   []string
}

// New returns an Engine with no projects.
func New() *Engine {
	return &Engine{
		next:     100,
		sinks:    map[uintptr]*bytes.Buffer{},
		projects: map[string]*project{},
		contexts: map[uintptr]*primclex{},
	}
}

// Session wraps the engine table in a native.Session.
func (e *Engine) Session() *native.Session {
	s, err := native.NewSession(locator.Paths{
		Executable: "/fake/bin/casm",
		Engine:     "/fake/lib/libcasm.so",
		Binding:    "/fake/lib/libccasm.so",
	}, e.Table())
	if err != nil {
		panic(err)
	}
	return s
}

// AddProject registers the on-disk state of a project rooted at root.
func (e *Engine) AddProject(root string, configs ...Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.projects[root] = &project{configs: append([]Config(nil), configs...)}
}

// SetConfigs replaces the on-disk configuration list of root. Open contexts
// see the change only after a refresh with the configs flag.
func (e *Engine) SetConfigs(root string, configs ...Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p := e.projects[root]; p != nil {
		p.configs = append([]Config(nil), configs...)
	}
}

// LiveSinks reports capturing sinks that have not been deleted.
func (e *Engine) LiveSinks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sinks)
}

// LiveContexts reports project contexts that have not been deleted.
func (e *Engine) LiveContexts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.contexts)
}

// InvalidFrees counts deletes of handles the engine does not own.
func (e *Engine) InvalidFrees() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.invalidFrees
}

// Refreshes returns the refresh calls seen so far.
func (e *Engine) Refreshes() []RefreshCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]RefreshCall(nil), e.refreshes...)
}

// Dispatched returns the argument strings passed to casm_capi.
func (e *Engine) Dispatched() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.dispatched...)
}

// Stdout returns what was written to the standard sink.
func (e *Engine) Stdout() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stdout.String()
}

// Stderr returns what was written to the error sink.
func (e *Engine) Stderr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stderr.String()
}

// Write appends s to the sink identified by h, as engine output would.
func (e *Engine) Write(h uintptr, s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = io.WriteString(e.writer(h), s)
}

// writer must be called with mu held.
func (e *Engine) writer(h uintptr) io.Writer {
	switch h {
	case stdoutHandle:
		return &e.stdout
	case stderrHandle:
		return &e.stderr
	case nullHandle:
		return io.Discard
	}
	if b, ok := e.sinks[h]; ok {
		return b
	}
	panic(fmt.Sprintf("nativetest: write to invalid sink %#x", h))
}

// Table returns entry points backed by this engine.
func (e *Engine) Table() *native.Table {
	return &native.Table{
		Stdout:     func() uintptr { return stdoutHandle },
		Stderr:     func() uintptr { return stderrHandle },
		NullStream: func() uintptr { return nullHandle },

		OStringStreamNew: func() uintptr {
			e.mu.Lock()
			defer e.mu.Unlock()
			h := e.next
			e.next++
			e.sinks[h] = &bytes.Buffer{}
			return h
		},
		OStringStreamDelete: func(h uintptr) {
			e.mu.Lock()
			defer e.mu.Unlock()
			if _, ok := e.sinks[h]; !ok {
				e.invalidFrees++
				return
			}
			delete(e.sinks, h)
		},
		OStringStreamSize: func(h uintptr) uint64 {
			e.mu.Lock()
			defer e.mu.Unlock()
			b, ok := e.sinks[h]
			if !ok {
				panic(fmt.Sprintf("nativetest: size of invalid sink %#x", h))
			}
			return uint64(b.Len())
		},
		OStringStreamStrcpy: func(h uintptr, dst *byte) uintptr {
			e.mu.Lock()
			defer e.mu.Unlock()
			b, ok := e.sinks[h]
			if !ok {
				panic(fmt.Sprintf("nativetest: copy of invalid sink %#x", h))
			}
			// strcpy writes the terminating NUL after the content.
			out := unsafe.Slice(dst, b.Len()+1)
			n := copy(out, b.Bytes())
			out[n] = 0
			return uintptr(unsafe.Pointer(dst))
		},

		PrimClexNew: func(root string, log, debugLog, errLog uintptr) uintptr {
			e.mu.Lock()
			defer e.mu.Unlock()
			p, ok := e.projects[root]
			if !ok {
				fmt.Fprintf(e.writer(errLog), "No CASM project found at %s\n", root)
				return 0
			}
			h := e.next
			e.next++
			e.contexts[h] = &primclex{root: root, configs: append([]Config(nil), p.configs...), clex: true}
			fmt.Fprintf(e.writer(debugLog), "constructed PrimClex %s\n", root)
			return h
		},
		PrimClexDelete: func(h uintptr) {
			e.mu.Lock()
			defer e.mu.Unlock()
			if _, ok := e.contexts[h]; !ok {
				e.invalidFrees++
				return
			}
			delete(e.contexts, h)
		},
		PrimClexRefresh: func(h uintptr, settings, composition, chemRef, configs, clearClex bool) {
			e.mu.Lock()
			defer e.mu.Unlock()
			pc, ok := e.contexts[h]
			if !ok {
				panic(fmt.Sprintf("nativetest: refresh of invalid context %#x", h))
			}
			e.refreshes = append(e.refreshes, RefreshCall{
				Context: h, Settings: settings, Composition: composition,
				ChemRef: chemRef, Configs: configs, Clex: clearClex,
			})
			if configs {
				if p := e.projects[pc.root]; p != nil {
					pc.configs = append([]Config(nil), p.configs...)
				}
			}
			if clearClex {
				pc.clex = false
			}
		},

		CAPI: func(args string, h uintptr, root string, log, debugLog, errLog uintptr) int32 {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.dispatched = append(e.dispatched, args)
			code := e.dispatch(args, h, root, e.writer(log), e.writer(debugLog), e.writer(errLog))
			if e.ForceStatus != nil {
				return *e.ForceStatus
			}
			return code
		},
	}
}

// dispatch must be called with mu held.
func (e *Engine) dispatch(args string, h uintptr, root string, log, debugLog, errLog io.Writer) int32 {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		fmt.Fprintln(errLog, "casm: no command given")
		return 1
	}
	fmt.Fprintf(debugLog, "casm %s\n", args)

	switch fields[0] {
	case "init":
		if _, ok := e.projects[root]; ok {
			fmt.Fprintf(errLog, "Already in a CASM project: %s\n", root)
			return 8
		}
		e.projects[root] = &project{}
		fmt.Fprintf(log, "Initialized CASM project at %s\n", root)
		return 0
	case "status", "query", "select":
	default:
		fmt.Fprintf(errLog, "casm: unknown command %q\n", fields[0])
		return 1
	}

	configs, ok := e.configsFor(h, root)
	if !ok {
		fmt.Fprintf(errLog, "No CASM project found at %s\n", root)
		return 3
	}

	switch fields[0] {
	case "status":
		fmt.Fprintf(log, "Project: %s\nConfigurations: %d\n", root, len(configs))
		return 0
	case "select":
		return 0
	default:
		return e.query(fields[1:], configs, log, errLog)
	}
}

func (e *Engine) configsFor(h uintptr, root string) ([]Config, bool) {
	if h != 0 {
		pc, ok := e.contexts[h]
		if !ok {
			panic(fmt.Sprintf("nativetest: dispatch with invalid context %#x", h))
		}
		return pc.configs, true
	}
	p, ok := e.projects[root]
	if !ok {
		return nil, false
	}
	return p.configs, true
}

type queryRecord struct {
	Name      string         `json:"name"`
	Selected  bool           `json:"selected"`
	Structure map[string]any `json:"structure,omitempty"`
}

func (e *Engine) query(args []string, configs []Config, log, errLog io.Writer) int32 {
	var keys, names []string
	var asJSON bool
	selection, output := "MASTER", ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-k":
			for i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				keys = append(keys, args[i])
			}
		case "-c":
			if i+1 >= len(args) {
				fmt.Fprintln(errLog, "query: -c requires a selection")
				return 1
			}
			i++
			selection = args[i]
		case "--confignames":
			for i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				names = append(names, args[i])
			}
		case "-j":
			asJSON = true
		case "-o":
			if i+1 >= len(args) {
				fmt.Fprintln(errLog, "query: -o requires a destination")
				return 1
			}
			i++
			output = args[i]
		default:
			fmt.Fprintf(errLog, "query: unrecognised option %q\n", args[i])
			return 1
		}
	}

	byName := make(map[string]Config, len(configs))
	for _, c := range configs {
		byName[c.Name] = c
	}

	var picked []Config
	if selection != "NONE" {
		for _, c := range configs {
			if selection == "ALL" || c.Selected {
				picked = append(picked, c)
			}
		}
	}
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			fmt.Fprintf(errLog, "query: no configuration named %q\n", name)
			return 1
		}
		picked = append(picked, c)
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].Name < picked[j].Name })

	withStructure := false
	for _, k := range keys {
		if k == "structure" {
			withStructure = true
		}
	}

	var buf bytes.Buffer
	if asJSON {
		recs := make([]queryRecord, 0, len(picked))
		for _, c := range picked {
			r := queryRecord{Name: c.Name, Selected: c.Selected}
			if withStructure {
				r.Structure = c.Structure
			}
			recs = append(recs, r)
		}
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(recs); err != nil {
			fmt.Fprintf(errLog, "query: %v\n", err)
			return 2
		}
	} else {
		for _, c := range picked {
			fmt.Fprintf(&buf, "%s %t\n", c.Name, c.Selected)
		}
	}

	switch output {
	case "", "STDOUT":
		_, _ = log.Write(buf.Bytes())
		return 0
	default:
		if _, err := os.Stat(output); err == nil {
			fmt.Fprintf(errLog, "query: %s already exists\n", output)
			return 6
		}
		if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
			fmt.Fprintf(errLog, "query: %v\n", err)
			return 2
		}
		return 0
	}
}
