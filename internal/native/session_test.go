package native

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prisms-center/casm-go/internal/locator"
)

// fakeRegister binds every field to a no-op so bind can complete without
// native code.
func fakeRegister(fptr any, _ uintptr) {
	switch f := fptr.(type) {
	case *func() uintptr:
		*f = func() uintptr { return 1 }
	case *func(uintptr):
		*f = func(uintptr) {}
	case *func(uintptr) uint64:
		*f = func(uintptr) uint64 { return 0 }
	case *func(uintptr, *byte) uintptr:
		*f = func(uintptr, *byte) uintptr { return 0 }
	case *func(string, uintptr, uintptr, uintptr) uintptr:
		*f = func(string, uintptr, uintptr, uintptr) uintptr { return 1 }
	case *func(uintptr, bool, bool, bool, bool, bool):
		*f = func(uintptr, bool, bool, bool, bool, bool) {}
	case *func(string, uintptr, string, uintptr, uintptr, uintptr) int32:
		*f = func(string, uintptr, string, uintptr, uintptr, uintptr) int32 { return 0 }
	}
}

type fakeDL struct {
	mu      sync.Mutex
	opened  []string
	missing string
	openErr map[string]error
}

func (f *fakeDL) dynlib() *dynlib {
	return &dynlib{
		open: func(path string) (uintptr, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if err := f.openErr[path]; err != nil {
				return 0, err
			}
			f.opened = append(f.opened, path)
			return uintptr(len(f.opened)), nil
		},
		sym: func(_ uintptr, name string) (uintptr, error) {
			if name == f.missing {
				return 0, errors.New("undefined symbol: " + name)
			}
			return 0x1000, nil
		},
		register: fakeRegister,
	}
}

var testPaths = locator.Paths{
	Executable: "/usr/bin/casm",
	Engine:     "/opt/casm/lib/libcasm.so",
	Binding:    "/opt/casm/lib/libccasm.so",
}

func TestLoaderOpensEngineBeforeBinding(t *testing.T) {
	dl := &fakeDL{}
	l := &Loader{dl: dl.dynlib()}

	s, err := l.Load(func() (locator.Paths, error) { return testPaths, nil })
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Paths != testPaths {
		t.Fatalf("paths = %+v", s.Paths)
	}
	if len(dl.opened) != 2 || dl.opened[0] != testPaths.Engine || dl.opened[1] != testPaths.Binding {
		t.Fatalf("open order = %v", dl.opened)
	}
	if err := s.Table.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoaderSingleFlight(t *testing.T) {
	dl := &fakeDL{}
	l := &Loader{dl: dl.dynlib()}

	var calls atomic.Int32
	resolve := func() (locator.Paths, error) {
		calls.Add(1)
		return testPaths, nil
	}

	const n = 16
	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			s, err := l.Load(resolve)
			if err != nil {
				t.Errorf("Load: %v", err)
			}
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("resolve called %d times", got)
	}
	for i := 1; i < n; i++ {
		if sessions[i] != sessions[0] {
			t.Fatalf("session %d differs", i)
		}
	}
	if len(dl.opened) != 2 {
		t.Fatalf("libraries opened %d times", len(dl.opened))
	}
}

func TestLoaderLocateFailureIsSticky(t *testing.T) {
	l := &Loader{dl: (&fakeDL{}).dynlib()}
	notFound := &locator.LibraryNotFoundError{Executable: "/usr/bin/casm", Listing: "libfoo.so => /lib/libfoo.so"}

	_, err := l.Load(func() (locator.Paths, error) { return locator.Paths{}, notFound })
	var se *SessionError
	if !errors.As(err, &se) || se.Stage != StageLocate {
		t.Fatalf("expected locate SessionError, got %v", err)
	}
	var lnf *locator.LibraryNotFoundError
	if !errors.As(err, &lnf) || lnf.Listing == "" {
		t.Fatalf("expected wrapped LibraryNotFoundError, got %v", err)
	}

	_, err2 := l.Load(func() (locator.Paths, error) { return testPaths, nil })
	if err2 != err {
		t.Fatalf("second Load returned %v, want sticky %v", err2, err)
	}
}

func TestLoaderOpenFailure(t *testing.T) {
	dl := &fakeDL{openErr: map[string]error{testPaths.Binding: errors.New("cannot open shared object file")}}
	l := &Loader{dl: dl.dynlib()}

	_, err := l.Load(func() (locator.Paths, error) { return testPaths, nil })
	var se *SessionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SessionError, got %v", err)
	}
	if se.Stage != StageOpen || se.Path != testPaths.Binding {
		t.Fatalf("unexpected error %+v", se)
	}
}

func TestLoaderMissingSymbol(t *testing.T) {
	dl := &fakeDL{missing: "casm_primclex_refresh"}
	l := &Loader{dl: dl.dynlib()}

	_, err := l.Load(func() (locator.Paths, error) { return testPaths, nil })
	var se *SessionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SessionError, got %v", err)
	}
	if se.Stage != StageResolve || se.Symbol != "casm_primclex_refresh" || se.Path != testPaths.Binding {
		t.Fatalf("unexpected error %+v", se)
	}
}

func TestLoaderWithoutDynamicLoading(t *testing.T) {
	l := &Loader{dl: &dynlib{}}
	_, err := l.Load(func() (locator.Paths, error) { return testPaths, nil })
	if !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt, got %v", err)
	}
}

func TestNewSessionRejectsPartialTable(t *testing.T) {
	tbl := &Table{Stdout: func() uintptr { return 1 }}
	_, err := NewSession(testPaths, tbl)
	if !errors.Is(err, ErrUnbound) {
		t.Fatalf("expected ErrUnbound, got %v", err)
	}
}
