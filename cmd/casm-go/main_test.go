package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prisms-center/casm-go/internal/native/nativetest"
	"github.com/prisms-center/casm-go/pkg/casm"
	"github.com/prisms-center/casm-go/pkg/casm/structure"
)

func newTestApp(e *nativetest.Engine) (*app, *bytes.Buffer) {
	var out bytes.Buffer
	a := &app{
		stdout: &out,
		stderr: &bytes.Buffer{},
		open: func(cfg casm.Config) (*casm.Library, error) {
			return casm.FromSession(e.Session(), cfg.Logger), nil
		},
	}
	return a, &out
}

func execute(a *app, args ...string) error {
	cmd := a.command()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestVersion(t *testing.T) {
	a, out := newTestApp(nativetest.New())
	require.NoError(t, execute(a, "version"))
	require.Equal(t, casm.WrapperVersion()+"\n", out.String())
}

func TestRunWithProject(t *testing.T) {
	e := nativetest.New()
	root := t.TempDir()
	e.AddProject(root, nativetest.Config{Name: "cfg1"})

	a, _ := newTestApp(e)
	require.NoError(t, execute(a, "run", "--root", root, "--", "status"))
	require.Contains(t, e.Stdout(), "Configurations: 1")
	require.Zero(t, e.LiveContexts())
}

func TestRunExitCodeIsStatus(t *testing.T) {
	e := nativetest.New()
	a, _ := newTestApp(e)

	err := execute(a, "run", "--root", t.TempDir(), "--no-project", "--", "status")
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	require.Equal(t, int(casm.StatusNoProject), ee.code)
	require.Contains(t, e.Stderr(), "No CASM project found")
}

func TestRunMissingProjectReportsEngineStatus(t *testing.T) {
	e := nativetest.New()
	a, _ := newTestApp(e)

	err := execute(a, "run", "--root", t.TempDir(), "--", "status")
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	require.Equal(t, int(casm.StatusNoProject), ee.code)
	require.Contains(t, e.Stderr(), "No CASM project found")
	require.Zero(t, e.LiveContexts())
}

func TestRunInitWithoutProject(t *testing.T) {
	e := nativetest.New()
	root := t.TempDir()
	a, _ := newTestApp(e)

	require.NoError(t, execute(a, "run", "--root", root, "--", "init"))
	require.Contains(t, e.Stdout(), "Initialized CASM project at "+root)
	require.Equal(t, []string{"init"}, e.Dispatched())

	err := execute(a, "run", "--root", root, "--", "init")
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	require.Equal(t, int(casm.StatusOtherProject), ee.code)
}

func TestRunCapture(t *testing.T) {
	e := nativetest.New()
	root := t.TempDir()
	e.AddProject(root, nativetest.Config{Name: "a"}, nativetest.Config{Name: "b"})

	a, out := newTestApp(e)
	require.NoError(t, execute(a, "run", "--root", root, "--capture", "--", "status"))

	var got capturedOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Equal(t, "status", got.Args)
	require.Equal(t, 0, got.Status)
	require.Equal(t, "OK", got.Name)
	require.Contains(t, got.Stdout, "Configurations: 2")
	require.Empty(t, e.Stdout())
	require.Zero(t, e.LiveSinks())
}

func TestStructures(t *testing.T) {
	e := nativetest.New()
	root := t.TempDir()
	e.AddProject(root,
		nativetest.Config{Name: "SCEL1_1_1_1_0_0_0/0", Selected: true, Structure: map[string]any{"atom_type": []any{"A"}}},
		nativetest.Config{Name: "cfg1", Structure: map[string]any{"atom_type": []any{"B"}}},
	)
	dir := filepath.Join(t.TempDir(), "out")

	a, out := newTestApp(e)
	require.NoError(t, execute(a, "structures", "--root", root, "--selection", "MASTER", "--names", "cfg1", "--output-dir", dir))

	for _, name := range []string{"SCEL1_1_1_1_0_0_0/0", "cfg1"} {
		f := filepath.Join(dir, filepath.FromSlash(name), structure.FileName)
		require.FileExists(t, f)
		require.Contains(t, out.String(), f)
	}

	err := execute(a, "structures", "--root", root, "--names", "cfg1", "--output-dir", dir)
	require.ErrorIs(t, err, structure.ErrFileExists)
	require.NoError(t, execute(a, "structures", "--root", root, "--names", "cfg1", "--output-dir", dir, "--force"))
}

func TestStructuresNeedsSelector(t *testing.T) {
	a, _ := newTestApp(nativetest.New())
	require.Error(t, execute(a, "structures", "--root", t.TempDir()))
}

func TestConfigFileMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "casm-go.yaml")
	require.NoError(t, os.WriteFile(path, []byte("executable: /opt/casm/bin/casm\nengine_library: /opt/casm/lib/libcasm.so\nlog:\n  level: debug\n  format: json\n"), 0o600))

	a, _ := newTestApp(nativetest.New())
	cmd := a.command()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--log-level", "error"}))

	m, err := a.opts.merge(cmd)
	require.NoError(t, err)
	require.Equal(t, "/opt/casm/bin/casm", m.executable)
	require.Equal(t, "/opt/casm/lib/libcasm.so", m.engineLibrary)
	require.Equal(t, "error", m.logLevel)
	require.Equal(t, "json", m.logFormat)
}

func TestConfigFileMissing(t *testing.T) {
	a, _ := newTestApp(nativetest.New())
	err := execute(a, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "locate")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewZapLoggerRejectsBadInput(t *testing.T) {
	_, err := newZapLogger("loud", "console")
	require.Error(t, err)
	_, err = newZapLogger("info", "xml")
	require.Error(t, err)
	zl, err := newZapLogger("debug", "json")
	require.NoError(t, err)
	require.NotNil(t, zl)
}

func TestLocateExplicit(t *testing.T) {
	dir := t.TempDir()
	engine := filepath.Join(dir, "libcasm.so.0")
	binding := filepath.Join(dir, "libccasm.so.0")
	for _, f := range []string{engine, binding} {
		require.NoError(t, os.WriteFile(f, nil, 0o600))
	}

	a, out := newTestApp(nativetest.New())
	require.NoError(t, execute(a, "locate", "--engine-lib", engine))
	require.Contains(t, out.String(), "engine:     "+engine)
	require.Contains(t, out.String(), "binding:    "+binding)
}

func TestJoinArgs(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{[]string{"status"}, "status"},
		{[]string{"query", "-k", "comp", "corr"}, "query -k comp corr"},
		{[]string{"select", "--set", "is_calculated && comp(a) > 0.5"}, "select --set 'is_calculated && comp(a) > 0.5'"},
		{[]string{"x", "it's"}, `x 'it'\''s'`},
		{[]string{"x", ""}, "x ''"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, joinArgs(c.in))
	}
}

func TestDedupeKeepsOrder(t *testing.T) {
	recs := dedupe([]structure.Record{{Name: "a"}, {Name: "b"}, {Name: "a", Selected: true}})
	require.Len(t, recs, 2)
	require.Equal(t, "a", recs[0].Name)
	require.True(t, recs[0].Selected)
	require.Equal(t, "b", recs[1].Name)
}
