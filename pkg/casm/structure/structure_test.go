package structure

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prisms-center/casm-go/internal/native/nativetest"
	"github.com/prisms-center/casm-go/pkg/casm"
)

// fakeSource serves canned outputs keyed by argument string.
type fakeSource map[string]*casm.Output

func (f fakeSource) Capture(args string, _ *casm.Project, _ string, _ casm.CaptureOptions) (*casm.Output, error) {
	if out, ok := f[args]; ok {
		return out, nil
	}
	return &casm.Output{Args: args, Status: casm.StatusInvalidArg, Stderr: []byte("unexpected args")}, nil
}

const cfg1JSON = `[
  {"name": "SCEL1_1_1_1_0_0_0/0", "selected": true, "structure": {"coord_mode": "Fractional", "atom_type": ["A"]}},
  {"name": "cfg1", "selected": false, "structure": {"coord_mode": "Cartesian", "atom_type": ["B"]}}
]`

func TestQueryNames(t *testing.T) {
	args := "query -k structure -c NONE --confignames cfg1 -j -o STDOUT"
	src := fakeSource{args: {Args: args, Stdout: []byte(`[{"name": "cfg1", "selected": false, "structure": {"atom_type": ["B"]}}]`)}}

	recs, err := QueryNames(src, nil, "/proj", []string{"cfg1"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "cfg1", recs[0].Name)
	require.Equal(t, []any{"B"}, recs[0].Structure["atom_type"])
}

func TestQueryNamesEmpty(t *testing.T) {
	recs, err := QueryNames(fakeSource{}, nil, "/proj", nil)
	require.NoError(t, err)
	require.Nil(t, recs)
}

func TestQuerySelectionKeepsSelected(t *testing.T) {
	args := "query -k structure -c MASTER -j -o STDOUT"
	src := fakeSource{args: {Args: args, Stdout: []byte(cfg1JSON)}}

	recs, err := QuerySelection(src, nil, "/proj", "MASTER")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "SCEL1_1_1_1_0_0_0/0", recs[0].Name)
}

func TestQueryCommandError(t *testing.T) {
	args := "query -k structure -c NONE --confignames cfg1 -j -o STDOUT"
	src := fakeSource{args: {Args: args, Status: casm.StatusNoProject, Stderr: []byte("No CASM project found")}}

	_, err := QueryNames(src, nil, "/proj", []string{"cfg1"})
	var ce *casm.CommandError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, casm.StatusNoProject, ce.Status)
}

func TestQueryDecodingError(t *testing.T) {
	args := "query -k structure -c NONE --confignames cfg1 -j -o STDOUT"
	src := fakeSource{args: {Args: args, Stdout: []byte("cfg1 selected\n")}}

	_, err := QueryNames(src, nil, "/proj", []string{"cfg1"})
	var de *casm.ReadoutDecodingError
	require.ErrorAs(t, err, &de)
	require.Equal(t, args, de.Args)
	require.Equal(t, "cfg1 selected\n", string(de.Output))
}

func TestWriteCASM(t *testing.T) {
	dir := t.TempDir()
	s := map[string]any{"coord_mode": "Fractional", "atom_coords": []any{[]any{0.0, 0.0, 0.0}}}

	name, err := WriteCASM(s, dir, false)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, FileName), name)

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "Fractional", got["coord_mode"])

	_, err = WriteCASM(s, dir, false)
	require.ErrorIs(t, err, ErrFileExists)

	_, err = WriteCASM(map[string]any{"coord_mode": "Cartesian"}, dir, true)
	require.NoError(t, err)
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	var recs []Record
	require.NoError(t, json.Unmarshal([]byte(cfg1JSON), &recs))

	files, err := Export(recs, dir, false)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "SCEL1_1_1_1_0_0_0", "0", FileName),
		filepath.Join(dir, "cfg1", FileName),
	}, files)
	for _, f := range files {
		require.FileExists(t, f)
	}

	_, err = Export(recs, dir, false)
	require.ErrorIs(t, err, ErrFileExists)
}

func TestExportRejectsFileAsDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(f, nil, 0o644))

	_, err := Export(nil, f, false)
	require.Error(t, err)
}

func TestQueryAgainstEngine(t *testing.T) {
	e := nativetest.New()
	e.AddProject("/proj",
		nativetest.Config{Name: "cfg1", Selected: true, Structure: map[string]any{"coord_mode": "Fractional"}},
		nativetest.Config{Name: "cfg2", Structure: map[string]any{"coord_mode": "Cartesian"}},
	)
	lib := casm.FromSession(e.Session(), nil)

	err := lib.WithProject("/proj", casm.Sinks{}, func(p *casm.Project) error {
		recs, err := QueryNames(lib, p, "", []string{"cfg1", "cfg2"})
		require.NoError(t, err)
		require.Len(t, recs, 2)

		sel, err := QuerySelection(lib, p, "", "MASTER")
		require.NoError(t, err)
		require.Len(t, sel, 1)
		require.Equal(t, "cfg1", sel[0].Name)

		files, err := Export(sel, t.TempDir(), false)
		require.NoError(t, err)
		require.Len(t, files, 1)
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, e.LiveSinks())
	require.Zero(t, e.LiveContexts())
}
