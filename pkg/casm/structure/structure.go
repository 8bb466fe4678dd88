package structure

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prisms-center/casm-go/pkg/casm"
)

// FileName is the name of a written CASM structure file.
const FileName = "structure.casm.json"

// ErrFileExists reports a structure file that would be overwritten.
var ErrFileExists = errors.New("file already exists")

// Record is one configuration returned by a structure query.
type Record struct {
	Name      string         `json:"name"`
	Selected  bool           `json:"selected"`
	Structure map[string]any `json:"structure"`
}

// Source runs query commands. *casm.Library satisfies it.
type Source interface {
	Capture(args string, project *casm.Project, root string, opts casm.CaptureOptions) (*casm.Output, error)
}

// QueryNames returns the structures of the named configurations.
func QueryNames(src Source, p *casm.Project, root string, names []string) ([]Record, error) {
	if len(names) == 0 {
		return nil, nil
	}
	args := "query -k structure -c NONE --confignames " + strings.Join(names, " ") + " -j -o STDOUT"
	return query(src, p, root, args)
}

// QuerySelection returns the structures of the configurations selected in
// the named selection.
func QuerySelection(src Source, p *casm.Project, root, selection string) ([]Record, error) {
	if selection == "" {
		return nil, errors.New("structure: empty selection name")
	}
	recs, err := query(src, p, root, "query -k structure -c "+selection+" -j -o STDOUT")
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if r.Selected {
			out = append(out, r)
		}
	}
	return out, nil
}

func query(src Source, p *casm.Project, root, args string) ([]Record, error) {
	res, err := src.Capture(args, p, root, casm.CaptureOptions{})
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	var recs []Record
	if err := json.Unmarshal(res.Stdout, &recs); err != nil {
		return nil, &casm.ReadoutDecodingError{Args: args, Output: res.Stdout, Err: err}
	}
	for i, r := range recs {
		if r.Name == "" {
			return nil, &casm.ReadoutDecodingError{Args: args, Output: res.Stdout, Err: fmt.Errorf("record %d has no name", i)}
		}
	}
	return recs, nil
}

// WriteCASM writes s to dir/structure.casm.json with sorted keys. Without
// force an existing file is left alone and ErrFileExists is returned.
func WriteCASM(s map[string]any, dir string, force bool) (string, error) {
	filename := filepath.Join(dir, FileName)
	if _, err := os.Stat(filename); err == nil && !force {
		return "", fmt.Errorf("%s: %w", filename, ErrFileExists)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", filename, err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o644); err != nil { // #nosec G306 -- project data, not secrets
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	return filename, nil
}

// Export writes every record under dir, one directory per configuration
// name, and returns the written file names in record order.
func Export(recs []Record, dir string, force bool) ([]string, error) {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("structure: %s must be a directory", dir)
	}
	files := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.Structure == nil {
			return files, fmt.Errorf("structure: configuration %s has no structure", r.Name)
		}
		configDir := filepath.Join(dir, filepath.FromSlash(r.Name))
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return files, fmt.Errorf("create %s: %w", configDir, err)
		}
		f, err := WriteCASM(r.Structure, configDir, force)
		if err != nil {
			return files, err
		}
		files = append(files, f)
	}
	return files, nil
}
