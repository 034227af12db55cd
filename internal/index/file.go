package index

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jonathan/skillsense/internal/ontology"
)

// fileFormat is the on-disk layout written by Save.
type fileFormat struct {
	Model           string    `json:"model"`
	Dimension       int       `json:"dimension"`
	OntologyVersion string    `json:"ontology_version,omitempty"`
	BuiltAt         time.Time `json:"built_at"`
	Skills          []Entry   `json:"skills"`
}

// MismatchError reports a stored index that was produced by a different model
// or from a different version of the ontology.
type MismatchError struct {
	Field string
	Got   string
	Want  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("index %s mismatch: got %s, want %s", e.Field, e.Got, e.Want)
}

// Save writes the index as JSON.
func (idx *Index) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err := enc.Encode(fileFormat{
		Model:           idx.model,
		Dimension:       idx.dim,
		OntologyVersion: idx.version,
		BuiltAt:         idx.builtAt,
		Skills:          idx.Entries(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return nil
}

// SaveFile writes the index to path, creating parent directories.
func (idx *Index) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if err := idx.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Load reads an index written by Save and checks it against the active model and
// ontology. An index from another model, dimension or ontology version is rejected
// with a MismatchError.
func Load(r io.Reader, ont *ontology.Ontology, model string, dim int) (*Index, error) {
	var ff fileFormat
	if err := json.NewDecoder(r).Decode(&ff); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	if ff.Model != model {
		return nil, &MismatchError{Field: "model", Got: ff.Model, Want: model}
	}
	if dim > 0 && ff.Dimension != dim {
		return nil, &MismatchError{Field: "dimension", Got: fmt.Sprint(ff.Dimension), Want: fmt.Sprint(dim)}
	}
	if ff.OntologyVersion != ont.Version() {
		return nil, &MismatchError{Field: "ontology_version", Got: ff.OntologyVersion, Want: ont.Version()}
	}
	return assemble(ont, ff.Model, ff.Dimension, ff.BuiltAt, ff.Skills)
}

// LoadFile opens path and calls Load.
func LoadFile(path string, ont *ontology.Ontology, model string, dim int) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	idx, err := Load(f, ont, model, dim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx, nil
}
