package fold

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Save writes the assignment as a JSON document.
func (a *Assignment) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("fold: save: %w", err)
	}
	return nil
}

// Load reads an assignment saved by Save and validates its top-level shape
// against its own declared counts. Per-fold content is trusted.
func Load(r io.Reader) (*Assignment, error) {
	var a Assignment
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("fold: load: %w", err)
	}
	if err := a.Validate(a.Times, a.NumFolds); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveFile writes the assignment to a file path.
func (a *Assignment) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("fold: save: %w", err)
	}
	defer f.Close()
	if err := a.Save(f); err != nil {
		return err
	}
	return f.Close()
}

// LoadFile reads an assignment from a file path.
func LoadFile(path string) (*Assignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fold: load: %w", err)
	}
	defer f.Close()
	return Load(f)
}
