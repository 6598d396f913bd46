package eval

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Sample is one evaluation input with its expected target.
type Sample struct {
	ID       string         `yaml:"id,omitempty"`
	Input    string         `yaml:"input"`
	Target   string         `yaml:"target,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// Dataset is a named collection of samples.
type Dataset struct {
	Name    string   `yaml:"name,omitempty"`
	Samples []Sample `yaml:"samples"`
}

// NewDataset builds an in-code dataset.
func NewDataset(name string, samples ...Sample) Dataset {
	ds := Dataset{Name: name, Samples: samples}
	ds.assignIDs()
	return ds
}

// LoadDataset reads a YAML dataset file from path.
func LoadDataset(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadDataset(f)
}

// ReadDataset decodes a YAML dataset from r. Samples without an explicit ID
// get a positional one.
func ReadDataset(r io.Reader) (Dataset, error) {
	var ds Dataset
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	if len(ds.Samples) == 0 {
		return Dataset{}, fmt.Errorf("dataset has no samples")
	}
	ds.assignIDs()
	return ds, nil
}

func (d *Dataset) assignIDs() {
	for i := range d.Samples {
		if d.Samples[i].ID == "" {
			d.Samples[i].ID = fmt.Sprintf("sample-%d", i+1)
		}
	}
}
