package thermo

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ReadFits parses chemical potential fits from YAML. The document maps fit
// names to element/potential pairs:
//
//	standard:
//	  Fe: -8.46
//	  O: -4.52
func ReadFits(r io.Reader) (*ReferenceSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read fits: %w", err)
	}
	var fits map[string]map[string]float64
	if err := yaml.Unmarshal(data, &fits); err != nil {
		return nil, fmt.Errorf("decode fits: %w", err)
	}
	if len(fits) == 0 {
		return nil, fmt.Errorf("no fits defined")
	}

	refs := NewReferenceSet()
	for fit, potentials := range fits {
		if len(potentials) == 0 {
			return nil, fmt.Errorf("fit %q has no chemical potentials", fit)
		}
		for element, mu := range potentials {
			refs.SetPotential(fit, element, mu)
		}
	}
	return refs, nil
}

// ReadFitsFile reads chemical potential fits from a YAML file.
func ReadFitsFile(path string) (*ReferenceSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fits file: %w", err)
	}
	defer file.Close()
	return ReadFits(file)
}
