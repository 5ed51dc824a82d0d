// Package vasp models VASP pseudopotentials and Hubbard corrections.
package vasp

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oqmd/qmdb/internal/materials"
	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// Potential holds the header metadata of one pseudopotential dataset from a
// POTCAR file.
type Potential struct {
	Element    string
	Name       string
	Date       string
	XC         string
	ElecConfig string
	Enmax      float64
	Enmin      float64
	Paw        bool
	Us         bool
	Gw         bool
	Release    string
	// Potcar is the raw dataset text.
	Potcar string
}

// String renders the potential the way it is usually quoted, e.g.
// "Li_sv PAW PBE GW r5_4_0".
func (p Potential) String() string {
	ident := []string{p.Name}
	if p.Paw {
		ident = append(ident, "PAW")
	} else if p.Us {
		ident = append(ident, "US")
	}
	ident = append(ident, p.XC)
	if p.Gw {
		ident = append(ident, "GW")
	}
	if p.Release != "" && p.Release != "unknown" {
		ident = append(ident, p.Release)
	}
	return strings.Join(ident, " ")
}

// ParsePotcar parses the concatenated datasets of a POTCAR file. The
// release string is attached to every dataset; pass "unknown" when no
// version information is available.
func ParsePotcar(contents, release string) ([]Potential, error) {
	if release == "" {
		release = "unknown"
	}
	datasets := strings.Split(strings.TrimSpace(contents), "End of Dataset")
	potentials := make([]Potential, 0, len(datasets))
	for _, dataset := range datasets {
		if strings.TrimSpace(dataset) == "" {
			continue
		}
		potential, err := parseDataset(dataset, release)
		if err != nil {
			return nil, err
		}
		potentials = append(potentials, potential)
	}
	if len(potentials) == 0 {
		return nil, apperrors.New(apperrors.CodePotentialMalformed, "no datasets in potcar")
	}
	return potentials, nil
}

func parseDataset(dataset, release string) (Potential, error) {
	potential := Potential{Release: release, Potcar: dataset}
	sawTitel := false
	sawEnmax := false

	scanner := bufio.NewScanner(strings.NewReader(dataset))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "TITEL"):
			sawTitel = true
			fields := strings.Fields(line)
			// "TITEL = PAW_PBE Li_sv 10Sep2004"; the all-electron
			// hydrogen potential has a short TITEL line.
			if len(fields) > 3 {
				potential.Name = fields[3]
			} else {
				potential.Name = "H_AE"
			}
			element, err := elementFromName(potential.Name)
			if err != nil {
				return Potential{}, err
			}
			potential.Element = element
			potential.Date = fields[len(fields)-1]
			if potential.Name == "H_AE" {
				potential.Date = "None"
			}
			potential.Gw = strings.Contains(line, "GW")
			potential.Paw = strings.Contains(line, "PAW")
			potential.Us = strings.Contains(line, "US")
		case strings.Contains(line, "ENMAX"):
			sawEnmax = true
			fields := strings.Fields(line)
			if len(fields) < 6 {
				return Potential{}, apperrors.New(apperrors.CodePotentialMalformed,
					fmt.Sprintf("malformed ENMAX line %q", line))
			}
			enmax, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], ";"), 64)
			if err != nil {
				return Potential{}, apperrors.Wrap(apperrors.CodePotentialMalformed, "parse ENMAX", err)
			}
			enmin, err := strconv.ParseFloat(fields[5], 64)
			if err != nil {
				return Potential{}, apperrors.Wrap(apperrors.CodePotentialMalformed, "parse ENMIN", err)
			}
			potential.Enmax = enmax
			potential.Enmin = enmin
		case strings.Contains(line, "VRHFIN"):
			if _, config, ok := strings.Cut(line, ":"); ok {
				potential.ElecConfig = strings.TrimSpace(config)
			}
		case strings.Contains(line, "LEXCH"):
			fields := strings.Fields(line)
			switch fields[len(fields)-1] {
			case "91":
				potential.XC = "GGA"
			case "CA":
				potential.XC = "LDA"
			case "PE":
				potential.XC = "PBE"
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Potential{}, apperrors.Wrap(apperrors.CodePotentialMalformed, "scan potcar", err)
	}
	if !sawTitel || !sawEnmax {
		return Potential{}, apperrors.New(apperrors.CodePotentialMalformed,
			"dataset missing TITEL or ENMAX header")
	}
	return potential, nil
}

// elementFromName extracts the element symbol from a potential name.
// Handles "Li_sv", "As_sv_GW" and "Dy_3" (underscore suffixes), "H.25" and
// "H1.66" (fractional hydrogen), and plain symbols such as "Al".
func elementFromName(name string) (string, error) {
	symbol := name
	if before, _, ok := strings.Cut(name, "_"); ok {
		symbol = before
	} else if before, _, ok := strings.Cut(name, "."); ok {
		var letters []rune
		for _, r := range before {
			if r < '0' || r > '9' {
				letters = append(letters, r)
			}
		}
		symbol = string(letters)
	}
	if !materials.IsElement(symbol) {
		return "", apperrors.WithMetadata(apperrors.CodePotentialUnknownElement,
			fmt.Sprintf("unknown element in potential %s", name),
			map[string]string{"name": name, "symbol": symbol})
	}
	return symbol, nil
}

// ReadPotcarFile reads a POTCAR from disk. If a VERSION file exists in the
// parent of the POTCAR's directory, its first line is used as the release.
func ReadPotcarFile(path string) ([]Potential, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePotentialMalformed, "read potcar file", err)
	}

	release := "unknown"
	absPath, err := filepath.Abs(path)
	if err == nil {
		versionPath := filepath.Join(filepath.Dir(absPath), "..", "VERSION")
		if versionContents, err := os.ReadFile(versionPath); err == nil {
			line, _, _ := strings.Cut(string(versionContents), "\n")
			release = strings.TrimSpace(line)
		}
	}
	return ParsePotcar(string(contents), release)
}
