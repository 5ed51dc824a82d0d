package materials

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// ReadPoscar parses a VASP 5 POSCAR from r. Both direct and cartesian
// coordinates are accepted; a selective-dynamics line is skipped. A negative
// scale factor is interpreted as a target cell volume, following VASP.
func ReadPoscar(r io.Reader) (Structure, string, error) {
	scanner := bufio.NewScanner(r)
	next := func() (string, bool) {
		for scanner.Scan() {
			return scanner.Text(), true
		}
		return "", false
	}

	comment, ok := next()
	if !ok {
		return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar, "empty POSCAR")
	}
	comment = strings.TrimSpace(comment)

	scaleLine, ok := next()
	if !ok {
		return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar, "missing scale line")
	}
	scale, err := strconv.ParseFloat(strings.TrimSpace(scaleLine), 64)
	if err != nil {
		return Structure{}, "", apperrors.Wrap(apperrors.CodeStructureBadPoscar, "parse scale factor", err)
	}

	var cell [3][3]float64
	for i := 0; i < 3; i++ {
		line, ok := next()
		if !ok {
			return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar, "missing lattice vector")
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar,
				fmt.Sprintf("lattice vector %d has %d fields", i+1, len(fields)))
		}
		for j := 0; j < 3; j++ {
			cell[i][j], err = strconv.ParseFloat(fields[j], 64)
			if err != nil {
				return Structure{}, "", apperrors.Wrap(apperrors.CodeStructureBadPoscar, "parse lattice vector", err)
			}
		}
	}
	lattice := NewLattice(cell)

	if scale < 0 {
		// Negative scale is a target volume.
		volume := lattice.Volume()
		if volume == 0 {
			return Structure{}, "", apperrors.New(apperrors.CodeStructureSingularCell, "zero-volume cell")
		}
		scale = math.Cbrt(-scale / volume)
	}
	if scale != 1 {
		lattice = lattice.Scale(scale)
	}

	symbolLine, ok := next()
	if !ok {
		return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar, "missing symbol line")
	}
	symbols := strings.Fields(symbolLine)
	if len(symbols) == 0 {
		return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar, "empty symbol line")
	}
	for _, symbol := range symbols {
		if !IsElement(symbol) {
			return Structure{}, "", apperrors.WithMetadata(
				apperrors.CodeCompositionInvalidSymbol,
				"unknown element symbol: "+symbol,
				map[string]string{"symbol": symbol},
			)
		}
	}

	countLine, ok := next()
	if !ok {
		return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar, "missing count line")
	}
	countFields := strings.Fields(countLine)
	if len(countFields) != len(symbols) {
		return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar,
			fmt.Sprintf("%d symbols but %d counts", len(symbols), len(countFields)))
	}
	counts := make([]int, len(countFields))
	total := 0
	for i, field := range countFields {
		counts[i], err = strconv.Atoi(field)
		if err != nil || counts[i] <= 0 {
			return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar, "invalid site count "+field)
		}
		total += counts[i]
	}

	modeLine, ok := next()
	if !ok {
		return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar, "missing coordinate mode")
	}
	mode := strings.TrimSpace(modeLine)
	if mode != "" && (mode[0] == 'S' || mode[0] == 's') {
		// Selective dynamics: the real mode follows.
		modeLine, ok = next()
		if !ok {
			return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar, "missing coordinate mode")
		}
		mode = strings.TrimSpace(modeLine)
	}
	if mode == "" {
		return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar, "empty coordinate mode")
	}
	cartesian := mode[0] == 'C' || mode[0] == 'c' || mode[0] == 'K' || mode[0] == 'k'

	sites := make([]Site, 0, total)
	for i, symbol := range symbols {
		for n := 0; n < counts[i]; n++ {
			line, ok := next()
			if !ok {
				return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar, "missing site coordinates")
			}
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return Structure{}, "", apperrors.New(apperrors.CodeStructureBadPoscar, "short coordinate line")
			}
			var p [3]float64
			for j := 0; j < 3; j++ {
				p[j], err = strconv.ParseFloat(fields[j], 64)
				if err != nil {
					return Structure{}, "", apperrors.Wrap(apperrors.CodeStructureBadPoscar, "parse coordinate", err)
				}
			}
			if cartesian {
				for j := range p {
					p[j] *= scale
				}
				p, err = lattice.Fractional(p)
				if err != nil {
					return Structure{}, "", err
				}
			}
			sites = append(sites, Site{Symbol: symbol, Frac: WrapFrac(p)})
		}
	}

	if err := scanner.Err(); err != nil {
		return Structure{}, "", apperrors.Wrap(apperrors.CodeStructureBadPoscar, "read POSCAR", err)
	}
	return Structure{Lattice: lattice, Sites: sites}, comment, nil
}

// WritePoscar writes a VASP 5 POSCAR in direct coordinates with unit scale.
// Sites are grouped by element in first-appearance order.
func WritePoscar(w io.Writer, s Structure, comment string) error {
	if len(s.Sites) == 0 {
		return apperrors.New(apperrors.CodeStructureNoSites, "structure has no sites")
	}
	if comment == "" {
		comment = "qmdb structure"
	}

	var order []string
	grouped := make(map[string][]Site)
	for _, site := range s.Sites {
		if _, seen := grouped[site.Symbol]; !seen {
			order = append(order, site.Symbol)
		}
		grouped[site.Symbol] = append(grouped[site.Symbol], site)
	}

	buf := &strings.Builder{}
	fmt.Fprintln(buf, comment)
	fmt.Fprintln(buf, "1.0")
	cell := s.Lattice.Cell()
	for i := 0; i < 3; i++ {
		fmt.Fprintf(buf, " %18.12f %18.12f %18.12f\n", cell[i][0], cell[i][1], cell[i][2])
	}
	fmt.Fprintln(buf, strings.Join(order, " "))
	counts := make([]string, len(order))
	for i, symbol := range order {
		counts[i] = strconv.Itoa(len(grouped[symbol]))
	}
	fmt.Fprintln(buf, strings.Join(counts, " "))
	fmt.Fprintln(buf, "Direct")
	for _, symbol := range order {
		for _, site := range grouped[symbol] {
			fmt.Fprintf(buf, " %18.12f %18.12f %18.12f\n", site.Frac[0], site.Frac[1], site.Frac[2])
		}
	}

	if _, err := io.WriteString(w, buf.String()); err != nil {
		return fmt.Errorf("write POSCAR: %w", err)
	}
	return nil
}
