// input.go --  This file is part of goHF project.
// Mirzaeva Irina, 2023
//
//	goHF is distributed in the hope that it will be useful,
//	but WITHOUT ANY WARRANTY; without even the implied warranty
//	of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
//	See the GNU General Public License for more details.
//
//	You should have received a copy of the GNU General Public License
//	along with this program.  If not, see http://www.gnu.org/licenses/
//
// ------------------------------------------------

package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"gohf/internal/errs"
	"gohf/internal/molecule"
)

// Input is a parsed input file: the molecule and the settings it selects.
type Input struct {
	Mol    *molecule.Molecule
	Config Config
	// Settings is the YAML file named by a "settings" line, if any.
	Settings string
	Lines    []string
}

// ReadLines returns the lines of a text file.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// ReadInput parses an input file. A "settings" line loads a YAML file
// first, relative paths resolved from the working directory; keywords of
// the input file then override it.
func ReadInput(path string) (*Input, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "config.ReadInput", err, "cannot read input file")
	}
	base := Default()
	if s := settingsFile(lines); s != "" {
		if base, err = Load(s); err != nil {
			return nil, err
		}
	}
	in, err := ParseInput(lines, base)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func settingsFile(lines []string) string {
	for _, l := range lines {
		w := strings.Fields(l)
		if len(w) > 1 && strings.ToLower(w[0]) == "settings" {
			return w[1]
		}
	}
	return ""
}

// ParseInput reads the block input format:
//
//	Atoms
//	O  0.000  0.000  0.000
//	H  0.757  0.586  0.000
//	end
//	Basis
//	6-31g
//	end
//	method pbe0
//	charge 0
//	spin 0
//	nprocs 4
//	direct
//	gradient
//	hessian
//
// Coordinates are in Angstrom. Keywords are case insensitive and override
// base. Blank lines and lines starting with # are ignored.
func ParseInput(lines []string, base Config) (*Input, error) {
	const op = "config.ParseInput"
	in := &Input{Config: base, Lines: lines}
	c := &in.Config
	var atoms []string
	haveAtoms := false
	for i := 0; i < len(lines); i++ {
		words := strings.Fields(lines[i])
		if len(words) == 0 || strings.HasPrefix(words[0], "#") {
			continue
		}
		key := strings.ToLower(words[0])
		switch key {
		case "atoms":
			end, err := blockEnd(lines, i, "Atoms")
			if err != nil {
				return nil, err
			}
			atoms = lines[i+1 : end]
			haveAtoms = true
			i = end
		case "basis":
			end, err := blockEnd(lines, i, "Basis")
			if err != nil {
				return nil, err
			}
			for _, l := range lines[i+1 : end] {
				if w := strings.Fields(l); len(w) > 0 {
					c.Basis = strings.ToLower(w[0])
					break
				}
			}
			i = end
		case "method", "functional":
			if err := need(words, 2, i); err != nil {
				return nil, err
			}
			c.Method = strings.ToLower(words[1])
		case "charge", "spin", "nprocs", "maxcycle":
			if err := need(words, 2, i); err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(words[1])
			if err != nil {
				return nil, errs.Wrap(errs.KindInvalidInput, op, err, "line %d", i+1)
			}
			switch key {
			case "charge":
				c.Charge = n
			case "spin":
				c.Spin = n
			case "nprocs":
				c.Device.Workers = n
			case "maxcycle":
				c.SCF.MaxCycle = n
			}
		case "direct":
			c.SCF.Direct = true
		case "gradient":
			c.SCF.WantGradient = true
		case "hessian":
			c.SCF.WantHessian = true
		case "guess":
			if err := need(words, 2, i); err != nil {
				return nil, err
			}
			c.SCF.Guess = strings.ToLower(words[1])
		case "checkpoint":
			if err := need(words, 2, i); err != nil {
				return nil, err
			}
			c.Checkpoint = words[1]
		case "settings":
			if err := need(words, 2, i); err != nil {
				return nil, err
			}
			in.Settings = words[1]
		default:
			return nil, errs.New(errs.KindInvalidInput, op, "line %d: unknown keyword %q", i+1, words[0])
		}
	}
	if !haveAtoms {
		return nil, errs.New(errs.KindInvalidInput, op, "no Atoms block found")
	}
	mol, err := molecule.ParseAtoms(atoms)
	if err != nil {
		return nil, err
	}
	mol.Charge, mol.Spin = c.Charge, c.Spin
	in.Mol = mol
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}

func blockEnd(lines []string, start int, name string) (int, error) {
	for i := start + 1; i < len(lines); i++ {
		if w := strings.Fields(lines[i]); len(w) > 0 && strings.ToLower(w[0]) == "end" {
			return i, nil
		}
	}
	return 0, errs.New(errs.KindInvalidInput, "config.ParseInput", "no end of block %s", name)
}

func need(words []string, n, line int) error {
	if len(words) < n {
		return errs.New(errs.KindInvalidInput, "config.ParseInput", "line %d: %s needs a value", line+1, words[0])
	}
	return nil
}
