// config_test.go --  This file is part of goHF project.
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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gohf/internal/errs"
	"gohf/internal/molecule"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
}

func TestRoundTrip(t *testing.T) {
	c := Default()
	c.Method = "pbe0"
	c.Basis = "6-31g"
	c.SCF.Direct = true
	c.SCF.SchwarzTol = 1e-10
	c.SCF.XC.Grid.Radial = 75
	c.Hessian.CPHFTol = 1e-8
	c.Device.Workers = 4

	data, err := c.Marshal()
	require.NoError(t, err)
	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestParseKeepsDefaults(t *testing.T) {
	c, err := Parse([]byte("method: svwn\nscf:\n  max_cycle: 80\n"))
	require.NoError(t, err)
	assert.Equal(t, "svwn", c.Method)
	assert.Equal(t, 80, c.SCF.MaxCycle)
	assert.Equal(t, Default().SCF.ConvTol, c.SCF.ConvTol)
	assert.Equal(t, Default().Hessian, c.Hessian)

	c, err = Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown key":     "methd: hf\n",
		"bad level":       "log_level: loud\n",
		"bad guess":       "scf:\n  guess: random\n",
		"zero cycles":     "scf:\n  max_cycle: 0\n",
		"damp one":        "scf:\n  damp: 1\n",
		"small grid":      "scf:\n  xc:\n    grid:\n      radial: 3\n",
		"aux beta":        "aux:\n  beta: 0.5\n",
		"cphf tol":        "hessian:\n  cphf_tol: 0\n",
		"not yaml":        "method: [\n",
		"negative spin":   "spin: -2\n",
		"no device name":  "device:\n  name: \"\"\n",
		"retained over 1": "scf:\n  df:\n    min_retained: 1.5\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, errs.ErrInvalidInput)
		})
	}
}

func TestValidateNamesField(t *testing.T) {
	c := Default()
	c.SCF.DIISSpace = 0
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DIISSpace")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("basis: 6-31g\n"), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "6-31g", c.Basis)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

const waterInput = `# water
Atoms
O   0.000000  -0.075791   0.000000
H   0.866812   0.601436   0.000000
H  -0.866812   0.601436   0.000000
end
Basis
STO-3G
end
method PBE0
nprocs 2
direct
gradient
`

func TestParseInput(t *testing.T) {
	in, err := ParseInput(strings.Split(waterInput, "\n"), Default())
	require.NoError(t, err)
	require.Equal(t, 3, in.Mol.NAtoms())
	assert.Equal(t, 8, in.Mol.Atoms[0].Z)
	assert.InDelta(t, 0.866812/molecule.BohrAngstrom, in.Mol.Atoms[1].Coords[0], 1e-12)
	assert.Equal(t, "sto-3g", in.Config.Basis)
	assert.Equal(t, "pbe0", in.Config.Method)
	assert.Equal(t, 2, in.Config.Device.Workers)
	assert.True(t, in.Config.SCF.Direct)
	assert.True(t, in.Config.SCF.WantGradient)
	assert.False(t, in.Config.SCF.WantHessian)
}

func TestParseInputCharge(t *testing.T) {
	lines := []string{"Atoms", "H 0 0 0", "H 0 0 0.74", "end", "charge 1", "spin 1"}
	in, err := ParseInput(lines, Default())
	require.NoError(t, err)
	assert.Equal(t, 1, in.Mol.Charge)
	assert.Equal(t, 1, in.Mol.Spin)
}

func TestParseInputErrors(t *testing.T) {
	for name, lines := range map[string][]string{
		"no atoms":      {"Basis", "sto-3g", "end"},
		"open block":    {"Atoms", "H 0 0 0"},
		"bad element":   {"Atoms", "Xx 0 0 0", "end"},
		"bad keyword":   {"Atoms", "H 0 0 0", "end", "frobnicate"},
		"bad charge":    {"Atoms", "H 0 0 0", "end", "charge one"},
		"missing value": {"Atoms", "H 0 0 0", "end", "method"},
		"invalid guess": {"Atoms", "H 0 0 0", "end", "guess magic"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInput(lines, Default())
			assert.ErrorIs(t, err, errs.ErrInvalidInput)
		})
	}
}

func TestReadInputWithSettings(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(settings, []byte("method: svwn\nscf:\n  max_cycle: 70\n"), 0o644))
	inp := filepath.Join(dir, "h2.inp")
	doc := "settings " + settings + "\nAtoms\nH 0 0 0\nH 0 0 0.74\nend\nmethod hf\n"
	require.NoError(t, os.WriteFile(inp, []byte(doc), 0o644))

	in, err := ReadInput(inp)
	require.NoError(t, err)
	assert.Equal(t, "hf", in.Config.Method)
	assert.Equal(t, 70, in.Config.SCF.MaxCycle)
	assert.Equal(t, settings, in.Settings)
}
