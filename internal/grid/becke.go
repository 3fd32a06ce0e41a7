// becke.go --  This file is part of goHF project.
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

// Package grid builds Becke molecular integration grids and evaluates basis
// functions on them.
package grid

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"gohf/internal/errs"
	"gohf/internal/molecule"
)

// Options set the size of the atomic grids.
type Options struct {
	Radial int `yaml:"radial" validate:"gte=10"`
	// Theta is the number of Gauss-Legendre nodes in cos θ; φ gets twice as
	// many uniform nodes.
	Theta int `yaml:"theta" validate:"gte=4"`
}

func DefaultOptions() Options { return Options{Radial: 60, Theta: 14} }

// Coarse is the smaller grid used for the nonlocal correction.
func Coarse() Options { return Options{Radial: 40, Theta: 10} }

// Grid is a set of weighted points. Every point belongs to one atomic grid
// and moves rigidly with that atom.
type Grid struct {
	Coords  [][3]float64
	Weights []float64
	Atom    []int
	raw     []float64
	centers [][3]float64
}

func (g *Grid) Len() int { return len(g.Coords) }

// braggRadius in Angstrom; Becke halves it except for hydrogen.
var braggRadius = map[int]float64{
	1: 0.35, 2: 0.35, 3: 1.45, 4: 1.05, 5: 0.85, 6: 0.70, 7: 0.65, 8: 0.60, 9: 0.50, 10: 0.45,
	11: 1.80, 12: 1.50, 13: 1.25, 14: 1.10, 15: 1.00, 16: 1.00, 17: 1.00, 18: 1.00,
}

func atomRadius(z int) float64 {
	r, ok := braggRadius[z]
	if !ok {
		r = 1.35
	}
	if z != 1 {
		r *= 0.5
	}
	return r / molecule.BohrAngstrom
}

// Build returns the Becke grid of mol.
func Build(mol *molecule.Molecule, opts Options) (*Grid, error) {
	if opts.Radial < 2 || opts.Theta < 2 {
		return nil, errs.New(errs.KindInvalidInput, "grid.Build", "grid too small: %d radial, %d theta", opts.Radial, opts.Theta)
	}
	ang := angular(opts.Theta)
	g := &Grid{}
	for _, a := range mol.Atoms {
		g.centers = append(g.centers, a.Coords)
	}
	for ia, a := range mol.Atoms {
		R := atomRadius(a.Z)
		n := opts.Radial
		for i := 1; i <= n; i++ {
			t := float64(i) * math.Pi / float64(n+1)
			x := math.Cos(t)
			// Gauss-Chebyshev of the second kind, r = R(1+x)/(1-x)
			wx := math.Pi / float64(n+1) * math.Sin(t) * math.Sin(t) / math.Sqrt(1-x*x)
			r := R * (1 + x) / (1 - x)
			wr := wx * 2 * R / ((1 - x) * (1 - x)) * r * r
			for _, p := range ang {
				pt := [3]float64{a.Coords[0] + r*p[0], a.Coords[1] + r*p[1], a.Coords[2] + r*p[2]}
				raw := wr * p[3]
				w := raw * partition(g.centers, ia, pt)
				if raw == 0 {
					continue
				}
				g.Coords = append(g.Coords, pt)
				g.Weights = append(g.Weights, w)
				g.Atom = append(g.Atom, ia)
				g.raw = append(g.raw, raw)
			}
		}
	}
	return g, nil
}

// angular returns unit vectors and weights summing to 4π.
func angular(ntheta int) [][4]float64 {
	xs := make([]float64, ntheta)
	ws := make([]float64, ntheta)
	quad.Legendre{}.FixedLocations(xs, ws, -1, 1)
	nphi := 2 * ntheta
	var out [][4]float64
	for i, ct := range xs {
		st := math.Sqrt(1 - ct*ct)
		for j := 0; j < nphi; j++ {
			phi := 2 * math.Pi * float64(j) / float64(nphi)
			out = append(out, [4]float64{st * math.Cos(phi), st * math.Sin(phi), ct, ws[i] * 2 * math.Pi / float64(nphi)})
		}
	}
	return out
}

func dist(a, b [3]float64) float64 {
	return math.Sqrt((a[0]-b[0])*(a[0]-b[0]) + (a[1]-b[1])*(a[1]-b[1]) + (a[2]-b[2])*(a[2]-b[2]))
}

// cell is Becke's s(μ) = ½(1 - f(f(f(μ)))) and ds/dμ.
func cell(mu float64) (float64, float64) {
	f, df := mu, 1.0
	for k := 0; k < 3; k++ {
		df *= 1.5 * (1 - f*f)
		f = 1.5*f - 0.5*f*f*f
	}
	return 0.5 * (1 - f), -0.5 * df
}

func partition(centers [][3]float64, owner int, r [3]float64) float64 {
	n := len(centers)
	if n == 1 {
		return 1
	}
	u := make([]float64, n)
	for b := range centers {
		u[b] = dist(r, centers[b])
	}
	z, pa := 0.0, 0.0
	for b := 0; b < n; b++ {
		p := 1.0
		for c := 0; c < n && p != 0; c++ {
			if c == b {
				continue
			}
			s, _ := cell((u[b] - u[c]) / dist(centers[b], centers[c]))
			p *= s
		}
		z += p
		if b == owner {
			pa = p
		}
	}
	if z == 0 {
		return 0
	}
	return pa / z
}

// WeightGrad writes ∂w_i/∂R_X for every atom X into out, with point i moving
// rigidly with its own atom.
func (g *Grid) WeightGrad(i int, out [][3]float64) {
	for x := range out {
		out[x] = [3]float64{}
	}
	n := len(g.centers)
	if n == 1 {
		return
	}
	owner := g.Atom[i]
	r := g.Coords[i]
	u := make([]float64, n)
	eu := make([][3]float64, n)
	for b := 0; b < n; b++ {
		u[b] = dist(r, g.centers[b])
		for k := 0; k < 3; k++ {
			if u[b] > 0 {
				eu[b][k] = (r[k] - g.centers[b][k]) / u[b]
			}
		}
	}
	// dμ_BC/dR_X as a function writing into acc with a scale.
	addDmu := func(b, c int, scale float64, acc [][3]float64) {
		rbc := dist(g.centers[b], g.centers[c])
		mu := (u[b] - u[c]) / rbc
		for k := 0; k < 3; k++ {
			ebc := (g.centers[b][k] - g.centers[c][k]) / rbc
			// u_B moves with the owner and against atom B
			acc[owner][k] += scale * (eu[b][k] - eu[c][k]) / rbc
			acc[b][k] -= scale * eu[b][k] / rbc
			acc[c][k] += scale * eu[c][k] / rbc
			// R_BC
			acc[b][k] -= scale * mu * ebc / rbc
			acc[c][k] += scale * mu * ebc / rbc
		}
	}
	p := make([]float64, n)
	dp := make([][][3]float64, n)
	z := 0.0
	for b := 0; b < n; b++ {
		dp[b] = make([][3]float64, n)
		s := make([]float64, n)
		ds := make([]float64, n)
		p[b] = 1
		for c := 0; c < n; c++ {
			if c == b {
				continue
			}
			s[c], ds[c] = cell((u[b] - u[c]) / dist(g.centers[b], g.centers[c]))
			p[b] *= s[c]
		}
		for c := 0; c < n; c++ {
			if c == b || ds[c] == 0 {
				continue
			}
			rest := ds[c]
			for d := 0; d < n; d++ {
				if d != b && d != c {
					rest *= s[d]
				}
			}
			if rest != 0 {
				addDmu(b, c, rest, dp[b])
			}
		}
		z += p[b]
	}
	if z == 0 {
		return
	}
	raw := g.raw[i]
	for x := 0; x < n; x++ {
		for k := 0; k < 3; k++ {
			dz := 0.0
			for b := 0; b < n; b++ {
				dz += dp[b][x][k]
			}
			out[x][k] = raw * (dp[owner][x][k]/z - p[owner]*dz/(z*z))
		}
	}
}
