// direct.go --  This file is part of goHF project.
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

package grad

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"gohf/internal/device"
	"gohf/internal/integral"
	"gohf/internal/scf"
)

// direct differentiates the four-centre integrals over the unique shell
// quartets i≥j, k≥l, ij≥kl, each weighted by its permutation count.
func direct(ctx context.Context, c *scf.Calc, dm *mat.SymDense) ([][3]float64, error) {
	eng, err := integral.NewEngine(c.Orb, nil, 1)
	if err != nil {
		return nil, err
	}
	sr, lr := exchangeFactors(c)
	g, err := quartets(ctx, c.Arena, eng, c.Mol.NAtoms(), dm, 1, sr)
	if err != nil || lr == 0 {
		return g, err
	}
	glr, err := quartets(ctx, c.Arena, eng.Attenuated(c.Mix().Omega), c.Mol.NAtoms(), dm, 0, lr)
	if err != nil {
		return nil, err
	}
	add(g, glr)
	return g, nil
}

func quartets(ctx context.Context, arena *device.Arena, eng *integral.Engine, natm int, dm *mat.SymDense, jfac, kfac float64) ([][3]float64, error) {
	nao := eng.Orb.NAO
	d := dense(dm)
	gamma := func(a, b, c, e int) float64 {
		v := 0.5 * jfac * d[a*nao+b] * d[c*nao+e]
		if kfac != 0 {
			v -= 0.125 * kfac * (d[a*nao+c]*d[b*nao+e] + d[a*nao+e]*d[b*nao+c])
		}
		return v
	}
	type pair struct{ i, j int }
	var pairs []pair
	for i := range eng.Orb.Shells {
		for j := 0; j <= i; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}
	parts := make([][][3]float64, arena.Workers())
	for w := range parts {
		parts[w] = zeros(natm)
	}
	_, err := arena.LaunchPartial(ctx, len(pairs), func(w, ij int) error {
		i, j := pairs[ij].i, pairs[ij].j
		for kl := 0; kl <= ij; kl++ {
			k, l := pairs[kl].i, pairs[kl].j
			fac := 1.0
			if i != j {
				fac *= 2
			}
			if k != l {
				fac *= 2
			}
			if ij != kl {
				fac *= 2
			}
			weight := func(a, b, c, e int) float64 { return fac * gamma(a, b, c, e) }
			if err := eng.Grad4c(i, j, k, l, weight, parts[w]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	g := zeros(natm)
	for _, p := range parts {
		add(g, p)
	}
	return g, nil
}
