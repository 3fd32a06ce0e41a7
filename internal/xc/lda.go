// lda.go --  This file is part of goHF project.
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

package xc

import "math"

var cx = 0.75 * math.Cbrt(3/math.Pi)

// slater is the LDA exchange of the uniform gas.
func slater(rho, _ float64) (float64, float64, float64) {
	r13 := math.Cbrt(rho)
	return -cx * rho * r13, -4.0 / 3 * cx * r13, 0
}

// slaterSR is short-range (erfc-attenuated) LDA exchange,
// e = e_x F(a) with a = ω / (2 k_F).
func slaterSR(rho, omega float64) (float64, float64, float64) {
	e, v, _ := slater(rho, 0)
	kf := math.Cbrt(3 * math.Pi * math.Pi * rho)
	a := omega / (2 * kf)
	f, df := attenuation(a)
	dadr := -a / (3 * rho)
	return e * f, v*f + e*df*dadr, 0
}

// attenuation is F(a) = 1 - 8a/3 [√π erf(1/2a) + (2a - 4a³)e^{-1/4a²} - 3a + 4a³]
// and dF/da; an asymptotic series replaces it for large a.
func attenuation(a float64) (float64, float64) {
	if a >= 10 {
		a2 := a * a
		f := 1/(36*a2) - 1/(960*a2*a2) + 1/(26880*a2*a2*a2)
		df := -2/(36*a2*a) + 4/(960*a2*a2*a) - 6/(26880*a2*a2*a2*a)
		return f, df
	}
	if a < 1e-12 {
		return 1, -8.0 / 3 * math.Sqrt(math.Pi)
	}
	a2, a3 := a*a, a*a*a
	ex := math.Exp(-1 / (4 * a2))
	g := math.Sqrt(math.Pi)*math.Erf(1/(2*a)) + (2*a-4*a3)*ex - 3*a + 4*a3
	dg := 12*a2*(1-ex) - 3
	return 1 - 8.0/3*a*g, -8.0 / 3 * (g + a*dg)
}

// VWN5 parameters of the paramagnetic gas.
const (
	vwnA  = 0.0310907
	vwnB  = 3.72744
	vwnC  = 12.9352
	vwnX0 = -0.10498
)

func rsOf(rho float64) float64 { return math.Cbrt(3 / (4 * math.Pi * rho)) }

func vwnEps(x float64) (float64, float64) {
	X := func(x float64) float64 { return x*x + vwnB*x + vwnC }
	q := math.Sqrt(4*vwnC - vwnB*vwnB)
	xx, x0x := X(x), X(vwnX0)
	at := math.Atan(q / (2*x + vwnB))
	k := vwnB * vwnX0 / x0x
	eps := vwnA * (math.Log(x*x/xx) + 2*vwnB/q*at -
		k*(math.Log((x-vwnX0)*(x-vwnX0)/xx)+2*(vwnB+2*vwnX0)/q*at))
	dxx := (2*x + vwnB) / xx
	deps := vwnA * (2/x - dxx - vwnB/xx -
		k*(2/(x-vwnX0)-dxx-(vwnB+2*vwnX0)/xx))
	return eps, deps
}

// vwn5 is the VWN5 correlation; v = ε - (x/6) dε/dx with x = √rs.
func vwn5(rho, _ float64) (float64, float64, float64) {
	x := math.Sqrt(rsOf(rho))
	eps, deps := vwnEps(x)
	return rho * eps, eps - x/6*deps, 0
}
