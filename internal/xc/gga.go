// gga.go --  This file is part of goHF project.
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

const (
	pbeKappa = 0.804
	pbeMu    = 0.2195149727645171
	pbeBeta  = 0.06672455060314922
)

var pbeGamma = (1 - math.Ln2) / (math.Pi * math.Pi)

// pbeX is PBE exchange, e = e_x^LDA F(p) with p = s².
func pbeX(rho, sigma float64) (float64, float64, float64) {
	el, vl, _ := slater(rho, 0)
	c := 4 * math.Pow(3*math.Pi*math.Pi, 2.0/3) * math.Pow(rho, 8.0/3)
	p := sigma / c
	den := 1 + pbeMu*p/pbeKappa
	f := 1 + pbeKappa - pbeKappa/den
	df := pbeMu / (den * den)
	vrho := vl*f + el*df*(-8.0/3*p/rho)
	vsigma := el * df / c
	return el * f, vrho, vsigma
}

// PW92 parameters of the paramagnetic gas.
const (
	pwA  = 0.0310907
	pwA1 = 0.21370
	pwB1 = 7.5957
	pwB2 = 3.5876
	pwB3 = 1.6382
	pwB4 = 0.49294
)

// pw92 returns ε_c(rs) and dε_c/drs.
func pw92(rs float64) (float64, float64) {
	srs := math.Sqrt(rs)
	q0 := -2 * pwA * (1 + pwA1*rs)
	q1 := 2 * pwA * (pwB1*srs + pwB2*rs + pwB3*rs*srs + pwB4*rs*rs)
	dq1 := pwA * (pwB1/srs + 2*pwB2 + 3*pwB3*srs + 4*pwB4*rs)
	lg := math.Log(1 + 1/q1)
	return q0 * lg, -2*pwA*pwA1*lg - q0*dq1/(q1*q1+q1)
}

// pbeC is PBE correlation, e = ρ(ε_c + H(ε_c, t²)).
func pbeC(rho, sigma float64) (float64, float64, float64) {
	rs := rsOf(rho)
	eps, deps := pw92(rs)
	depsdr := deps * (-rs / (3 * rho))

	kf := math.Cbrt(3 * math.Pi * math.Pi * rho)
	dydsigma := math.Pi / (16 * kf * rho * rho)
	y := sigma * dydsigma

	bg := pbeBeta / pbeGamma
	ex := math.Exp(-eps / pbeGamma)
	aa := bg / (ex - 1)
	daa := bg * ex / (pbeGamma * (ex - 1) * (ex - 1))

	num := 1 + aa*y
	den := 1 + aa*y + aa*aa*y*y
	z := bg * y * num / den
	dzdy := bg * ((1+2*aa*y)*den - y*num*(aa+2*aa*aa*y)) / (den * den)
	dzda := bg * y * y * (den - num*(1+2*aa*y)) / (den * den)
	h := pbeGamma * math.Log(1+z)
	dh := pbeGamma / (1 + z)

	dhdr := dh * (dzda*daa*depsdr + dzdy*(-7.0/3*y/rho))
	vrho := eps + h + rho*(depsdr+dhdr)
	vsigma := rho * dh * dzdy * dydsigma
	return rho * (eps + h), vrho, vsigma
}
