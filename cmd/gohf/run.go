// run.go --  This file is part of goHF project.
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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/basis"
	"gohf/internal/chkfile"
	"gohf/internal/config"
	"gohf/internal/device"
	"gohf/internal/grad"
	"gohf/internal/hessian"
	"gohf/internal/logging"
	"gohf/internal/metrics"
	"gohf/internal/molecule"
	"gohf/internal/scf"
	"gohf/internal/xc"
)

type summary struct {
	Energy     float64
	Outcome    scf.Outcome
	// Quadrupole is in atomic units.
	Quadrupole [3][3]float64
	Gradient   *grad.Gradient
	Hessian    *hessian.Hessian
}

// report is the plain-text output file.
type report struct{ l *zap.Logger }

func (r report) printf(format string, args ...any) { r.l.Info(fmt.Sprintf(format, args...)) }
func (r report) delim()                            { r.l.Info(logging.Delimiter) }

// run performs the calculation of in and writes the report to out.
func run(ctx context.Context, in *config.Input, out, logPath string) (sum summary, err error) {
	cfg := in.Config
	log, err := logging.New(cfg.LogLevel, logPath)
	if err != nil {
		return sum, err
	}
	defer func() { _ = log.Sync() }()
	rl, err := logging.Report(out)
	if err != nil {
		return sum, err
	}
	defer func() { _ = rl.Sync() }()
	rep := report{rl}

	log.Info("starting gohf", zap.String("input", out))
	rep.printf("%s", logging.Banner)
	rep.printf("Input file content:")
	rep.delim()
	for _, l := range in.Lines {
		rep.printf("%s", l)
	}
	rep.delim()
	defer func() {
		if err != nil {
			rep.printf("Calculation failed: %v", err)
			log.Error("calculation failed", zap.Error(err))
		}
	}()

	mol := in.Mol
	lib, err := basis.Load(cfg.Basis)
	if err != nil {
		return sum, err
	}
	orb, err := basis.Build(mol, lib)
	if err != nil {
		return sum, err
	}
	var aux *basis.Set
	if cfg.Aux.Name != "" {
		alib, err := basis.Load(cfg.Aux.Name)
		if err != nil {
			return sum, err
		}
		if aux, err = basis.Build(mol, alib); err != nil {
			return sum, err
		}
	} else if aux, err = basis.EvenTempered(orb, cfg.Aux.Beta, cfg.Aux.LMax); err != nil {
		return sum, err
	}
	f, err := xc.Lookup(cfg.Method)
	if err != nil {
		return sum, err
	}
	rep.printf("Method: %s, basis: %s, %d basis functions, %d auxiliary functions", f.Name(), cfg.Basis, orb.NAO, aux.NAO)
	printGeometry(rep, mol)

	dev := device.New(cfg.Device.Name, cfg.Device.MemoryMB<<20, cfg.Device.Workers)
	arena, err := dev.Acquire(ctx, out)
	if err != nil {
		return sum, err
	}
	defer arena.Release()

	reg := prometheus.NewRegistry()
	calc := scf.NewCalc(mol, orb, aux, f, arena, cfg.SCF)
	calc.Log = log
	calc.Metrics = metrics.New(reg)
	if cfg.Checkpoint != "" {
		store, err := chkfile.Open(cfg.Checkpoint, log)
		if err != nil {
			return sum, err
		}
		defer store.Close()
		calc.Checkpoint = store
	}
	if cfg.MetricsFile != "" {
		defer func() {
			if werr := prometheus.WriteToTextfile(cfg.MetricsFile, reg); werr != nil {
				log.Warn("cannot write metrics", zap.Error(werr))
			}
		}()
	}

	t0 := time.Now()
	res, err := calc.Run(ctx)
	if err != nil {
		return sum, err
	}
	defer res.Close()
	sum.Energy, sum.Outcome = res.Energy, res.Outcome
	rep.delim()
	rep.printf("SCF %s after %d cycles (%s)", res.Outcome, res.Cycles, time.Since(t0).Round(time.Millisecond))
	rep.printf("One-electron energy:      %18.10f a.u.", res.Parts.One)
	rep.printf("Coulomb energy:           %18.10f a.u.", res.Parts.Coulomb)
	rep.printf("Exchange energy:          %18.10f a.u.", res.Parts.Exchange)
	if f.Family() != xc.FamilyHF {
		rep.printf("Exchange-correlation:     %18.10f a.u.", res.Parts.XC)
	}
	rep.printf("Nuclei Repulsion Energy:  %18.10f a.u.", res.NucNuc)
	rep.printf("Final total energy =      %18.10f a.u.", res.Energy)
	rep.delim()
	rep.printf("Orbital energies (a.u.), %d occupied:", res.NOcc)
	for i, e := range res.MOEnergy {
		occ := ""
		if i < res.NOcc {
			occ = "occ"
		}
		rep.printf("%4d %16.8f %s", i+1, e, occ)
	}
	rep.delim()
	q := res.Quadrupole()
	sum.Quadrupole = q
	rep.printf("Quadrupole moment about the origin (Debye*Angstrom):")
	for i, ax := range []string{"x", "y", "z"} {
		rep.printf("%-6s %14.6f %14.6f %14.6f", ax,
			q[i][0]*scf.DebyeAngstrom, q[i][1]*scf.DebyeAngstrom, q[i][2]*scf.DebyeAngstrom)
	}
	rep.delim()

	if res.Outcome != scf.OutcomeConverged {
		if cfg.SCF.WantGradient || cfg.SCF.WantHessian {
			rep.printf("Derivatives skipped: SCF %s", res.Outcome)
		}
		return sum, nil
	}
	if cfg.SCF.WantGradient {
		g, err := grad.Compute(ctx, res)
		if err != nil {
			return sum, err
		}
		sum.Gradient = g
		rep.printf("Nuclear gradient (Hartree/Bohr):")
		for a, v := range g.Total {
			rep.printf("%-6s %16.10f %16.10f %16.10f", mol.Atoms[a].Name, v[0], v[1], v[2])
		}
		rep.printf("Max component: %.3e", g.Norm())
		rep.delim()
	}
	if cfg.SCF.WantHessian {
		h, err := hessian.Compute(ctx, res, cfg.Hessian)
		if err != nil {
			return sum, err
		}
		sum.Hessian = h
		rep.printf("Nuclear Hessian (Hartree/Bohr^2):")
		rep.printf("%.6f", mat.Formatted(h.Matrix, mat.Squeeze()))
		rep.delim()
	}
	log.Info("gohf done", zap.Float64("energy", res.Energy), zap.String("outcome", string(res.Outcome)))
	return sum, nil
}

func printGeometry(rep report, mol *molecule.Molecule) {
	rep.printf("Geometry (Angstrom), charge %d, 2S %d:", mol.Charge, mol.Spin)
	for _, a := range mol.Atoms {
		rep.printf("%-6s %12.6f %12.6f %12.6f", a.Name,
			a.Coords[0]*molecule.BohrAngstrom, a.Coords[1]*molecule.BohrAngstrom, a.Coords[2]*molecule.BohrAngstrom)
	}
}
