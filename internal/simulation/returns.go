package simulation

import (
	"math"
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wealthsim/retirement-simulator/internal/domain"
)

// YearDraw holds one simulated year's market conditions: one nominal return
// per configured account class and a single inflation rate shared by every
// account in that year.
type YearDraw struct {
	Returns   map[string]decimal.Decimal
	Inflation decimal.Decimal
}

// TrialReturns produces the year-by-year draw sequence for one trial.
// It is owned by a single trial and must not be shared.
type TrialReturns interface {
	Next() YearDraw
}

// ReturnGenerator hands out an independent, reproducible draw sequence per
// trial. Same seed and configuration yield bit-identical sequences whether
// trials run sequentially or in parallel.
type ReturnGenerator interface {
	Trial(trialIndex int) TrialReturns
	HasClass(class string) bool
}

// ClassDistribution holds the annual return distribution for one account class.
type ClassDistribution struct {
	Mean   decimal.Decimal
	StdDev decimal.Decimal
}

// NormalReturnGenerator samples class returns from normal distributions via
// the Box-Muller transform, optionally correlated through a Cholesky factor,
// and inflation from a mean-reverting (Ornstein-Uhlenbeck) process.
type NormalReturnGenerator struct {
	classes   map[string]ClassDistribution
	order     []string    // sorted class names, fixes the draw order
	chol      [][]float64 // lower-triangular factor, nil when uncorrelated
	inflation domain.InflationAssumptions
	seed      int64
}

// NewNormalReturnGenerator validates the distribution setup and builds a
// generator. The correlation matrix, when non-nil, must be square with one
// row per class in sorted-name order, symmetric, with unit diagonal, and
// positive definite.
func NewNormalReturnGenerator(classes map[string]ClassDistribution, correlations [][]float64, inflation domain.InflationAssumptions, seed int64) (*NormalReturnGenerator, error) {
	if len(classes) == 0 {
		return nil, configErrorf("return_classes", "at least one account class distribution is required")
	}

	order := make([]string, 0, len(classes))
	for name, dist := range classes {
		if dist.StdDev.IsNegative() {
			return nil, configErrorf("return_classes."+name+".std_dev", "must be >= 0, got %s", dist.StdDev)
		}
		order = append(order, name)
	}
	sort.Strings(order)

	if inflation.StdDev.IsNegative() {
		return nil, configErrorf("inflation.std_dev", "must be >= 0, got %s", inflation.StdDev)
	}
	if inflation.ReversionSpeed.IsNegative() || inflation.ReversionSpeed.GreaterThan(decimal.NewFromInt(1)) {
		return nil, configErrorf("inflation.reversion_speed", "must be in [0, 1], got %s", inflation.ReversionSpeed)
	}

	var chol [][]float64
	if correlations != nil {
		var err error
		chol, err = choleskyFactor(correlations, order)
		if err != nil {
			return nil, err
		}
	}

	return &NormalReturnGenerator{
		classes:   classes,
		order:     order,
		chol:      chol,
		inflation: inflation,
		seed:      seed,
	}, nil
}

// HasClass reports whether a distribution is configured for class.
func (g *NormalReturnGenerator) HasClass(class string) bool {
	_, ok := g.classes[class]
	return ok
}

// Trial derives an independent random stream for one trial index. The
// derivation depends only on (seed, trialIndex), so any trial can be re-run
// in isolation and parallel execution cannot perturb the draws.
func (g *NormalReturnGenerator) Trial(trialIndex int) TrialReturns {
	rng := rand.New(rand.NewSource(mixSeed(g.seed, int64(trialIndex))))
	return &normalTrialReturns{
		gen:       g,
		rng:       rng,
		inflation: g.inflation.Mean,
	}
}

type normalTrialReturns struct {
	gen       *NormalReturnGenerator
	rng       *rand.Rand
	inflation decimal.Decimal // current level of the mean-reverting process
}

func (t *normalTrialReturns) Next() YearDraw {
	g := t.gen

	// One standard normal per class, in fixed sorted order.
	z := make([]float64, len(g.order))
	for i := range z {
		z[i] = standardNormal(t.rng)
	}
	if g.chol != nil {
		z = applyCholesky(g.chol, z)
	}

	returns := make(map[string]decimal.Decimal, len(g.order))
	for i, name := range g.order {
		dist := g.classes[name]
		shock := decimal.NewFromFloat(z[i])
		returns[name] = dist.Mean.Add(shock.Mul(dist.StdDev))
	}

	// Mean-reverting inflation: the level drifts back toward the long-run
	// mean at the configured speed, plus a fresh normal shock.
	shock := decimal.NewFromFloat(standardNormal(t.rng)).Mul(g.inflation.StdDev)
	drift := g.inflation.Mean.Sub(t.inflation).Mul(g.inflation.ReversionSpeed)
	t.inflation = t.inflation.Add(drift).Add(shock)

	return YearDraw{Returns: returns, Inflation: t.inflation}
}

// standardNormal draws one N(0,1) sample using the Box-Muller transform.
func standardNormal(rng *rand.Rand) float64 {
	u1 := rng.Float64()
	u2 := rng.Float64()
	if u1 < 1e-12 {
		u1 = 1e-12
	}
	return math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
}

// mixSeed combines the global seed with a trial index using a splitmix64
// round so adjacent indices do not yield overlapping streams.
func mixSeed(seed, trialIndex int64) int64 {
	x := uint64(seed) + uint64(trialIndex)*0x9E3779B97F4A7C15
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return int64(x)
}

// choleskyFactor decomposes a correlation matrix into its lower-triangular
// factor, rejecting matrices that are not valid correlation structures.
func choleskyFactor(corr [][]float64, order []string) ([][]float64, error) {
	n := len(order)
	if len(corr) != n {
		return nil, configErrorf("correlations", "matrix must have %d rows (one per class), got %d", n, len(corr))
	}
	for i, row := range corr {
		if len(row) != n {
			return nil, configErrorf("correlations", "row %d must have %d columns, got %d", i, n, len(row))
		}
		if math.Abs(row[i]-1.0) > 1e-9 {
			return nil, configErrorf("correlations", "diagonal entry for class %q must be 1.0, got %g", order[i], row[i])
		}
		for j := 0; j < i; j++ {
			if math.Abs(row[j]-corr[j][i]) > 1e-9 {
				return nil, configErrorf("correlations", "matrix must be symmetric: [%d][%d]=%g but [%d][%d]=%g", i, j, row[j], j, i, corr[j][i])
			}
		}
	}

	c := make([][]float64, n)
	for i := range c {
		c[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := corr[i][j]
			for k := 0; k < j; k++ {
				sum -= c[i][k] * c[j][k]
			}
			if i == j {
				if sum <= 0 {
					return nil, configErrorf("correlations", "matrix is not positive definite")
				}
				c[i][j] = math.Sqrt(sum)
			} else {
				c[i][j] = sum / c[j][j]
			}
		}
	}
	return c, nil
}

// applyCholesky maps independent standard normals to correlated ones.
func applyCholesky(chol [][]float64, z []float64) []float64 {
	out := make([]float64, len(z))
	for i := range chol {
		var sum float64
		for j := 0; j <= i; j++ {
			sum += chol[i][j] * z[j]
		}
		out[i] = sum
	}
	return out
}
