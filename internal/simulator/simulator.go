// Package simulator synthesizes technical doublets from pairs of real cells.
// The synthetic population is classifier input only; it is never reported as
// part of the real-cell results.
package simulator

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/scgenomics/doubletect/internal/conf"
	"github.com/scgenomics/doubletect/internal/errors"
	"github.com/scgenomics/doubletect/internal/logging"
	"golang.org/x/sync/errgroup"
)

var (
	serviceLogger *slog.Logger
	initOnce      sync.Once
)

// GetLogger returns the simulator package logger.
func GetLogger() *slog.Logger {
	initOnce.Do(func() {
		serviceLogger = logging.ForService("simulator")
	})
	return serviceLogger
}

// Simulator generates synthetic doublets according to the configured
// combination mode and depth multiplier.
type Simulator struct {
	settings conf.SimulationSettings
	rng      *rand.Rand
}

// New creates a Simulator. A zero seed falls back to the current time, a
// fixed seed makes runs reproducible.
func New(settings conf.SimulationSettings) *Simulator {
	seed := settings.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		settings: settings,
		rng:      rand.New(rand.NewSource(seed)), //nolint:gosec // simulation randomness, not security
	}
}

// pairPlan fixes the randomness for one synthetic doublet up front so the
// combination step can run on any worker without changing results.
type pairPlan struct {
	a, b  int
	depth float64
	seed  int64
}

// Simulate produces round(ratio * len(counts)) synthetic doublets from random
// cell pairs. The returned rows align with the input gene order.
func (s *Simulator) Simulate(ctx context.Context, counts [][]float32, ratio float64) ([][]float32, error) {
	if len(counts) < 2 {
		return nil, errors.Newf("simulate: need at least 2 real cells, got %d", len(counts)).
			Component("simulator").
			Category(errors.CategoryValidation).
			Build()
	}
	if ratio <= 0 {
		return nil, errors.Newf("simulate: doublet ratio must be > 0, got %g", ratio).
			Component("simulator").
			Category(errors.CategorySimulation).
			Build()
	}
	genes := len(counts[0])
	for i, row := range counts {
		if len(row) != genes {
			return nil, errors.Newf("simulate: cell %d has %d genes, want %d", i, len(row), genes).
				Component("simulator").
				Category(errors.CategoryValidation).
				Build()
		}
	}

	numDoublets := int(math.Round(ratio * float64(len(counts))))
	if numDoublets < 1 {
		numDoublets = 1
	}

	// Draw all pair indices, depths and per-doublet seeds from the single
	// source RNG first; workers then combine deterministically.
	plans := make([]pairPlan, numDoublets)
	for d := range plans {
		a := s.rng.Intn(len(counts))
		b := s.rng.Intn(len(counts) - 1)
		if b >= a {
			b++
		}
		depth := s.settings.DoubletDepth
		if s.settings.RandomizeSize && depth > 1 {
			depth = 1 + s.rng.Float64()*(depth-1)
		}
		plans[d] = pairPlan{a: a, b: b, depth: depth, seed: s.rng.Int63()}
	}

	doublets := make([][]float32, numDoublets)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(min(runtime.NumCPU(), 8))
	for d, plan := range plans {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			row, err := s.combine(counts[plan.a], counts[plan.b], plan)
			if err != nil {
				return err
			}
			doublets[d] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err).Component("simulator").Category(errors.CategorySimulation).Build()
	}

	GetLogger().Info("synthesized doublets",
		"real_cells", len(counts),
		"doublets", numDoublets,
		"mode", s.settings.DoubletType)
	return doublets, nil
}

// combine merges one cell pair into a doublet profile at the planned depth.
func (s *Simulator) combine(a, b []float32, plan pairPlan) ([]float32, error) {
	combined := make([]float64, len(a))
	combinedTotal := 0.0
	depthA, depthB := 0.0, 0.0
	for g := range a {
		combined[g] = float64(a[g]) + float64(b[g])
		combinedTotal += combined[g]
		depthA += float64(a[g])
		depthB += float64(b[g])
	}
	if combinedTotal == 0 {
		return nil, errors.Newf("simulate: cell pair (%d,%d) has zero total counts", plan.a, plan.b).
			Component("simulator").
			Category(errors.CategorySimulation).
			Build()
	}

	// The depth multiplier is relative to the average depth of the
	// constituents; sum mode keeps the combined mass instead.
	avgDepth := (depthA + depthB) / 2

	out := make([]float32, len(a))
	switch s.settings.DoubletType {
	case "sum":
		scale := plan.depth * (depthA + depthB) / combinedTotal
		for g := range combined {
			out[g] = float32(combined[g] * scale)
		}
	case "average":
		scale := plan.depth * avgDepth / combinedTotal
		for g := range combined {
			out[g] = float32(combined[g] * scale)
		}
	case "multinomial":
		draws := int(math.Round(plan.depth * avgDepth))
		sampled := multinomial(rand.New(rand.NewSource(plan.seed)), combined, combinedTotal, draws) //nolint:gosec // simulation randomness
		copy(out, sampled)
	default:
		return nil, errors.Newf("simulate: unknown doublet type %q", s.settings.DoubletType).
			Component("simulator").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return out, nil
}

// multinomial draws `draws` counts from the profile distribution using
// cumulative-sum inversion with binary search.
func multinomial(rng *rand.Rand, profile []float64, total float64, draws int) []float32 {
	cumulative := make([]float64, len(profile))
	running := 0.0
	for g, p := range profile {
		running += p
		cumulative[g] = running
	}

	out := make([]float32, len(profile))
	for range draws {
		u := rng.Float64() * total
		g := sort.SearchFloat64s(cumulative, u)
		if g == len(out) {
			g--
		}
		out[g]++
	}
	return out
}
