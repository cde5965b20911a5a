// Package benchmark measures how often and how quickly each strategy recovers
// a code from a set of sample frames. Its ranking is what the catalog's
// default order is tuned against.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/MeKo-Tech/scanwell/internal/scan"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
)

// Baseline labels the run that skips every transform and only uses the
// decoder's own bidirectional search.
const Baseline = "baseline"

// Sample is one frame with the payload it is known to carry. An empty Want
// accepts any payload.
type Sample struct {
	Name  string
	Frame *frame.Buffer
	Want  string
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  `json:"alloc_bytes"`
	TotalAllocBytes uint64  `json:"total_alloc_bytes"`
	NumGC           uint32  `json:"num_gc"`
	GCCPUFraction   float64 `json:"gc_cpu_fraction"`
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024, m.TotalAllocBytes/1024, m.NumGC, m.GCCPUFraction*100)
}

// StrategyResult is the outcome of running one strategy over every sample.
type StrategyResult struct {
	Name       string        `json:"name"`
	Decoded    int           `json:"decoded"`
	Mismatched int           `json:"mismatched"`
	Samples    int           `json:"samples"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration_ns"`
	// AllocatedKB is the heap allocated while the strategy ran.
	AllocatedKB uint64   `json:"allocated_kb"`
	Solved      []string `json:"solved,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Rate is the share of samples decoded with the expected payload.
func (r StrategyResult) Rate() float64 {
	if r.Samples == 0 {
		return 0
	}
	return float64(r.Decoded) / float64(r.Samples)
}

// AvgDuration is the mean time per frame attempt.
func (r StrategyResult) AvgDuration() time.Duration {
	n := r.Samples * r.Iterations
	if n == 0 {
		return 0
	}
	return r.Duration / time.Duration(n)
}

func (r StrategyResult) String() string {
	if r.Error != "" {
		return fmt.Sprintf("%s: ERROR - %s", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d/%d decoded (%.0f%%), avg: %v, mem: +%d KB",
		r.Name, r.Decoded, r.Samples, r.Rate()*100, r.AvgDuration(), r.AllocatedKB)
}

// Runner benchmarks strategies against an engine.
type Runner struct {
	engine     *scan.Engine
	iterations int
}

// NewRunner creates a runner that repeats every frame attempt iterations times.
func NewRunner(engine *scan.Engine, iterations int) (*Runner, error) {
	if engine == nil {
		return nil, errors.New("benchmark: engine is required")
	}
	if iterations < 1 {
		return nil, fmt.Errorf("benchmark: iterations must be positive, got %d", iterations)
	}
	return &Runner{engine: engine, iterations: iterations}, nil
}

// RunStrategy scans every sample with s as the only candidate. Decodes that
// came from the fallback do not count for s.
func (r *Runner) RunStrategy(ctx context.Context, s strategy.Strategy, samples []Sample) StrategyResult {
	return r.run(ctx, s.String(), scan.Options{Strategies: []strategy.Strategy{s}, MaxAttempts: 1}, s, samples)
}

// RunBaseline scans every sample with the fallback decode alone.
func (r *Runner) RunBaseline(ctx context.Context, samples []Sample) StrategyResult {
	return r.run(ctx, Baseline, scan.Options{MaxAttempts: 0}, strategy.None, samples)
}

// RunAll benchmarks the baseline and then each strategy in order.
func (r *Runner) RunAll(ctx context.Context, strategies []strategy.Strategy, samples []Sample) ([]StrategyResult, error) {
	results := make([]StrategyResult, 0, len(strategies)+1)
	results = append(results, r.RunBaseline(ctx, samples))
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, r.RunStrategy(ctx, s, samples))
	}
	return results, ctx.Err()
}

func (r *Runner) run(ctx context.Context, name string, opts scan.Options, credit strategy.Strategy, samples []Sample) StrategyResult {
	result := StrategyResult{Name: name, Samples: len(samples), Iterations: r.iterations}

	runtime.GC()
	before := GetMemoryStats()
	start := time.Now()

	for _, sample := range samples {
		decoded, mismatched := false, false
		for range r.iterations {
			if err := ctx.Err(); err != nil {
				result.Error = err.Error()
				return result
			}
			res, err := r.engine.Scan(sample.Frame, opts)
			if err != nil {
				result.Error = fmt.Sprintf("%s: %v", sample.Name, err)
				return result
			}
			if res == nil || res.Strategy != credit {
				continue
			}
			if sample.Want != "" && res.Payload != sample.Want {
				mismatched = true
				continue
			}
			decoded = true
		}
		switch {
		case decoded:
			result.Decoded++
			result.Solved = append(result.Solved, sample.Name)
		case mismatched:
			result.Mismatched++
		}
	}

	result.Duration = time.Since(start)
	after := GetMemoryStats()
	result.AllocatedKB = (after.TotalAllocBytes - before.TotalAllocBytes) / 1024
	return result
}

// Rank orders strategy results by decode rate, then by speed. The baseline
// and failed runs are left out.
func Rank(results []StrategyResult) []StrategyResult {
	ranked := make([]StrategyResult, 0, len(results))
	for _, r := range results {
		if r.Name == Baseline || r.Error != "" {
			continue
		}
		ranked = append(ranked, r)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Decoded != ranked[j].Decoded {
			return ranked[i].Decoded > ranked[j].Decoded
		}
		return ranked[i].AvgDuration() < ranked[j].AvgDuration()
	})
	return ranked
}

// Rescued lists, per strategy, the samples the baseline could not decode but
// the strategy could. Strategies that rescue nothing are omitted.
func Rescued(results []StrategyResult) map[string][]string {
	base := map[string]bool{}
	for _, r := range results {
		if r.Name == Baseline {
			for _, s := range r.Solved {
				base[s] = true
			}
		}
	}
	out := map[string][]string{}
	for _, r := range results {
		if r.Name == Baseline {
			continue
		}
		for _, s := range r.Solved {
			if !base[s] {
				out[r.Name] = append(out[r.Name], s)
			}
		}
	}
	return out
}
