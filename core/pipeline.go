package core

import (
	"context"
	"slices"
	"time"

	"github.com/huangsam/repohealth/core/analyze"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// runAnalyzers executes every enabled analyzer against a shared environment.
// At most cfg.Workers analyzers run at once; each result is written to its own slot,
// so no locking is needed. Disabled analyzers are reported as not applicable.
// The returned outcomes follow contract.KnownAnalyzers order.
func runAnalyzers(ctx context.Context, cfg *contract.Config, env *analyze.Env) []analyze.Outcome {
	start := time.Now()
	enabled, disabled := analyze.Select(cfg.Disabled)
	runner := analyze.NewRunner(env, cfg.AnalyzerTimeout)

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	outcomes := make([]analyze.Outcome, len(enabled))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, a := range enabled {
		g.Go(func() error {
			outcomes[i] = runner.Run(ctx, a)
			return nil
		})
	}
	_ = g.Wait() // analyzers never fail, they degrade

	for _, name := range disabled {
		outcomes = append(outcomes, analyze.Outcome{Name: name, Status: schema.StatusNotApplicable})
	}
	slices.SortStableFunc(outcomes, func(a, b analyze.Outcome) int {
		return analyzerOrder(a.Name) - analyzerOrder(b.Name)
	})

	log.WithFields(log.Fields{
		"analyzers": len(enabled),
		"disabled":  len(disabled),
		"workers":   workers,
		"duration":  time.Since(start),
	}).Debug("Analyzers finished")
	return outcomes
}

// analyzerOrder returns the position of an analyzer in the documented run order.
func analyzerOrder(name string) int {
	if i := slices.Index(contract.KnownAnalyzers, name); i >= 0 {
		return i
	}
	return len(contract.KnownAnalyzers)
}

// attachFindings appends findings to the named outcome when it ran.
// It reports false when the analyzer is absent or was not applicable.
func attachFindings(outcomes []analyze.Outcome, name string, findings ...schema.Finding) bool {
	for i := range outcomes {
		if outcomes[i].Name != name || outcomes[i].Status == schema.StatusNotApplicable {
			continue
		}
		outcomes[i].Findings = append(outcomes[i].Findings, findings...)
		return true
	}
	return false
}
