package analyze

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	log "github.com/sirupsen/logrus"
)

// Runner executes analyzers under a per-analyzer timeout. It probes each external tool
// once and turns missing tools, check errors and timeouts into info findings.
type Runner struct {
	Env     *Env
	Timeout time.Duration

	mu     sync.Mutex
	probes map[string]error
}

// NewRunner creates a runner over a shared environment.
func NewRunner(env *Env, timeout time.Duration) *Runner {
	if env.Options.FindingsPerCheck <= 0 {
		env.Options.FindingsPerCheck = contract.DefaultFindingsPerCheck
	}
	return &Runner{Env: env, Timeout: timeout, probes: make(map[string]error)}
}

// probe reports whether a tool is available, asking the ToolRunner only once per name.
func (r *Runner) probe(tool string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.probes[tool]; ok {
		return err
	}
	_, err := r.Env.Runner.LookPath(tool)
	r.probes[tool] = err
	return err
}

type checkResult struct {
	check       string
	findings    []schema.Finding
	degraded    bool
	interrupted bool
}

// Run executes every check of an analyzer. It never returns an error: whatever happens,
// the outcome carries the findings gathered so far and a status describing how it ended.
// Cancellation of ctx (the run budget) yields StatusCanceled, expiry of the analyzer's own
// timeout yields StatusTimedOut.
func (r *Runner) Run(ctx context.Context, a Analyzer) Outcome {
	start := time.Now()
	name := a.Name()
	out := Outcome{Name: name, Status: schema.StatusOK}
	snap := r.Env.Snapshot

	if !a.Applies(snap) {
		out.Status = schema.StatusNotApplicable
		log.WithField("analyzer", name).Debug("Analyzer not applicable")
		return out
	}

	checks := a.Checks(snap)
	log.WithField("analyzer", name).WithField("checks", len(checks)).Debug("Starting analyzer")

	actx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	// Checks run in order on one goroutine and stream their results, so a timeout
	// keeps everything that finished before it.
	results := make(chan checkResult, len(checks))
	go func() {
		defer close(results)
		for _, c := range checks {
			if actx.Err() != nil {
				return
			}
			results <- r.runCheck(actx, name, c)
		}
	}()

	completed := 0
	accept := func(res checkResult) {
		if res.interrupted {
			return
		}
		completed++
		out.Findings = append(out.Findings, res.findings...)
		if res.degraded {
			out.Status = schema.StatusDegraded
		}
	}
collect:
	for {
		select {
		case res, ok := <-results:
			if !ok {
				break collect
			}
			accept(res)
		case <-actx.Done():
			// Keep results that were already delivered.
			for {
				select {
				case res, ok := <-results:
					if !ok {
						break collect
					}
					accept(res)
				default:
					break collect
				}
			}
		}
	}

	if completed < len(checks) && actx.Err() != nil {
		if ctx.Err() != nil {
			out.Status = schema.StatusCanceled
			out.Findings = append(out.Findings, schema.NewFinding(schema.AnalyzerTimeoutKind, schema.SeverityInfo, name,
				fmt.Sprintf("analyzer %s was abandoned when the run budget expired (%d of %d checks completed)", name, completed, len(checks))))
		} else {
			out.Status = schema.StatusTimedOut
			out.Findings = append(out.Findings, schema.NewFinding(schema.AnalyzerTimeoutKind, schema.SeverityInfo, name,
				fmt.Sprintf("analyzer %s timed out after %s (%d of %d checks completed)", name, r.Timeout, completed, len(checks))))
		}
		log.WithField("analyzer", name).WithField("status", out.Status).Debug("Analyzer interrupted")
	}

	out.Duration = time.Since(start).Milliseconds()
	log.WithFields(log.Fields{
		"analyzer": name,
		"status":   out.Status,
		"findings": len(out.Findings),
		"duration": time.Since(start),
	}).Debug("Finished analyzer")
	return out
}

// runCheck routes a check to its real body or to the degrade path.
func (r *Runner) runCheck(ctx context.Context, analyzer string, c Check) checkResult {
	res := checkResult{check: c.Name}

	if c.Tool != "" {
		if err := r.probe(c.Tool); err != nil {
			log.WithFields(log.Fields{"analyzer": analyzer, "check": c.Name, "tool": c.Tool}).Debug("Tool missing, check skipped")
			res.degraded = true
			res.findings = []schema.Finding{schema.NewFinding(schema.SkippedCheckKind, schema.SeverityInfo, analyzer,
				fmt.Sprintf("%s skipped: %s is not installed", c.Name, c.Tool))}
			return res
		}
	}

	findings, err := c.Run(ctx, r.Env)
	if err != nil {
		if ctx.Err() != nil {
			res.interrupted = true
			return res
		}
		log.WithError(err).WithFields(log.Fields{"analyzer": analyzer, "check": c.Name}).Debug("Check failed")
		res.degraded = true
		res.findings = []schema.Finding{schema.NewFinding(schema.SkippedCheckKind, schema.SeverityInfo, analyzer,
			fmt.Sprintf("%s skipped: %v", c.Name, err))}
		return res
	}

	for i := range findings {
		if findings[i].Source == "" {
			findings[i].Source = analyzer
		}
	}
	res.findings = capFindings(analyzer, c.Name, findings, r.Env.Options.FindingsPerCheck)
	return res
}

// capFindings keeps the most severe findings of a check and summarizes the rest.
// Critical findings are never suppressed.
func capFindings(analyzer, check string, findings []schema.Finding, limit int) []schema.Finding {
	if limit <= 0 || len(findings) <= limit {
		return findings
	}
	sorted := make([]schema.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if ri, rj := sorted[i].Severity.Rank(), sorted[j].Severity.Rank(); ri != rj {
			return ri < rj
		}
		return sorted[i].Key() < sorted[j].Key()
	})
	keep := limit
	for keep < len(sorted) && sorted[keep].Severity == schema.SeverityCritical {
		keep++
	}
	if keep == len(sorted) {
		return sorted
	}
	kept := sorted[:keep:keep]
	return append(kept, schema.NewFinding(schema.SkippedCheckKind, schema.SeverityInfo, analyzer,
		fmt.Sprintf("%s: %d additional findings suppressed", check, len(sorted)-keep)))
}
