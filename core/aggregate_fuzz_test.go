package core

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/huangsam/repohealth/core/analyze"
	"github.com/huangsam/repohealth/schema"
)

var (
	fuzzKinds   = []schema.FindingKind{schema.MissingDocKind, schema.LargeFileKind, schema.SecretExposureKind}
	fuzzSources = []string{"docs", "security", "performance", "python"}
)

// decodeFindings turns fuzz bytes into findings. Each byte picks a severity, kind,
// path and source, so duplicates across analyzers are common.
func decodeFindings(data []byte) []schema.Finding {
	findings := make([]schema.Finding, 0, len(data))
	for _, b := range data {
		sev := schema.AllSeverities[int(b)%len(schema.AllSeverities)]
		kind := fuzzKinds[int(b/5)%len(fuzzKinds)]
		path := fmt.Sprintf("pkg/file%d.go", int(b/15)%4)
		source := fuzzSources[int(b>>6)%len(fuzzSources)]
		findings = append(findings, schema.NewFinding(kind, sev, source, "issue in "+path).At(path, 1))
	}
	return findings
}

// expectedScore applies the scoring rule directly: each distinct finding counts once,
// at its most severe reported level.
func expectedScore(model schema.ScoreModel, findings []schema.Finding) (score, critical int) {
	worst := make(map[string]schema.Severity)
	for _, f := range findings {
		if prev, ok := worst[f.Key()]; !ok || f.Severity.Rank() < prev.Rank() {
			worst[f.Key()] = f.Severity
		}
	}
	total := 0
	for _, sev := range worst {
		total += model.Weight(sev)
		if sev == schema.SeverityCritical {
			critical++
		}
	}
	return model.Clamp(100 - total), critical
}

func aggregateFindings(model schema.ScoreModel, findings []schema.Finding) *schema.HealthReport {
	// spread the findings over outcomes by source, as the pipeline does
	bySource := make(map[string][]schema.Finding)
	for _, f := range findings {
		bySource[f.Source] = append(bySource[f.Source], f)
	}
	outcomes := make([]analyze.Outcome, 0, len(fuzzSources))
	for _, name := range fuzzSources {
		outcomes = append(outcomes, analyze.Outcome{Name: name, Status: schema.StatusOK, Findings: bySource[name]})
	}
	return aggregate(aggregateInput{Outcomes: outcomes, Model: model})
}

// FuzzAggregate checks the scoring invariants against arbitrary finding sets.
func FuzzAggregate(f *testing.F) {
	f.Add([]byte{}, uint64(1))
	f.Add([]byte{0, 0, 0}, uint64(7))
	f.Add([]byte{0, 64, 128, 192}, uint64(42))
	f.Add([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, uint64(3))
	f.Add([]byte("critical findings everywhere, the score floors at zero"), uint64(99))

	model := schema.DefaultScoreModel()
	f.Fuzz(func(t *testing.T, data []byte, seed uint64) {
		findings := decodeFindings(data)
		report := aggregateFindings(model, findings)

		wantScore, wantCritical := expectedScore(model, findings)
		if report.OverallScore != wantScore {
			t.Fatalf("score %d, want %d", report.OverallScore, wantScore)
		}
		if report.Summary.CriticalIssues != wantCritical {
			t.Fatalf("critical issues %d, want %d", report.Summary.CriticalIssues, wantCritical)
		}

		// same input twice
		again := aggregateFindings(model, findings)
		if again.OverallScore != report.OverallScore || again.Summary.CriticalIssues != report.Summary.CriticalIssues {
			t.Fatalf("repeat run gave %d/%d, first gave %d/%d", again.OverallScore, again.Summary.CriticalIssues,
				report.OverallScore, report.Summary.CriticalIssues)
		}
		sameFinding := func(a, b schema.Finding) bool {
			return a.Key() == b.Key() && a.Severity == b.Severity && a.Source == b.Source
		}
		if !slices.EqualFunc(again.Findings, report.Findings, sameFinding) {
			t.Fatal("repeat run ordered findings differently")
		}

		// shuffled input
		shuffled := slices.Clone(findings)
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		mixed := aggregateFindings(model, shuffled)
		if mixed.OverallScore != report.OverallScore || mixed.Summary.CriticalIssues != report.Summary.CriticalIssues {
			t.Fatalf("shuffled input gave %d/%d, ordered gave %d/%d", mixed.OverallScore, mixed.Summary.CriticalIssues,
				report.OverallScore, report.Summary.CriticalIssues)
		}

		// adding findings never raises the score
		prev := 100
		for i := range findings {
			score := aggregateFindings(model, findings[:i+1]).OverallScore
			if score > prev {
				t.Fatalf("score rose from %d to %d after adding finding %d", prev, score, i)
			}
			prev = score
		}
	})
}
