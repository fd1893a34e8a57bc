// Package core runs the health pipeline: collection, parallel analysis, scoring and reporting.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/huangsam/repohealth/core/analyze"
	"github.com/huangsam/repohealth/core/collect"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/outwriter"
	"github.com/huangsam/repohealth/schema"
	log "github.com/sirupsen/logrus"
)

// ExecutorFunc defines the function signature for executing the CLI modes.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error

const (
	// performanceAnalyzer owns regression findings and baseline notices.
	performanceAnalyzer = "performance"
	// collectorSource marks findings about the traversal itself.
	collectorSource = "collector"
	// maxListedPaths bounds how many skipped paths a notice names.
	maxListedPaths = 3
)

// GetHealthReport runs the whole pipeline and returns the report.
// Only a collector failure (missing, unreadable or non-directory root) is returned as an error;
// every analyzer problem ends up as a finding inside the report.
func GetHealthReport(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) (*schema.HealthReport, error) {
	start := time.Now()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	// 1. Collect
	snap, err := collect.Collect(ctx, cfg.RepoPath, collect.Options{Excludes: cfg.Excludes})
	if err != nil {
		return nil, err
	}

	// 2. Analyze
	env := &analyze.Env{
		Snapshot: snap,
		Runner:   toolRunnerFrom(ctx),
		Options: analyze.Options{
			LargeFileBytes:   cfg.LargeFileBytes,
			MaxScanBytes:     cfg.MaxScanBytes,
			AdvisoriesFile:   cfg.AdvisoriesFile,
			FindingsPerCheck: contract.DefaultFindingsPerCheck,
		},
	}
	outcomes := runAnalyzers(ctx, cfg, env)

	// 3. Compare against the previous run
	store := historyStore(mgr)
	if !cfg.IsDisabled(performanceAnalyzer) {
		prior, notice := loadPriorReport(cfg, store)
		if notice != nil {
			attachFindings(outcomes, performanceAnalyzer, *notice)
		}
		attachFindings(outcomes, performanceAnalyzer, analyze.DetectRegressions(prior, outcomes, snap)...)
	}

	// 4. Aggregate
	report := aggregate(aggregateInput{
		Snapshot: snap,
		Outcomes: outcomes,
		Extra:    collectionNotices(snap),
		Model:    cfg.ScoreModel,
		Started:  start,
	})
	log.WithFields(log.Fields{
		"score":    report.OverallScore,
		"findings": report.Summary.TotalFindings,
		"critical": report.Summary.CriticalIssues,
		"duration": time.Since(start),
	}).Debug("Report ready")

	// 5. Record
	if store != nil {
		if err := store.RecordReport(report); err != nil {
			contract.LogWarn("Failed to record run history", err)
		}
	}
	return report, nil
}

// collectionNotices reports subpaths the collector could not read, so a partial
// traversal shows up as reduced confidence in the report.
func collectionNotices(snap *schema.RepositorySnapshot) []schema.Finding {
	if len(snap.Unreadable) == 0 {
		return nil
	}
	listed := snap.Unreadable
	if len(listed) > maxListedPaths {
		listed = listed[:maxListedPaths]
	}
	msg := fmt.Sprintf("%d paths could not be read and were not analyzed: %s", len(snap.Unreadable), strings.Join(listed, ", "))
	if more := len(snap.Unreadable) - len(listed); more > 0 {
		msg += fmt.Sprintf(" and %d more", more)
	}
	return []schema.Finding{schema.NewFinding(schema.SkippedCheckKind, schema.SeverityInfo, collectorSource, msg)}
}

// ExecuteHealthAnalyze runs the pipeline and writes the report in the configured format.
func ExecuteHealthAnalyze(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	report, err := GetHealthReport(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return outwriter.WriteHealthReport(report, cfg)
}

// ExecuteScoreModel prints the effective severity weights. No repository is scanned.
func ExecuteScoreModel(_ context.Context, cfg *contract.Config, _ contract.StoreManager) error {
	return outwriter.WriteScoreModel(cfg.ScoreModel, cfg)
}

func historyStore(mgr contract.StoreManager) contract.HistoryStore {
	if mgr == nil {
		return nil
	}
	return mgr.GetHistoryStore()
}

// loadPriorReport finds the report to compare against: the --baseline file when given,
// otherwise the latest recorded run for the same path. An unreadable baseline yields an
// info notice instead of an error.
func loadPriorReport(cfg *contract.Config, store contract.HistoryStore) (*schema.HealthReport, *schema.Finding) {
	if cfg.BaselineFile != "" {
		prior, err := readBaseline(cfg.BaselineFile)
		if err != nil {
			contract.LogWarn("Baseline report ignored", err)
			notice := schema.NewFinding(schema.SkippedCheckKind, schema.SeverityInfo, performanceAnalyzer,
				fmt.Sprintf("regression check skipped: baseline %s could not be read", cfg.BaselineFile))
			return nil, &notice
		}
		return prior, nil
	}
	if store == nil {
		return nil, nil
	}
	prior, err := store.LatestReport(cfg.RepoPath)
	if err != nil {
		contract.LogWarn("Failed to load previous run from history", err)
		return nil, nil
	}
	return prior, nil
}

func readBaseline(file string) (*schema.HealthReport, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var report schema.HealthReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse baseline %s: %w", file, err)
	}
	return &report, nil
}
