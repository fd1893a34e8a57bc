// Package main benchmarks the repohealth CLI across repositories of different sizes.
// Each repository is analyzed several times per profile. The first successful run is
// reported as cold and the rest are averaged as warm; results are written to CSV.
//
// Prerequisites:
// - repohealth binary installed and available in PATH
// - Test repositories cloned to the specified base directory
//
// Usage: go run benchmark/main.go [repo-base-dir]
//
//	repo-base-dir: Directory containing test repositories
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// BenchmarkResult holds the timings of one repository and profile.
type BenchmarkResult struct {
	Repository string
	Profile    string
	ColdTime   string
	WarmTime   string
	Score      string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	RepoBase  string
	Timeout   time.Duration
	Workers   int
	Runs      int
	TestRepos []string
	// Profiles maps a profile name to extra CLI arguments.
	Profiles map[string][]string
}

// profileOrder keeps output stable across runs.
var profileOrder = []string{"builtin", "full"}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [repo-base-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		RepoBase:  os.Args[1],
		Timeout:   5 * time.Minute,
		Workers:   4,
		Runs:      4,
		TestRepos: []string{"csv-parser", "fd", "git", "kubernetes"},
		Profiles: map[string][]string{
			// Only checks that need no external tool
			"builtin": {"--disable", "javascript,python,go,shell"},
			"full":    nil,
		},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the repohealth binary and test repositories exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("repohealth"); err != nil {
		return errors.New("repohealth binary not found in PATH")
	}
	for _, repo := range config.TestRepos {
		repoPath := filepath.Join(config.RepoBase, repo)
		if _, err := os.Stat(repoPath); os.IsNotExist(err) {
			return fmt.Errorf("repository %s not found at %s", repo, repoPath)
		}
	}
	return nil
}

// runBenchmarks executes every profile across configured repositories
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d repos, %v timeout, %d workers, %d runs\n",
		len(config.TestRepos), config.Timeout, config.Workers, config.Runs)

	for _, repo := range config.TestRepos {
		repoPath := filepath.Join(config.RepoBase, repo)
		for _, profile := range profileOrder {
			fmt.Printf("Benchmarking %s (%s)\n", repo, profile)
			results = append(results, runBenchmarkSuite(config, repo, repoPath, profile))
		}
	}
	return results
}

// runBenchmarkSuite runs one profile several times and summarizes cold and warm timings
func runBenchmarkSuite(config BenchmarkConfig, repo, repoPath, profile string) BenchmarkResult {
	times, score := runBenchmark(config, repoPath, config.Profiles[profile])

	result := BenchmarkResult{Repository: repo, Profile: profile, ColdTime: "TIMEOUT", WarmTime: "TIMEOUT", Score: "-"}
	if len(times) > 0 {
		result.ColdTime = fmt.Sprintf("%.3fs", times[0])
		result.Score = strconv.Itoa(score)
	}
	if len(times) > 1 {
		var sum float64
		for _, t := range times[1:] {
			sum += t
		}
		result.WarmTime = fmt.Sprintf("%.3fs", sum/float64(len(times)-1))
	}

	fmt.Printf("  Cold time: %s, Warm average: %s, Score: %s\n", result.ColdTime, result.WarmTime, result.Score)
	return result
}

// runBenchmark analyzes repoPath config.Runs times and returns the successful durations
// together with the score of the last successful run
func runBenchmark(config BenchmarkConfig, repoPath string, extraArgs []string) (times []float64, score int) {
	args := append([]string{"analyze", repoPath, "json", "--workers", strconv.Itoa(config.Workers)}, extraArgs...)

	for range config.Runs {
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		start := time.Now()
		output, err := exec.CommandContext(ctx, "repohealth", args...).Output()
		elapsed := time.Since(start).Seconds()
		cancel()
		if err != nil {
			continue
		}

		var report struct {
			OverallScore int `json:"overall_score"`
		}
		if err := json.Unmarshal(output, &report); err != nil {
			continue
		}
		times = append(times, elapsed)
		score = report.OverallScore
	}
	return times, score
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("repohealth_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"repo", "profile", "cold_time", "warm_avg", "score"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Repository, result.Profile, result.ColdTime, result.WarmTime, result.Score}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, profile := range profileOrder {
		fmt.Printf("Profile %s:\n", profile)
		for _, result := range results {
			if result.Profile == profile {
				fmt.Printf("  %-12s: Cold: %s, Warm: %s, Score: %s\n", result.Repository, result.ColdTime, result.WarmTime, result.Score)
			}
		}
	}
}
