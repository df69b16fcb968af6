// Benchmark tool for testing Kite against labeled applicant data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/applicants.csv -url http://localhost:8080
//
// This tool:
//   1. Reads applicant data (with approved/declined labels)
//   2. Sends each case to Kite for scoring
//   3. Compares Kite's recommendation (Approve/other) with actual labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns: a "name" column, an "approved" column (0/1), and
// any number of numeric metric columns (e.g. credit_score, revenue, dti).
// Criteria must already be configured for the tenant via POST /criteria.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Applicant represents a labeled row from the input dataset.
type Applicant struct {
	ID       string
	Name     string
	Metrics  map[string]any
	Approved bool
}

// ScoreRequest is the Kite API request format.
type ScoreRequest struct {
	Cases []CaseRecord `json:"cases"`
}

type CaseRecord struct {
	CaseID   string         `json:"caseId"`
	CaseName string         `json:"caseName,omitempty"`
	Metrics  map[string]any `json:"metrics"`
}

// ScoreResponse is the Kite API response format.
type ScoreResponse struct {
	AnalysisID string       `json:"analysisId"`
	Results    []CaseResult `json:"results"`
}

type CaseResult struct {
	CaseID         string  `json:"caseId"`
	OverallScore   float64 `json:"overallScore"`
	Percentage     float64 `json:"percentage"`
	Grade          string  `json:"grade"`
	Recommendation string  `json:"recommendation"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Approved applicant recommended Approve
	FalsePositives int64 // Declined applicant recommended Approve
	TrueNegatives  int64 // Declined applicant not recommended
	FalseNegatives int64 // Approved applicant not recommended

	TotalProcessed int64
	TotalApproved  int64
	TotalDeclined  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled applicant CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kite base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum applicants to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each case result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/applicants.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           KITE BENCHMARK - Applicant Scoring                  ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Kite URL:    %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	// Check Kite is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kite not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kite is running:")
		fmt.Println("  cd kite && go run cmd/kite/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kite is healthy")

	// Read applicant data
	fmt.Printf("\nReading applicant data from %s...\n", *csvPath)
	applicants, err := readApplicantCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d applicants\n", len(applicants))

	// Count approved vs declined labels
	approvedCount := 0
	for _, a := range applicants {
		if a.Approved {
			approvedCount++
		}
	}
	fmt.Printf("  - Approved: %d (%.2f%%)\n", approvedCount, 100*float64(approvedCount)/float64(len(applicants)))
	fmt.Printf("  - Declined: %d (%.2f%%)\n", len(applicants)-approvedCount, 100*float64(len(applicants)-approvedCount)/float64(len(applicants)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(applicants, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readApplicantCSV(path string, limit int) ([]Applicant, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	approvedCol, ok := colIndex["approved"]
	if !ok {
		return nil, fmt.Errorf("CSV has no 'approved' column")
	}

	var applicants []Applicant
	row := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}
		row++

		a := Applicant{
			ID:       fmt.Sprintf("applicant-%d", row),
			Approved: record[approvedCol] == "1",
			Metrics:  make(map[string]any),
		}

		for name, idx := range colIndex {
			if idx >= len(record) {
				continue
			}
			val := strings.TrimSpace(record[idx])
			switch name {
			case "approved":
				// label, not a metric
			case "name", "applicant", "id":
				a.Name = val
			default:
				if num, err := strconv.ParseFloat(val, 64); err == nil {
					a.Metrics[name] = num
				} else if val != "" {
					a.Metrics[name] = val
				}
			}
		}

		applicants = append(applicants, a)

		if limit > 0 && len(applicants) >= limit {
			break
		}
	}

	return applicants, nil
}

func runBenchmark(applicants []Applicant, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan Applicant, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for a := range work {
				start := time.Now()
				result, err := scoreApplicant(client, baseURL, tenantID, a)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", a.ID, err)
					}
					continue
				}

				// Track actual labels
				if a.Approved {
					atomic.AddInt64(&metrics.TotalApproved, 1)
				} else {
					atomic.AddInt64(&metrics.TotalDeclined, 1)
				}

				// Calculate confusion matrix
				predicted := result.Recommendation == "Approve"
				actual := a.Approved

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					name := a.Name
					if name == "" {
						name = a.ID
					}
					if len(name) > 16 {
						name = name[:16]
					}
					fmt.Printf("%s %-16s | Approved: %-5v | Kite: %-7s | Score: %6.2f | Grade: %s\n",
						status,
						name,
						a.Approved,
						result.Recommendation,
						result.OverallScore,
						result.Grade,
					)
				}
			}
		}()
	}

	// Send work
	for _, a := range applicants {
		work <- a
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func scoreApplicant(client *http.Client, baseURL, tenantID string, a Applicant) (*CaseResult, error) {
	// One case per request; criteria come from the tenant's stored set
	req := ScoreRequest{
		Cases: []CaseRecord{
			{
				CaseID:   a.ID,
				CaseName: a.Name,
				Metrics:  a.Metrics,
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, fmt.Errorf("empty results for %s", a.ID)
	}

	return &result.Results[0], nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Approved:   %d\n", m.TotalApproved)
	fmt.Printf("   Total Declined:   %d\n", m.TotalDeclined)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                 Approve      Other")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  A  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           D  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 AGREEMENT METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of Approve verdicts, how many were actually approved)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of approved applicants, how many did we recommend)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall agreement with labels)\n", accuracy)

	// Agreement analysis
	fmt.Printf("\n🔍 AGREEMENT ANALYSIS\n")
	if m.TotalApproved > 0 {
		agreeRate := float64(m.TruePositives) / float64(m.TotalApproved) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalApproved) * 100
		fmt.Printf("   Approvals Matched:  %d / %d (%.2f%%)\n", m.TruePositives, m.TotalApproved, agreeRate)
		fmt.Printf("   Approvals Missed:   %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalApproved, missRate)
	}
	if m.TotalDeclined > 0 {
		overApproveRate := float64(m.FalsePositives) / float64(m.TotalDeclined) * 100
		fmt.Printf("   Over-Approvals:     %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalDeclined, overApproveRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f cases/sec\n", tps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - criteria align with historical approvals")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - some good applicants are scored too low")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - criteria may be too strict")
	} else {
		fmt.Println("   ❌ Poor recall - most approved applicants score below threshold!")
	}

	if precision >= 0.8 {
		fmt.Println("   ✅ Good precision - Approve verdicts are trustworthy")
	} else if precision >= 0.5 {
		fmt.Println("   ⚠️  Low precision - criteria may be too lenient")
	} else {
		fmt.Println("   ❌ Very low precision - Approve verdicts disagree with labels")
	}

	fmt.Println()
}
