// Benchmark tool for testing Kestrel against labeled transaction data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/transactions.csv -url http://localhost:8090
//
// This tool:
//   1. Reads labeled transaction data (with suspicious-activity labels)
//   2. Sends each transaction to Kestrel for screening
//   3. Compares Kestrel's decision (REVIEW/BLOCK vs APPROVE) with the labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns:
//   customer_id, amount, currency, timestamp, cash, international, crypto,
//   countries (pipe-separated), is_suspicious
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

// LabeledTransaction represents a row from the benchmark dataset
type LabeledTransaction struct {
	CustomerID    string
	Amount        float64
	Currency      string
	Timestamp     string
	Cash          bool
	International bool
	Crypto        bool
	Countries     []string
	IsSuspicious  bool
}

// ScreenRequest is the Kestrel API request format
type ScreenRequest struct {
	Transaction TransactionInput `json:"transaction"`
}

// TransactionInput mirrors the API wire format
type TransactionInput struct {
	CustomerID    string   `json:"customerId"`
	Amount        float64  `json:"amount"`
	Currency      string   `json:"currency"`
	Timestamp     string   `json:"timestamp"`
	Cash          bool     `json:"cash,omitempty"`
	International bool     `json:"international,omitempty"`
	Crypto        bool     `json:"crypto,omitempty"`
	Countries     []string `json:"countries,omitempty"`
}

// ScreenResponse is the subset of the screening result the benchmark needs
type ScreenResponse struct {
	ID             string  `json:"id"`
	CompositeScore float64 `json:"compositeScore"`
	Alert          struct {
		Tier     string `json:"tier"`
		Decision string `json:"decision"`
	} `json:"alert"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Suspicious flagged for review or block
	FalsePositives int64 // Clean flagged for review or block
	TrueNegatives  int64 // Clean approved
	FalseNegatives int64 // Suspicious approved (missed!)

	TotalProcessed  int64
	TotalSuspicious int64
	TotalClean      int64
	TotalErrors     int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled transaction CSV file")
	baseURL := flag.String("url", "http://localhost:8090", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum transactions to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each transaction result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/transactions.csv [-url http://localhost:8090]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          KESTREL BENCHMARK - Risk Screening Accuracy          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Kestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	fmt.Printf("\nReading labeled data from %s...\n", *csvPath)
	transactions, err := readLabeledCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d transactions\n", len(transactions))

	suspiciousCount := 0
	for _, tx := range transactions {
		if tx.IsSuspicious {
			suspiciousCount++
		}
	}
	fmt.Printf("  - Suspicious: %d (%.2f%%)\n", suspiciousCount, 100*float64(suspiciousCount)/float64(len(transactions)))
	fmt.Printf("  - Clean:      %d (%.2f%%)\n", len(transactions)-suspiciousCount, 100*float64(len(transactions)-suspiciousCount)/float64(len(transactions)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(transactions, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

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

func readLabeledCSV(path string, limit int) ([]LabeledTransaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var transactions []LabeledTransaction

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		amount, _ := strconv.ParseFloat(record[colIndex["amount"]], 64)

		var countries []string
		if raw := record[colIndex["countries"]]; raw != "" {
			countries = strings.Split(raw, "|")
		}

		tx := LabeledTransaction{
			CustomerID:    record[colIndex["customer_id"]],
			Amount:        amount,
			Currency:      record[colIndex["currency"]],
			Timestamp:     record[colIndex["timestamp"]],
			Cash:          record[colIndex["cash"]] == "1",
			International: record[colIndex["international"]] == "1",
			Crypto:        record[colIndex["crypto"]] == "1",
			Countries:     countries,
			IsSuspicious:  record[colIndex["is_suspicious"]] == "1",
		}

		transactions = append(transactions, tx)

		if limit > 0 && len(transactions) >= limit {
			break
		}
	}

	return transactions, nil
}

func runBenchmark(transactions []LabeledTransaction, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan LabeledTransaction, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for tx := range work {
				start := time.Now()
				result, err := screenTransaction(client, baseURL, tenantID, tx)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", tx.CustomerID, err)
					}
					continue
				}

				if tx.IsSuspicious {
					atomic.AddInt64(&metrics.TotalSuspicious, 1)
				} else {
					atomic.AddInt64(&metrics.TotalClean, 1)
				}

				flagged := result.Alert.Decision != "APPROVE"
				actual := tx.IsSuspicious

				if flagged && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if flagged && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !flagged && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else {
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if flagged != actual {
						status = "✗"
					}
					fmt.Printf("%s %-12s | Amount: $%12.2f | Suspicious: %-5v | Kestrel: %-6s %-8s (%.1f)\n",
						status,
						tx.CustomerID,
						tx.Amount,
						tx.IsSuspicious,
						result.Alert.Decision,
						result.Alert.Tier,
						result.CompositeScore,
					)
				}
			}
		}()
	}

	for _, tx := range transactions {
		work <- tx
	}
	close(work)

	wg.Wait()

	return metrics
}

func screenTransaction(client *http.Client, baseURL, tenantID string, tx LabeledTransaction) (*ScreenResponse, error) {
	req := ScreenRequest{
		Transaction: TransactionInput{
			CustomerID:    tx.CustomerID,
			Amount:        tx.Amount,
			Currency:      tx.Currency,
			Timestamp:     tx.Timestamp,
			Cash:          tx.Cash,
			International: tx.International,
			Crypto:        tx.Crypto,
			Countries:     tx.Countries,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/screen", bytes.NewReader(body))
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

	var result ScreenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Suspicious: %d\n", m.TotalSuspicious)
	fmt.Printf("   Total Clean:      %d\n", m.TotalClean)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  FLAGGED     APPROVED")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  S  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

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

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flags, how many were actually suspicious)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of suspicious activity, how much did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalSuspicious > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalSuspicious) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalSuspicious) * 100
		fmt.Printf("   Suspicious Caught: %d / %d (%.2f%%)\n", m.TruePositives, m.TotalSuspicious, detectionRate)
		fmt.Printf("   Suspicious Missed: %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalSuspicious, missRate)
	}
	if m.TotalClean > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalClean) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalClean, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f tx/sec\n", tps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most suspicious activity")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but some suspicious activity slips through")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant activity being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most suspicious activity is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
