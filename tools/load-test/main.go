package main

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	// Configuration
	url := "http://localhost:8080/api/v1/attendance"
	contentType := "application/json"
	subdomain := "techvaseegrah"

	numWorkers := 500
	scansPerWorker := 4 // fired at once, as a reader bouncing the same badge would
	totalRequests := numWorkers * scansPerWorker
	concurrency := 50 // Number of concurrent requests to avoid local port exhaustion

	fmt.Printf("Starting load test: %d badges (%d simultaneous scans each) to %s with concurrency %d\n", numWorkers, scansPerWorker, url, concurrency)

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency) // Semaphore to limit concurrency

	var successCount, conflictCount, failCount int64
	client := &http.Client{Timeout: 10 * time.Second}

	startTime := time.Now()

	for i := 0; i < numWorkers; i++ {
		rfid := fmt.Sprintf("LOAD%05d", i)
		payload := []byte(fmt.Sprintf(`{"subdomain": %q, "rfid": %q}`, subdomain, rfid))

		for j := 0; j < scansPerWorker; j++ {
			wg.Add(1)
			sem <- struct{}{} // Acquire token

			go func() {
				defer wg.Done()
				defer func() { <-sem }() // Release token

				req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(payload))
				if err != nil {
					atomic.AddInt64(&failCount, 1)
					return
				}
				req.Header.Set("Content-Type", contentType)

				resp, err := client.Do(req)
				if err != nil {
					atomic.AddInt64(&failCount, 1)
					return
				}
				defer resp.Body.Close()

				switch {
				case resp.StatusCode >= 200 && resp.StatusCode < 300:
					atomic.AddInt64(&successCount, 1)
				case resp.StatusCode == http.StatusConflict:
					atomic.AddInt64(&conflictCount, 1)
				default:
					atomic.AddInt64(&failCount, 1)
				}
			}()
		}
	}

	wg.Wait()
	duration := time.Since(startTime)

	fmt.Println("\n--- Load Test Results ---")
	fmt.Printf("Total Duration: %v\n", duration)
	fmt.Printf("Total Requests: %d\n", totalRequests)
	fmt.Printf("Successful:     %d\n", successCount)
	fmt.Printf("Conflicts:      %d\n", conflictCount)
	fmt.Printf("Failed:         %d\n", failCount)
	fmt.Printf("Requests/Sec:   %.2f\n", float64(totalRequests)/duration.Seconds())
	fmt.Println("Every badge should now hold an alternating IN/OUT history; check GET /api/v1/attendance/" + subdomain)
}
