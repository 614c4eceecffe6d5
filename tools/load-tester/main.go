package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the stream API")
	concurrency := flag.Int("c", 10, "Number of concurrent workers, one stream each")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 1000, "Requests per second limit")
	flag.Parse()

	log.Printf("Starting load test on %s", *baseURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var successCount, throttledCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	post := func(ctx context.Context, url, body string) (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		resp.Body.Close()
		return resp.StatusCode, nil
	}

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			streamURL := fmt.Sprintf("%s/streams/load-%s", *baseURL, uuid.NewString())
			if _, err := post(ctx, streamURL, ""); err != nil {
				log.Printf("worker %d: failed to create stream: %v", workerID, err)
				return
			}

			for seq := 0; ; seq++ {
				if err := limiter.Wait(ctx); err != nil {
					break
				}

				payload := fmt.Sprintf(`{"event":"progress","data":{"worker":%d,"seq":%d,"sent_at":"%s"}}`,
					workerID, seq, time.Now().Format(time.RFC3339Nano))

				status, err := post(ctx, streamURL+"/events", payload)
				switch {
				case err != nil:
					if ctx.Err() == nil {
						errorCount.Add(1)
					}
				case status == http.StatusAccepted:
					successCount.Add(1)
				case status == http.StatusTooManyRequests:
					throttledCount.Add(1)
				default:
					errorCount.Add(1)
				}
			}

			// Close the stream so tailing clients disconnect.
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := post(closeCtx, streamURL+"/complete", ""); err != nil {
				log.Printf("worker %d: failed to complete stream: %v", workerID, err)
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + throttledCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful (202 Accepted): %d", successCount.Load())
	log.Printf("Throttled (429): %d", throttledCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
}
