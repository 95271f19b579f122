// Command loadtest fires a burst of concurrent POST /payments requests
// at a running gateway, for ad-hoc throughput checks. Adapted from the
// teacher's stress.go: same bounded-concurrency worker pool, but
// correlation ids are now real UUIDs (the gateway rejects anything
// else) and the target, volume and concurrency are configurable.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type paymentBody struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
}

func main() {
	var (
		targetURL   string
		total       int
		concurrency int
		amount      float64
	)

	root := &cobra.Command{
		Use:   "loadtest",
		Short: "Fire a burst of POST /payments requests at a gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			run(targetURL, total, concurrency, amount)
			return nil
		},
	}
	root.Flags().StringVar(&targetURL, "url", "http://localhost:9999/payments", "gateway /payments endpoint")
	root.Flags().IntVar(&total, "requests", 500, "total number of requests to send")
	root.Flags().IntVar(&concurrency, "concurrency", 20, "number of requests in flight at once")
	root.Flags().Float64Var(&amount, "amount", 19.90, "payment amount per request")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(targetURL string, total, concurrency int, amount float64) {
	var success, timeout, errorCount atomic.Int64

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	client := &http.Client{Timeout: 2 * time.Second}

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			payload := paymentBody{CorrelationID: uuid.NewString(), Amount: amount}
			b, _ := json.Marshal(payload)
			req, _ := http.NewRequest(http.MethodPost, targetURL, bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
					timeout.Add(1)
				} else {
					errorCount.Add(1)
				}
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode == http.StatusOK {
				success.Add(1)
			} else {
				fmt.Printf("http %d: %s\n", resp.StatusCode, string(body))
				errorCount.Add(1)
			}
		}()
	}
	wg.Wait()
	fmt.Printf("success: %d\ntimeout: %d\nerror: %d\n", success.Load(), timeout.Load(), errorCount.Load())
}
