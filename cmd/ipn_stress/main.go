package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rl1809/course-checkout/internal/core/domain"
	"github.com/rl1809/course-checkout/internal/core/signature"
)

type options struct {
	baseURL     string
	orderID     string
	userID      string
	courseIDs   []string
	accessKey   string
	secretKey   string
	resultCode  int
	concurrency int
	timeout     time.Duration
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:          "ipn_stress",
		Short:        "Deliver one signed IPN many times concurrently and report what the server did",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "url", "http://localhost:8080", "server base URL")
	f.StringVar(&opts.orderID, "order-id", "", "existing pending order; when empty a new order is created")
	f.StringVar(&opts.userID, "user", "", "buyer for the created order (default: random)")
	f.StringSliceVar(&opts.courseIDs, "courses", nil, "course ids for the created order")
	f.StringVar(&opts.accessKey, "access-key", os.Getenv("PAYMENTS_MOMO_ACCESS_KEY"), "gateway access key")
	f.StringVar(&opts.secretKey, "secret-key", os.Getenv("PAYMENTS_MOMO_SECRET_KEY"), "gateway secret key")
	f.IntVar(&opts.resultCode, "result-code", 0, "resultCode to report")
	f.IntVarP(&opts.concurrency, "concurrency", "n", 50, "number of concurrent deliveries")
	f.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func run(out io.Writer, opts options) error {
	client := &http.Client{Timeout: opts.timeout}

	orderID, amount := opts.orderID, int64(0)
	if orderID == "" {
		if len(opts.courseIDs) == 0 {
			return fmt.Errorf("--courses is required when --order-id is empty")
		}
		if opts.userID == "" {
			opts.userID = "stress-" + uuid.NewString()[:8]
		}
		created, err := createOrder(client, opts)
		if err != nil {
			return err
		}
		orderID, amount = created.OrderID, created.Amount
		fmt.Fprintf(out, "created order %s amount=%d\n", orderID, amount)
	}

	cb := domain.PaymentCallback{
		PartnerCode:  "MOMO",
		OrderID:      orderID,
		RequestID:    orderID,
		Amount:       amount,
		OrderInfo:    "Payment for order " + orderID,
		OrderType:    "momo_wallet",
		TransID:      time.Now().UnixNano(),
		ResultCode:   opts.resultCode,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: time.Now().UnixMilli(),
	}
	cb.Signature = signature.SignCallback(opts.accessKey, opts.secretKey, cb)
	payload, err := json.Marshal(cb)
	if err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		statuses = map[int]int{}
		outcomes = map[string]int{}
		errCount atomic.Int32
		wg       sync.WaitGroup
	)

	start := time.Now()
	for i := 0; i < opts.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Post(opts.baseURL+"/payments/ipn", "application/json", bytes.NewReader(payload))
			if err != nil {
				errCount.Add(1)
				return
			}
			defer resp.Body.Close()

			var env envelope
			json.NewDecoder(resp.Body).Decode(&env)
			var data struct {
				Outcome string `json:"outcome"`
			}
			json.Unmarshal(env.Data, &data)

			mu.Lock()
			statuses[resp.StatusCode]++
			if data.Outcome != "" {
				outcomes[data.Outcome]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Fprintf(out, "\n=== IPN Stress Results ===\n")
	fmt.Fprintf(out, "Order:        %s\n", orderID)
	fmt.Fprintf(out, "Deliveries:   %d\n", opts.concurrency)
	fmt.Fprintf(out, "Errors:       %d\n", errCount.Load())
	fmt.Fprintf(out, "Elapsed:      %v\n", elapsed)
	for _, code := range sortedKeys(statuses) {
		fmt.Fprintf(out, "HTTP %d:     %d\n", code, statuses[code])
	}
	for _, name := range []string{"applied", "already_settled"} {
		fmt.Fprintf(out, "%-14s%d\n", name+":", outcomes[name])
	}

	if outcomes["applied"] > 1 {
		return fmt.Errorf("order %s was applied %d times", orderID, outcomes["applied"])
	}
	fmt.Fprintln(out, "\nPASS: at most one delivery applied the order")
	return nil
}

type createdOrder struct {
	OrderID string `json:"orderId"`
	Amount  int64  `json:"amount"`
}

func createOrder(client *http.Client, opts options) (*createdOrder, error) {
	body, _ := json.Marshal(map[string]any{"courseIds": opts.courseIDs})
	req, err := http.NewRequest(http.MethodPost, opts.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", opts.userID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode create response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create order: HTTP %d: %s", resp.StatusCode, env.Message)
	}

	var created createdOrder
	if err := json.Unmarshal(env.Data, &created); err != nil {
		return nil, fmt.Errorf("decode created order: %w", err)
	}
	return &created, nil
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
