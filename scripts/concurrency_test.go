//go:build ignore
// +build ignore

// Package main provides a manual concurrency stress test for the reservation API.
//
// Usage:
//
//	go run ./scripts/concurrency_test.go <book_id> <client1_id> [client2_id ...]
//
// Or use the convenience environment variables:
//
//	BOOK_ID=<uuid>  CLIENT_IDS=<uuid1>,<uuid2>,...  go run ./scripts/concurrency_test.go
//
// What it does:
//  1. Fires N goroutines (one per client) all attempting to reserve the same book simultaneously.
//  2. Prints how many succeeded and how many were refused because the book was already reserved.
//  3. Fails unless exactly one reservation was created.
//
// Prerequisites:
//   - Server must be running (biblio serve).
//   - The book must be available and all clients must exist.
//   - Set TOKEN to a bearer token from POST /api/auth/login, or run the server with AUTH_DISABLED=true.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultServerAddr = "http://localhost:8080"

type reserveResult struct {
	ClientID   string
	StatusCode int
	Kind       string
	Err        error
}

func main() {
	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}
	token := os.Getenv("TOKEN")

	bookID := os.Getenv("BOOK_ID")
	var clientIDs []string
	if env := os.Getenv("CLIENT_IDS"); env != "" {
		clientIDs = strings.Split(env, ",")
	}

	args := os.Args[1:]
	if len(args) >= 1 {
		bookID = args[0]
	}
	if len(args) >= 2 {
		clientIDs = args[1:]
	}

	if bookID == "" {
		log.Fatal("Usage: BOOK_ID=<uuid> CLIENT_IDS=<c1,c2,...> go run ./scripts/concurrency_test.go\n" +
			"  or: go run ./scripts/concurrency_test.go <book_id> <client1_id> [client2_id ...]")
	}
	if len(clientIDs) == 0 {
		log.Fatal("At least one client ID must be provided via CLIENT_IDS env or positional args")
	}

	fmt.Printf("=== Reservation Concurrency Test ===\n")
	fmt.Printf("Server  : %s\n", serverAddr)
	fmt.Printf("Book    : %s\n", bookID)
	fmt.Printf("Clients : %d\n\n", len(clientIDs))

	due := time.Now().UTC().AddDate(0, 0, 7).Format(time.RFC3339)
	results := make([]reserveResult, len(clientIDs))
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i, cid := range clientIDs {
		wg.Add(1)
		go func(idx int, clientID string) {
			defer wg.Done()
			<-start
			results[idx] = attemptReserve(serverAddr, token, bookID, strings.TrimSpace(clientID), due)
		}(i, cid)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()
	fmt.Print("All requests completed.\n\n")

	var created, refused, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] client=%-38s err=%v\n", r.ClientID, r.Err)
		case r.StatusCode == http.StatusCreated:
			created++
			fmt.Printf("  [RESV] client=%-38s status=%d\n", r.ClientID, r.StatusCode)
		case r.StatusCode == http.StatusUnprocessableEntity && r.Kind == "domain_rule":
			refused++
			fmt.Printf("  [BUSY] client=%-38s status=%d\n", r.ClientID, r.StatusCode)
		default:
			failures++
			fmt.Printf("  [FAIL] client=%-38s status=%d kind=%s\n", r.ClientID, r.StatusCode, r.Kind)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Created  : %d\n", created)
	fmt.Printf("Refused  : %d\n", refused)
	fmt.Printf("Failures : %d\n", failures)
	fmt.Printf("Total    : %d\n\n", len(clientIDs))

	fmt.Println("--- Invariant Check ---")
	if created != 1 {
		fmt.Printf("[FAIL] expected exactly one reservation for the book, got %d\n", created)
		os.Exit(1)
	}
	fmt.Println("[OK] exactly one reservation was created")

	if failures > 0 {
		fmt.Printf("\n[WARNING] %d request(s) failed, check server logs for details.\n", failures)
		os.Exit(1)
	}
}

// attemptReserve sends POST /api/reservations for clientID against bookID.
func attemptReserve(serverAddr, token, bookID, clientID, due string) reserveResult {
	body, _ := json.Marshal(map[string]string{"client_id": clientID, "book_id": bookID, "due_at": due})
	req, err := http.NewRequest(http.MethodPost, serverAddr+"/api/reservations", bytes.NewReader(body))
	if err != nil {
		return reserveResult{ClientID: clientID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return reserveResult{ClientID: clientID, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return reserveResult{ClientID: clientID, StatusCode: resp.StatusCode, Err: fmt.Errorf("bad JSON: %s", raw)}
	}
	kind, _ := parsed["kind"].(string)
	return reserveResult{ClientID: clientID, StatusCode: resp.StatusCode, Kind: kind}
}
