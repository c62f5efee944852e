package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(url string) (*http.Response, error) {
	return c.client.Get(url)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(url string, body interface{}) (*http.Response, error) {
	return c.send(http.MethodPost, url, body)
}

// Put performs a PUT request with JSON body
func (c *HTTPClient) Put(url string, body interface{}) (*http.Response, error) {
	return c.send(http.MethodPut, url, body)
}

func (c *HTTPClient) send(method, url string, body interface{}) (*http.Response, error) {
	var buf io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		buf = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// drainAndClose discards a response body so the connection can be reused.
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// submitUsers pushes profiles, preferences, sessions, and doses for every
// user concurrently using a worker pool.
func submitUsers(ctx context.Context, config *Config, users []User, stats *Stats) error {
	log.Printf("submitting %d users with %d workers...", len(users), config.Workers)

	client := newHTTPClient(config.Timeout)

	// Counters for statistics
	var (
		submitted  int64
		successful int64
		duplicate  int64
		failed     int64
	)

	userChan := make(chan User, config.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for user := range userChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				base := config.BaseURL + "/users/" + user.ID

				if resp, err := client.Put(base+"/profile", user.Profile); err == nil {
					drainAndClose(resp)
				}
				if resp, err := client.Put(base+"/preferences", user.Prefs); err == nil {
					drainAndClose(resp)
				}
				if resp, err := client.Put(base+"/sessions", user.Sessions); err == nil {
					drainAndClose(resp)
				}

				for _, dose := range user.Doses {
					atomic.AddInt64(&submitted, 1)
					switch submitSingleDose(client, base+"/doses", dose) {
					case "success":
						atomic.AddInt64(&successful, 1)
					case "duplicate":
						atomic.AddInt64(&duplicate, 1)
					case "failed":
						atomic.AddInt64(&failed, 1)
					}
				}

				if config.Verbose {
					log.Printf("submitted user %s (%d doses)", user.ID, len(user.Doses))
				}
			}
		}()
	}

	// Feed users to workers
	go func() {
		defer close(userChan)
		for _, user := range users {
			select {
			case <-ctx.Done():
				return
			case userChan <- user:
			}
		}
	}()

	wg.Wait()

	// Update stats
	stats.DosesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.DosesSuccessful = int(atomic.LoadInt64(&successful))
	stats.DosesDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.DosesFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`dose submission completed:
   Successful: %d
   Duplicate: %d
   Failed: %d
`, stats.DosesSuccessful, stats.DosesDuplicate, stats.DosesFailed)

	return nil
}

// submitSingleDose submits a single dose and classifies the outcome.
func submitSingleDose(client *HTTPClient, url string, dose Dose) string {
	resp, err := client.Post(url, dose)
	if err != nil {
		return "failed"
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return "failed"
	}

	switch resp.StatusCode {
	case statusAccepted:
		return "success"
	case statusOK:
		var ack AckResponse
		if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
			return "duplicate"
		}
		return "duplicate"
	default:
		return "failed"
	}
}
