package integration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// These tests run against a live server:
//
//	INTEGRATION_BASE_URL=http://localhost:8080 go test ./tests/integration/...
func baseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("INTEGRATION_BASE_URL")
	if url == "" {
		t.Skip("INTEGRATION_BASE_URL not set")
	}
	return strings.TrimRight(url, "/")
}

type streamEvent struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	ID        string          `json:"id"`
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func fetchEvents(t *testing.T, url string) []streamEvent {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	var body struct {
		Events []streamEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode events: %v", err)
	}
	return body.Events
}

func TestStreamFlow(t *testing.T) {
	streamURL := fmt.Sprintf("%s/streams/it-%s", baseURL(t), uuid.NewString())

	// 1. Create the stream
	resp := post(t, streamURL, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201 Created, got %d", resp.StatusCode)
	}

	// 2. Append progress events
	batchSize := 20
	for i := 0; i < batchSize; i++ {
		resp := post(t, streamURL+"/events", fmt.Sprintf(`{"event":"progress","data":{"step":%d}}`, i))
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("Expected status 202 Accepted, got %d", resp.StatusCode)
		}
	}

	// 3. Verify history order and the cursor
	events := fetchEvents(t, streamURL+"/events")
	if len(events) != batchSize+1 {
		t.Fatalf("Expected %d events, got %d", batchSize+1, len(events))
	}
	if events[0].Event != "start" {
		t.Fatalf("Expected first event to be start, got %q", events[0].Event)
	}
	for i := 1; i < len(events); i++ {
		if events[i-1].ID >= events[i].ID {
			t.Fatalf("Events out of order at %d: %s >= %s", i, events[i-1].ID, events[i].ID)
		}
	}

	tail := fetchEvents(t, streamURL+"/events?last_event_id="+events[batchSize-1].ID)
	if len(tail) != 1 || tail[0].ID != events[batchSize].ID {
		t.Fatalf("Expected only the newest event after the cursor, got %d events", len(tail))
	}

	// 4. Tail over SSE and complete the stream
	client := &http.Client{Timeout: 10 * time.Second}
	req, _ := http.NewRequest(http.MethodGet, streamURL+"/sse", nil)
	req.Header.Set("Last-Event-ID", events[batchSize].ID)
	sse, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to open SSE stream: %v", err)
	}
	defer sse.Body.Close()

	resp = post(t, streamURL+"/complete", "")
	resp.Body.Close()

	scanner := bufio.NewScanner(sse.Body)
	var got []streamEvent
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("Bad SSE payload: %v", err)
		}
		got = append(got, ev)
		if ev.Event == "complete" {
			break
		}
	}

	if len(got) != 1 || got[0].Event != "complete" {
		t.Fatalf("Expected exactly the complete event over SSE, got %+v", got)
	}
}
