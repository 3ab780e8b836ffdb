package server

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTimerRoutesDriveTheCurrentEvent(t *testing.T) {
	server := newTestServer(t)
	cookie := server.register(t, "alice1")

	recorder, payload := server.do(t, http.MethodGet, "/timer/current?offset=0", nil, cookie)
	if recorder.Code != http.StatusOK || payload["success"] != true {
		t.Fatalf("expected current event, got %d: %v", recorder.Code, payload)
	}
	event := eventFrom(t, payload)
	if event["name"] != "Promodoro" || event["state"] != "paused" || event["duration"] != float64(25) {
		t.Fatalf("unexpected first event %v", event)
	}
	eventID := event["id"]

	recorder, payload = server.do(t, http.MethodGet, "/timer/current?offset=0", nil, cookie)
	if recorder.Code != http.StatusOK || eventFrom(t, payload)["id"] != eventID {
		t.Fatalf("expected polling to return the same event, got %v", payload)
	}

	recorder, payload = server.do(t, http.MethodPost, "/timer/toggle", map[string]interface{}{"id": eventID, "offset": 0}, cookie)
	if recorder.Code != http.StatusOK || eventFrom(t, payload)["state"] != "active" {
		t.Fatalf("expected toggle to activate, got %d: %v", recorder.Code, payload)
	}

	recorder, payload = server.do(t, http.MethodPost, "/timer/advance", map[string]interface{}{"id": eventID, "offset": 0}, cookie)
	if recorder.Code != http.StatusNotFound || payload["message"] != "Event not found." {
		t.Fatalf("expected advance of running event to be rejected, got %d: %v", recorder.Code, payload)
	}

	server.do(t, http.MethodPost, "/timer/toggle", map[string]interface{}{"id": eventID, "offset": 0}, cookie)
	recorder, payload = server.do(t, http.MethodPost, "/timer/advance", map[string]interface{}{"id": eventID, "offset": 0}, cookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected advance to succeed, got %d: %v", recorder.Code, payload)
	}
	advanced := eventFrom(t, payload)
	if advanced["name"] != "ShortBreak" || advanced["state"] != "paused" {
		t.Fatalf("unexpected advanced event %v", advanced)
	}
}

func TestTimerRoutesValidateInput(t *testing.T) {
	server := newTestServer(t)
	cookie := server.register(t, "alice1")

	testCases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		field  string
	}{
		{name: "missing offset", method: http.MethodGet, path: "/timer/current", field: "offset"},
		{name: "non numeric offset", method: http.MethodGet, path: "/timer/current?offset=abc", field: "offset"},
		{name: "fractional offset", method: http.MethodGet, path: "/stats/streak?offset=1.5", field: "offset"},
		{name: "missing id", method: http.MethodPost, path: "/timer/toggle", body: map[string]interface{}{"offset": 0}, field: "id"},
		{name: "missing body offset", method: http.MethodPost, path: "/timer/advance", body: map[string]interface{}{"id": 1}, field: "offset"},
		{name: "malformed id", method: http.MethodPost, path: "/timer/toggle", body: map[string]interface{}{"id": "one", "offset": 0}},
		{name: "zero id", method: http.MethodPost, path: "/timer/toggle", body: map[string]interface{}{"id": 0, "offset": 0}, field: "id"},
		{name: "negative id", method: http.MethodPost, path: "/timer/advance", body: map[string]interface{}{"id": -3, "offset": 0}, field: "id"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder, payload := server.do(t, testCase.method, testCase.path, testCase.body, cookie)
			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %v", recorder.Code, payload)
			}
			if payload["message"] != "Invalid request." {
				t.Fatalf("expected generic message, got %v", payload["message"])
			}
			if testCase.field != "" && payload["field"] != testCase.field {
				t.Fatalf("expected field %s, got %v", testCase.field, payload["field"])
			}
		})
	}
}

func TestTimerRoutesAcceptAnyIntegerOffset(t *testing.T) {
	server := newTestServer(t)
	cookie := server.register(t, "alice1")

	for _, offset := range []string{"900", "-1000", "1440"} {
		recorder, payload := server.do(t, http.MethodGet, "/timer/current?offset="+offset, nil, cookie)
		if recorder.Code != http.StatusOK {
			t.Fatalf("offset %s: expected 200, got %d: %v", offset, recorder.Code, payload)
		}
		if eventFrom(t, payload)["state"] != "paused" {
			t.Fatalf("offset %s: expected paused event, got %v", offset, payload)
		}
	}

	recorder, payload := server.do(t, http.MethodGet, "/stats/daily-progress?offset=-1000", nil, cookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected stats to accept a wide offset, got %d: %v", recorder.Code, payload)
	}
}

func TestTimerRoutesHideOtherUsersEvents(t *testing.T) {
	server := newTestServer(t)
	owner := server.register(t, "alice1")
	intruder := server.register(t, "bobby2")

	_, payload := server.do(t, http.MethodGet, "/timer/current?offset=0", nil, owner)
	eventID := eventFrom(t, payload)["id"]

	recorder, payload := server.do(t, http.MethodPost, "/timer/toggle", map[string]interface{}{"id": eventID, "offset": 0}, intruder)
	if recorder.Code != http.StatusNotFound || payload["message"] != "Event not found." {
		t.Fatalf("expected foreign event to be hidden, got %d: %v", recorder.Code, payload)
	}
}

func TestTimerStreamDeliversChanges(t *testing.T) {
	server := newTestServer(t)
	cookie := server.register(t, "alice1")
	_, payload := server.do(t, http.MethodGet, "/timer/current?offset=0", nil, cookie)
	eventID := eventFrom(t, payload)["id"]

	httpServer := httptest.NewServer(server.handler)
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, httpServer.URL+"/timer/stream", http.NoBody)
	if err != nil {
		t.Fatalf("failed to build stream request: %v", err)
	}
	request.AddCookie(cookie)
	response, err := httpServer.Client().Do(request)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status %d", response.StatusCode)
	}
	if !strings.HasPrefix(response.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected content type %q", response.Header.Get("Content-Type"))
	}

	recorder, _ := server.do(t, http.MethodPost, "/timer/toggle", map[string]interface{}{"id": eventID, "offset": 0}, cookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected toggle to succeed, got %d", recorder.Code)
	}

	reader := bufio.NewReader(response.Body)
	eventType, data := readServerSentEvent(t, reader)
	if eventType != RealtimeEventTimerChanged {
		t.Fatalf("expected %s event, got %q", RealtimeEventTimerChanged, eventType)
	}
	if !strings.Contains(data, fmt.Sprintf(`"event_id":%v`, eventID)) {
		t.Fatalf("expected event id %v in %s", eventID, data)
	}
}

func readServerSentEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	t.Helper()
	var eventType string
	var data strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream read failed: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if eventType != "" {
				return eventType, data.String()
			}
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
