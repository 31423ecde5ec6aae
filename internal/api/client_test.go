package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zsprackett/flowcontrol/internal/api"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestCheckIn(t *testing.T) {
	var got api.CheckInRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/queue/check-in" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":                true,
			"patient_id":             "P042",
			"queue_number":           17,
			"current_station":        "registration",
			"position_in_queue":      5,
			"estimated_wait_minutes": 25,
			"complexity_score":       map[string]any{"complexity": "moderate", "estimated_duration_minutes": 40, "priority_score": 0.6},
		})
	}))
	defer srv.Close()

	c := api.New(srv.URL, discardLogger())
	resp, err := c.CheckIn(context.Background(), api.CheckInRequest{PatientID: "P042", ChiefComplaint: "fever", Language: api.LanguageEnglish})
	if err != nil {
		t.Fatal(err)
	}
	if got.PatientID != "P042" || got.ChiefComplaint != "fever" || got.Language != api.LanguageEnglish {
		t.Errorf("request body: %+v", got)
	}
	if resp.QueueNumber != 17 || resp.PositionInQueue != 5 || resp.ComplexityScore == nil || resp.ComplexityScore.Complexity != "moderate" {
		t.Errorf("response: %+v", resp)
	}
}

func TestStatusAndJourneyAcceptFractionalMinutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/queue/status/P042":
			writeJSON(w, http.StatusOK, map[string]any{"patient_id": "P042", "position_in_queue": 3, "estimated_wait_minutes": 12.5})
		case "/api/queue/journey/P042":
			writeJSON(w, http.StatusOK, map[string]any{
				"patient_id": "P042",
				"journey":    []map[string]any{{"station": "lab", "status": "waiting", "position": 2, "estimated_wait": 7.25}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := api.New(srv.URL, discardLogger())
	st, err := c.Status(context.Background(), "P042")
	if err != nil {
		t.Fatal(err)
	}
	if st.PositionInQueue != 3 || st.EstimatedWaitMinutes != 12.5 {
		t.Errorf("status: %+v", st)
	}
	j, err := c.Journey(context.Background(), "P042")
	if err != nil {
		t.Fatal(err)
	}
	if len(j.Journey) != 1 || j.Journey[0].EstimatedWait == nil || *j.Journey[0].EstimatedWait != 7.25 {
		t.Errorf("journey: %+v", j.Journey)
	}
}

func TestErrorDetail(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusNotFound, `{"detail":"Patient not found"}`, "Patient not found"},
		{http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"},{"msg":"bad language"}]}`, "field required; bad language"},
		{http.StatusBadGateway, `upstream down`, "upstream down"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			io.WriteString(w, tc.body)
		}))
		c := api.New(srv.URL, discardLogger())
		_, err := c.Status(context.Background(), "P404")
		srv.Close()

		var apiErr *api.Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("%d: got %v, want *api.Error", tc.status, err)
		}
		if apiErr.StatusCode != tc.status || apiErr.Detail != tc.want {
			t.Errorf("got %d %q want %d %q", apiErr.StatusCode, apiErr.Detail, tc.status, tc.want)
		}
	}
}

func TestSimulateUsesDefaultsAndToken(t *testing.T) {
	type call struct{ path, query, auth string }
	calls := make(chan call, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls <- call{r.URL.Path, r.URL.RawQuery, r.Header.Get("Authorization")}
		writeJSON(w, http.StatusOK, map[string]any{"message": "ok"})
	}))
	defer srv.Close()

	c := api.New(srv.URL+"/", discardLogger())
	c.SetToken("tok")
	if _, err := c.SimulateBottleneck(context.Background(), "lab", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ResolveBottleneck(context.Background(), "lab", 5); err != nil {
		t.Fatal(err)
	}

	first, second := <-calls, <-calls
	if first.path != "/api/dashboard/simulate/bottleneck/lab" || first.query != "queue_increase=20" || first.auth != "Bearer tok" {
		t.Errorf("simulate: %+v", first)
	}
	if second.path != "/api/dashboard/simulate/resolve/lab" || second.query != "queue_decrease=5" {
		t.Errorf("resolve: %+v", second)
	}
}

func TestPatientCallsCarryNoToken(t *testing.T) {
	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := api.New(srv.URL, discardLogger())
	c.SetToken("tok")
	if err := c.ClearData(context.Background(), "P042"); err != nil {
		t.Fatal(err)
	}
	if a := <-auth; a != "" {
		t.Errorf("patient call sent Authorization %q", a)
	}
}

func TestRealtimeAndAlerts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/dashboard/realtime":
			writeJSON(w, http.StatusOK, map[string]any{
				"stations": []map[string]any{
					{"station": "pharmacy", "queue_length": 20, "average_wait_minutes": 30.5, "status": "critical"},
					{"station": "lab", "queue_length": 5, "average_wait_minutes": 8, "status": "optimal"},
				},
				"bottlenecks": []string{"pharmacy"},
			})
		case "/api/dashboard/alerts":
			writeJSON(w, http.StatusOK, map[string]any{
				"alerts":      []map[string]any{{"alert_id": "A1", "station": "pharmacy", "severity": "critical", "recommendations": []map[string]any{{"action": "open window", "priority": 1}}}},
				"total_count": 1,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := api.New(srv.URL, discardLogger())
	rt, err := c.Realtime(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rt.Stations) != 2 || rt.Stations[0].Status != api.StationCritical || rt.Bottlenecks[0] != "pharmacy" {
		t.Errorf("realtime: %+v", rt)
	}
	alerts, err := c.Alerts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if alerts.TotalCount != 1 || alerts.Alerts[0].Recommendations[0].Action != "open window" {
		t.Errorf("alerts: %+v", alerts)
	}
}

func TestErrorText(t *testing.T) {
	wrapped := fmt.Errorf("check in: %w", &api.Error{StatusCode: 404, Detail: "Patient not found"})
	if got := api.ErrorText(wrapped); got != "Patient not found" {
		t.Errorf("detail: got %q", got)
	}
	bare := &api.Error{StatusCode: 500}
	if got := api.ErrorText(bare); got != "api returned 500" {
		t.Errorf("no detail: got %q", got)
	}
	if got := api.ErrorText(errors.New("dial tcp: refused")); got != "dial tcp: refused" {
		t.Errorf("plain: got %q", got)
	}
}

func TestTransportErrorIsNotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := api.New(url, discardLogger()).Health(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		t.Errorf("transport failure reported as %v", apiErr)
	}
}
