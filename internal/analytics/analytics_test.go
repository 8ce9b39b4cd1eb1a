package analytics

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"venuemap.taipeimusic.org/internal/metrics"
	"venuemap.taipeimusic.org/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Track(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type panicky struct{}

func (panicky) Track(Event) { panic("tracker exploded") }

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  EventName
		label string
	}{
		{"VenueClick", VenueClicked(models.Venue{ID: "a", Name: "A", Tags: []string{"Jazz", "Blues"}}, SourceSpiderfy), VenueClick, "spiderfy"},
		{"FilterAdd", FilterChanged("tags", "Jazz", true), FilterChange, "tags"},
		{"Search", Searched("jazz", 3), Search, ""},
		{"GeolocationOK", GeolocationResult(true, ""), GeolocationClick, "true"},
		{"GeolocationFailed", GeolocationResult(false, "timeout"), GeolocationClick, "false"},
		{"ClusterClick", ClusterClicked(12, 14.2, "zoom"), ClusterClick, "zoom"},
		{"BottomSheet", BottomSheetExpanded(SheetHalf), BottomSheetExpand, "half"},
		{"MapInteraction", MapInteracted("pan", 13), MapInteraction, "pan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.event.Name != tt.want {
				t.Errorf("Expected name %s, got %s", tt.want, tt.event.Name)
			}
			if got := tt.event.Label(); got != tt.label {
				t.Errorf("Expected label %q, got %q", tt.label, got)
			}
			if tt.event.Time.IsZero() {
				t.Error("Expected event time to be set")
			}
		})
	}

	if got := VenueClicked(models.Venue{Tags: []string{"Jazz", "Blues"}}, SourceMap).Props["tags"]; got != "Jazz,Blues" {
		t.Errorf("Expected joined tags, got %v", got)
	}
	if got := VenueClicked(models.Venue{}, SourceMap).Props["tags"]; got != "none" {
		t.Errorf("Expected none for untagged venue, got %v", got)
	}
	if got := GeolocationResult(true, "").Props["error"]; got != "none" {
		t.Errorf("Expected error none on success, got %v", got)
	}
}

func TestFilterDiff(t *testing.T) {
	prev := models.VenueFilter{Tags: []string{"Jazz", "Rock"}}
	next := models.VenueFilter{Tags: []string{"Rock", "Indie"}, Scenario: []string{"約會"}}

	var got []string
	for _, e := range FilterDiff(prev, next) {
		got = append(got, e.Props["category"].(string)+":"+e.Props["action"].(string)+":"+e.Props["value"].(string))
	}
	want := []string{"tags:add:Indie", "tags:remove:Jazz", "scenario:add:約會"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterDiff = %v, want %v", got, want)
	}

	if events := FilterDiff(next, next); len(events) != 0 {
		t.Errorf("Expected no events for unchanged filter, got %d", len(events))
	}
}

func TestMultiSurvivesPanics(t *testing.T) {
	rec := &recorder{}
	m := Multi{Trackers: []Tracker{panicky{}, rec}, Logger: testLogger()}

	m.Track(Searched("jazz", 1))

	if len(rec.events) != 1 {
		t.Errorf("Expected the healthy tracker to receive the event, got %d", len(rec.events))
	}
}

func TestPrometheusTracker(t *testing.T) {
	counter := metrics.AnalyticsEvents.WithLabelValues(string(ClusterClick), "spiderfy")
	before := testutil.ToFloat64(counter)

	Prometheus{}.Track(ClusterClicked(4, 16, "spiderfy"))
	Prometheus{}.Track(ClusterClicked(4, 16, "spiderfy"))

	if got := testutil.ToFloat64(counter); got != before+2 {
		t.Errorf("Expected counter to increase by 2, got %v -> %v", before, got)
	}
}

func TestBeaconDelivers(t *testing.T) {
	received := make(chan Event, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- e
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	b := NewBeacon(ts.URL, ts.Client(), testLogger())
	b.Start(ctx)

	b.Track(BottomSheetExpanded(SheetFull))

	select {
	case e := <-received:
		if e.Name != BottomSheetExpand || e.Props["state"] != SheetFull {
			t.Errorf("Unexpected event %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Beacon never delivered the event")
	}

	cancel()
	b.Wait()
}

func TestBeaconWaitCoversStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBeacon("http://127.0.0.1:0", nil, testLogger())
	var stopped atomic.Bool
	b.Start(ctx)
	go func() {
		b.Wait()
		stopped.Store(true)
	}()

	// Wait must block on the started goroutine even if it has not run yet,
	// and return once it sees the cancelled context.
	deadline := time.Now().Add(2 * time.Second)
	for !stopped.Load() {
		if time.Now().After(deadline) {
			t.Fatal("Wait never returned after the context was cancelled")
		}
		time.Sleep(time.Millisecond)
	}

	// The counter is already up when Start returns.
	b2 := NewBeacon("http://127.0.0.1:0", nil, testLogger())
	ctx2, cancel2 := context.WithCancel(context.Background())
	b2.Start(ctx2)
	done := make(chan struct{})
	go func() {
		b2.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Wait returned while the beacon was still running")
	case <-time.After(20 * time.Millisecond):
	}
	cancel2()
	<-done
}

func TestBeaconBacksOffAfterFailure(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	b := NewBeacon(ts.URL, ts.Client(), testLogger())
	dropped := testutil.ToFloat64(metrics.AnalyticsBeaconDropped.WithLabelValues("backoff"))

	b.send(context.Background(), Searched("a", 0))
	b.send(context.Background(), Searched("b", 0))

	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Errorf("Expected a single request before backing off, got %d", hits)
	}
	if got := testutil.ToFloat64(metrics.AnalyticsBeaconDropped.WithLabelValues("backoff")); got != dropped+1 {
		t.Errorf("Expected one event dropped while backing off, got %v", got-dropped)
	}
}

func TestBeaconDropsWhenQueueFull(t *testing.T) {
	b := NewBeacon("http://127.0.0.1:0", nil, testLogger())
	full := testutil.ToFloat64(metrics.AnalyticsBeaconDropped.WithLabelValues("queue_full"))

	for i := 0; i < DefaultBeaconQueue+3; i++ {
		b.Track(Searched("x", i))
	}

	if got := testutil.ToFloat64(metrics.AnalyticsBeaconDropped.WithLabelValues("queue_full")); got != full+3 {
		t.Errorf("Expected 3 events dropped, got %v", got-full)
	}
}
