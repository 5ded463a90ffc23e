package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/reviewbuddy/place"
)

var luna = place.Record{Name: "Cafe Luna", Address: "123 Main St, Springfield, USA"}

func TestFetchScore_Success(t *testing.T) {
	var gotName, gotReviews string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotName = r.URL.Query().Get("place_name")
		gotReviews = r.URL.Query().Get("number_of_reviews")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"score": 4.3}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	got := c.FetchScore(context.Background(), luna)
	if got != place.Value(4.3) {
		t.Fatalf("FetchScore: got %v, want 4.3", got)
	}
	if gotName != "Cafe Luna Springfield" {
		t.Errorf("place_name: got %q", gotName)
	}
	if gotReviews != "10" {
		t.Errorf("number_of_reviews: got %q", gotReviews)
	}
}

func TestFetchScore_NoCitySkipsRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"score": 5}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	got := c.FetchScore(context.Background(), place.Record{Name: "Nowhere", Address: "Unknown"})
	if got != place.Unavailable() {
		t.Errorf("FetchScore: got %v, want unavailable", got)
	}
	if hits.Load() != 0 {
		t.Errorf("requests: got %d, want 0", hits.Load())
	}
}

func TestFetchScore_NonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if got := c.FetchScore(context.Background(), luna); got != place.Unavailable() {
		t.Errorf("FetchScore: got %v, want unavailable", got)
	}
}

func TestFetchScore_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url)
	if got := c.FetchScore(context.Background(), luna); got != place.Unavailable() {
		t.Errorf("FetchScore: got %v, want unavailable", got)
	}
}

func TestFetchScore_MissingScoreField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rating": 4}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if got := c.FetchScore(context.Background(), luna); got != place.Unavailable() {
		t.Errorf("FetchScore: got %v, want unavailable", got)
	}
}

func TestFetchScore_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, WithTimeout(50*time.Millisecond))
	start := time.Now()
	if got := c.FetchScore(context.Background(), luna); got != place.Unavailable() {
		t.Errorf("FetchScore: got %v, want unavailable", got)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout not applied")
	}
}

func TestFetchScore_BreakerOpensAndRecovers(t *testing.T) {
	var hits atomic.Int32
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"score": 3.5}`))
	}))
	defer srv.Close()

	now := time.Unix(1_700_000_000, 0)
	c := New(srv.URL, WithBreaker(2, time.Minute), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	c.FetchScore(ctx, luna)
	c.FetchScore(ctx, luna)
	if c.breaker.current() != breakerOpen {
		t.Fatalf("breaker: got %s, want open", c.breaker.current())
	}

	c.FetchScore(ctx, luna)
	if hits.Load() != 2 {
		t.Errorf("requests while open: got %d, want 2", hits.Load())
	}

	healthy.Store(true)
	now = now.Add(2 * time.Minute)
	if got := c.FetchScore(ctx, luna); got != place.Value(3.5) {
		t.Errorf("half-open request: got %v, want 3.5", got)
	}
	if c.breaker.current() != breakerClosed {
		t.Errorf("breaker after recovery: got %s, want closed", c.breaker.current())
	}
}

func TestFetchScore_CancelledTrialFreesHalfOpen(t *testing.T) {
	var hits atomic.Int32
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"score": 4.1}`))
	}))
	defer srv.Close()

	now := time.Unix(1_700_000_000, 0)
	c := New(srv.URL, WithBreaker(1, time.Minute), WithClock(func() time.Time { return now }))

	c.FetchScore(context.Background(), luna)
	if c.breaker.current() != breakerOpen {
		t.Fatalf("breaker: got %s, want open", c.breaker.current())
	}

	healthy.Store(true)
	now = now.Add(2 * time.Minute)
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := c.FetchScore(cancelled, luna); got != place.Unavailable() {
		t.Fatalf("cancelled trial: got %v, want unavailable", got)
	}

	now = now.Add(time.Hour)
	if got := c.FetchScore(context.Background(), luna); got != place.Value(4.1) {
		t.Fatalf("after cancelled trial: got %v, want 4.1", got)
	}
	if c.breaker.current() != breakerClosed {
		t.Errorf("breaker: got %s, want closed", c.breaker.current())
	}
}

func TestRequestURL(t *testing.T) {
	c := New("https://score.example/predict", WithReviews(25))
	u, ok := c.RequestURL(luna)
	if !ok {
		t.Fatal("RequestURL: expected ok")
	}
	want := "https://score.example/predict?number_of_reviews=25&place_name=Cafe+Luna+Springfield"
	if u != want {
		t.Errorf("RequestURL:\n got %s\nwant %s", u, want)
	}
}
