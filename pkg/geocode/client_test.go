package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoprofiles/internal/resilience"
)

func newTestClient(srvURL string) Client {
	return NewClient(WithBaseURL(srvURL), WithMinInterval(0))
}

func TestSearch_Match(t *testing.T) {
	var gotUA, gotQuery, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		assert.Equal(t, "/search", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{
			"osm_type": "relation",
			"osm_id": 165475,
			"lat": "36.7014631",
			"lon": "-118.755997",
			"place_rank": 8,
			"display_name": "California, United States"
		}]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithMinInterval(0), WithUserAgent("geoprofiles-test"))
	place, err := c.Search(context.Background(), "California")
	require.NoError(t, err)
	require.NotNil(t, place)

	assert.Equal(t, "geoprofiles-test", gotUA)
	assert.Equal(t, "California", gotQuery)
	assert.Equal(t, "jsonv2", gotFormat)
	assert.Equal(t, "R165475", place.StableID())
	assert.InDelta(t, 36.7014631, place.Latitude, 1e-9)
	assert.InDelta(t, -118.755997, place.Longitude, 1e-9)
	assert.Equal(t, 8, place.PlaceRank)
	assert.Equal(t, "California, United States", place.DisplayName)
}

func TestSearch_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	place, err := newTestClient(srv.URL).Search(context.Background(), "Deep sea")
	require.NoError(t, err)
	assert.Nil(t, place)
}

func TestSearch_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), "Paris")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestSearch_ClientErrorNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), "Paris")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestSearch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), "Paris")
	assert.Error(t, err)
}

func TestSearch_BadCoordinate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"osm_type":"node","osm_id":1,"lat":"north","lon":"0"}]`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), "Paris")
	assert.Error(t, err)
}

func TestSearch_RespectsMinInterval(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithMinInterval(50*time.Millisecond))
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Search(context.Background(), "x")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestSearch_ContextCanceled(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1"), WithMinInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Search(ctx, "x")
	assert.Error(t, err)
}

func TestPlace_StableID(t *testing.T) {
	assert.Equal(t, "N42", (&Place{OSMType: "node", OSMID: 42}).StableID())
	assert.Equal(t, "W7", (&Place{OSMType: "way", OSMID: 7}).StableID())
	assert.Equal(t, "X9", (&Place{OSMID: 9}).StableID())
}
