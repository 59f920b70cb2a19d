package geodata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/detroit-blocks/blockline/internal/resilience"
)

const (
	testParcelLayer = "parcels/FeatureServer/0"
	testStreetLayer = "streets/FeatureServer/0"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestFetchParcels_Paged(t *testing.T) {
	pages := map[string]string{
		"0": `{"features":[
			{"attributes":{"parcelno":"13000123.001","prop_addr":"1234 WOODWARD AVE","asv":42000},"geometry":{"x":-83.05,"y":42.33}},
			{"attributes":{"parcelno":"13000124.002","prop_addr":"1240 WOODWARD AVE"},"geometry":{"x":-83.051,"y":42.331}}
		],"exceededTransferLimit":true}`,
		"2": `{"features":[
			{"attributes":{"parcelno":"13000125.003","prop_addr":"1246 WOODWARD AVE"},"geometry":{"x":-83.052,"y":42.332}}
		]}`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+testParcelLayer+"/query", r.URL.Path)
		q := r.URL.Query()
		if q.Get("returnCountOnly") == "true" {
			fmt.Fprint(w, `{"count":3}`)
			return
		}
		assert.Equal(t, "*", q.Get("outFields"))
		assert.Equal(t, "4326", q.Get("outSR"))
		fmt.Fprint(w, pages[q.Get("resultOffset")])
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testParcelLayer, testStreetLayer,
		WithPageSize(2), WithConcurrency(2), WithRetry(fastRetry()))

	parcels, err := c.FetchParcels(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, parcels, 3)

	// Page order is preserved.
	assert.Equal(t, "13000123.001", parcels[0].Parcel.ID)
	assert.Equal(t, "1234 WOODWARD AVE", parcels[0].Parcel.Address)
	assert.InDelta(t, 42000.0, parcels[0].Parcel.AssessedValue, 0.001)
	assert.Equal(t, "13000125.003", parcels[2].Parcel.ID)

	pt, ok := parcels[0].Geometry.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, -83.05, pt.X(), 1e-9)
	assert.InDelta(t, 42.33, pt.Y(), 1e-9)
}

func TestFetchStreets_KeepsLongestPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("returnCountOnly") == "true" {
			fmt.Fprint(w, `{"count":2}`)
			return
		}
		fmt.Fprint(w, `{"features":[
			{"attributes":{"street_name":"WOODWARD","object_id":101},
			 "geometry":{"paths":[[[-83.05,42.33],[-83.05,42.34]],[[-83.05,42.34],[-83.05,42.35],[-83.05,42.36]]]}},
			{"attributes":{"street_name":"","object_id":102},
			 "geometry":{"paths":[[[-83.06,42.33],[-83.06,42.34]]]}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testParcelLayer, testStreetLayer, WithRetry(fastRetry()))

	streets, err := c.FetchStreets(context.Background(), "")
	require.NoError(t, err)
	// The unnamed street is dropped.
	require.Len(t, streets, 1)
	assert.Equal(t, "WOODWARD", streets[0].Name)
	assert.Equal(t, "101", streets[0].ID)
	// Longest of the two paths wins.
	assert.Equal(t, 3, streets[0].Line.NumCoords())
}

func TestQuery_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("returnCountOnly") == "true" {
			fmt.Fprint(w, `{"count":1}`)
			return
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"features":[{"attributes":{"street_name":"CASS","object_id":1},
			"geometry":{"paths":[[[-83.06,42.33],[-83.06,42.34]]]}}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testParcelLayer, testStreetLayer, WithRetry(fastRetry()))

	streets, err := c.FetchStreets(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, streets, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQuery_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testParcelLayer, testStreetLayer, WithRetry(fastRetry()))

	_, err := c.FetchStreets(context.Background(), "bad where")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestQuery_InBandServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("returnCountOnly") == "true" {
			fmt.Fprint(w, `{"count":1}`)
			return
		}
		fmt.Fprint(w, `{"error":{"code":400,"message":"Invalid where clause"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testParcelLayer, testStreetLayer, WithRetry(fastRetry()))

	_, err := c.FetchStreets(context.Background(), "nonsense")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid where clause")
}

func TestFetchParcels_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count":0}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testParcelLayer, testStreetLayer, WithRetry(fastRetry()))

	parcels, err := c.FetchParcels(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, parcels)
}

func TestEsriGeometry_Polygon(t *testing.T) {
	g := &esriGeometry{Rings: [][][]float64{{
		{-83.05, 42.33}, {-83.04, 42.33}, {-83.04, 42.34}, {-83.05, 42.33},
	}}}
	converted, err := g.toGeom()
	require.NoError(t, err)
	poly, ok := converted.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 1, poly.NumLinearRings())
}

func TestEsriGeometry_Degenerate(t *testing.T) {
	_, err := (&esriGeometry{}).toGeom()
	assert.Error(t, err)

	_, err = (&esriGeometry{Paths: [][][]float64{{{-83.05, 42.33}}}}).toLineString()
	assert.Error(t, err)
}

func TestBreaker_IsolatedPerLayer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/"+testParcelLayer+"/query" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		q := r.URL.Query()
		if q.Get("returnCountOnly") == "true" {
			fmt.Fprint(w, `{"count":1}`)
			return
		}
		fmt.Fprint(w, `{"features":[
			{"attributes":{"street_name":"WOODWARD","object_id":101},
			 "geometry":{"paths":[[[-83.05,42.33],[-83.05,42.34]]]}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testParcelLayer, testStreetLayer,
		WithRetry(fastRetry()),
		WithCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 1,
			ResetTimeout:     time.Minute,
		}))

	_, err := c.FetchParcels(context.Background(), "")
	require.Error(t, err)

	// The parcel layer's breaker is open, but street queries still flow.
	streets, err := c.FetchStreets(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, streets, 1)
}
