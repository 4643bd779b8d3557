package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPythClientGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/updates/price/latest", r.URL.Path)
		assert.Equal(t, "feed-1", r.URL.Query().Get("ids[]"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"parsed":[{"id":"feed-1","price":{"price":"1000000000","conf":"5000000","expo":-8,"publish_time":1700000000}}]}`))
	}))
	defer srv.Close()

	client := NewPythClient(srv.URL)
	q, err := client.GetPrice(context.Background(), "feed-1")
	require.NoError(t, err)

	assert.Equal(t, int64(1000000000), q.Price)
	assert.Equal(t, uint64(5000000), q.Conf)
	assert.Equal(t, int32(-8), q.Expo)
	assert.Equal(t, int64(1700000000), q.PublishTime)
}

func TestPythClientNoFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"parsed":[]}`))
	}))
	defer srv.Close()

	_, err := NewPythClient(srv.URL).GetPrice(context.Background(), "feed-x")
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestPythClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewPythClient(srv.URL).GetPrice(context.Background(), "feed-1")
	assert.Error(t, err)
}

func TestStaticOracle(t *testing.T) {
	oc := NewStaticOracle()

	_, err := oc.GetPrice(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoPrice)

	oc.SetPrice("feed-1", Quote{Price: 42, Expo: -2, PublishTime: 100})
	q, err := oc.GetPrice(context.Background(), "feed-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), q.Price)
}
