package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGovernorPeerHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/governor/accept", r.URL.Path)

		var req acceptGovernorshipReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.Owner)

		// 只接受 alice 的 key
		accepted := req.KeyPath == "alice"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"data": map[string]bool{"accepted": accepted},
		})
	}))
	defer srv.Close()

	peer := NewHTTPGovernorPeer()

	accepted, err := peer.AcceptGovernorship(context.Background(), srv.URL, "alice", "alice")
	require.NoError(t, err)
	assert.True(t, accepted)

	accepted, err = peer.AcceptGovernorship(context.Background(), srv.URL, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestHTTPGovernorPeerUnreachable(t *testing.T) {
	peer := NewHTTPGovernorPeer()
	_, err := peer.AcceptGovernorship(context.Background(), "http://127.0.0.1:1", "alice", "alice")
	assert.Error(t, err)
}
