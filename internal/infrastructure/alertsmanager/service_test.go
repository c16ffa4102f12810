package alertsmanager

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/arkade-os/feekeeper/internal/core/domain"
	"github.com/arkade-os/feekeeper/internal/core/ports"
	"github.com/stretchr/testify/require"
)

func TestPublish(t *testing.T) {
	t.Run("fee policies updated", func(t *testing.T) {
		var received []Alert
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			// nolint:errcheck
			json.NewDecoder(r.Body).Decode(&received)
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		svc := NewService(srv.URL)
		err := svc.Publish(context.Background(), ports.FeePoliciesUpdated, ports.FeePoliciesUpdatedAlert{
			SweepId: "sweep-1",
			Updates: []ports.PolicyUpdate{{
				ChanId:         42,
				LiquidityRatio: 70,
				Tier:           "high",
				Old:            domain.Policy{BaseFeeMsat: 1000, FeeRatePpm: 50},
				New:            domain.Policy{BaseFeeMsat: 1000, FeeRatePpm: 200},
			}},
		})
		require.NoError(t, err)
		require.Len(t, received, 1)
		require.Equal(t, string(ports.FeePoliciesUpdated), received[0].Labels["alertname"])
		require.Equal(t, "sweep-1", received[0].Labels["sweep_id"])
		require.Contains(t, received[0].Annotations["description"], "1000 msat + 200 ppm")
	})

	t.Run("sweep failures", func(t *testing.T) {
		var received []Alert
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// nolint:errcheck
			json.NewDecoder(r.Body).Decode(&received)
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		svc := NewService(srv.URL)
		err := svc.Publish(context.Background(), ports.SweepFailures, ports.SweepFailuresAlert{
			SweepId:  "sweep-2",
			Channels: 3,
			Failed:   1,
			Errors:   []string{"POLICY_FETCH_FAILED (3): edge not found"},
		})
		require.NoError(t, err)
		require.Len(t, received, 1)
		require.Equal(t, "warning", received[0].Labels["severity"])
		require.Contains(t, received[0].Annotations["description"], "Failed channels: 1/3")
		require.Contains(t, received[0].Annotations["description"], "edge not found")
	})

	t.Run("invalid message type", func(t *testing.T) {
		svc := NewService("http://127.0.0.1:0")
		err := svc.Publish(context.Background(), ports.SweepFailures, "oops")
		require.ErrorContains(t, err, "invalid message type")
	})
}

func TestSendAlertRetries(t *testing.T) {
	t.Run("retries on server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		svc := NewService(srv.URL)
		err := svc.Publish(context.Background(), "Custom", map[string]any{"k": "v"})
		require.NoError(t, err)
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("no retry on client errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		t.Cleanup(srv.Close)

		svc := NewService(srv.URL)
		err := svc.Publish(context.Background(), "Custom", map[string]any{"k": "v"})
		require.ErrorContains(t, err, "status 400")
		require.Equal(t, int32(1), calls.Load())
	})
}
