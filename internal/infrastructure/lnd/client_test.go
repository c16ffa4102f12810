package lndclient

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/arkade-os/feekeeper/internal/core/domain"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"gopkg.in/macaroon.v2"
)

const testTxid = "a0bd36e2cd3b1a4b2a6e2b1a8bdc0a7ab9a4c8d16d2f1e6b7e0c2a3d4f5e6b7c"

// fakeLightningClient overrides the RPCs used by the client, calling any
// other method panics through the nil embedded interface.
type fakeLightningClient struct {
	lnrpc.LightningClient

	info      *lnrpc.GetInfoResponse
	channels  *lnrpc.ListChannelsResponse
	edge      *lnrpc.ChannelEdge
	updateRes *lnrpc.PolicyUpdateResponse
	err       error

	chanInfoReq *lnrpc.ChanInfoRequest
	updateReq   *lnrpc.PolicyUpdateRequest
}

func (f *fakeLightningClient) GetInfo(
	_ context.Context, _ *lnrpc.GetInfoRequest, _ ...grpc.CallOption,
) (*lnrpc.GetInfoResponse, error) {
	return f.info, f.err
}

func (f *fakeLightningClient) ListChannels(
	_ context.Context, _ *lnrpc.ListChannelsRequest, _ ...grpc.CallOption,
) (*lnrpc.ListChannelsResponse, error) {
	return f.channels, f.err
}

func (f *fakeLightningClient) GetChanInfo(
	_ context.Context, req *lnrpc.ChanInfoRequest, _ ...grpc.CallOption,
) (*lnrpc.ChannelEdge, error) {
	f.chanInfoReq = req
	return f.edge, f.err
}

func (f *fakeLightningClient) UpdateChannelPolicy(
	_ context.Context, req *lnrpc.PolicyUpdateRequest, _ ...grpc.CallOption,
) (*lnrpc.PolicyUpdateResponse, error) {
	f.updateReq = req
	return f.updateRes, f.err
}

func TestGetIdentity(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		fake := &fakeLightningClient{info: &lnrpc.GetInfoResponse{IdentityPubkey: "02abc"}}
		pubkey, err := newClient(nil, fake).GetIdentity(context.Background())
		require.NoError(t, err)
		require.Equal(t, "02abc", pubkey)
	})

	t.Run("rpc error", func(t *testing.T) {
		fake := &fakeLightningClient{err: fmt.Errorf("connection refused")}
		_, err := newClient(nil, fake).GetIdentity(context.Background())
		require.ErrorContains(t, err, "connection refused")
	})

	t.Run("empty pubkey", func(t *testing.T) {
		fake := &fakeLightningClient{info: &lnrpc.GetInfoResponse{}}
		_, err := newClient(nil, fake).GetIdentity(context.Background())
		require.Error(t, err)
	})
}

func TestListChannels(t *testing.T) {
	fake := &fakeLightningClient{
		channels: &lnrpc.ListChannelsResponse{
			Channels: []*lnrpc.Channel{
				{
					ChanId:       820338278207504385,
					ChannelPoint: testTxid + ":0",
					LocalBalance: 700_000,
					Capacity:     1_000_000,
					RemotePubkey: "03def",
					Active:       true,
				},
				nil,
				{
					ChanId:       820338278207504386,
					ChannelPoint: testTxid + ":1",
					Capacity:     500_000,
				},
			},
		},
	}

	channels, err := newClient(nil, fake).ListChannels(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.Channel{
		{
			ChanId:       820338278207504385,
			ChannelPoint: testTxid + ":0",
			LocalBalance: 700_000,
			Capacity:     1_000_000,
			RemotePubkey: "03def",
			Active:       true,
		},
		{
			ChanId:       820338278207504386,
			ChannelPoint: testTxid + ":1",
			Capacity:     500_000,
		},
	}, channels)

	fake.err = fmt.Errorf("unavailable")
	_, err = newClient(nil, fake).ListChannels(context.Background())
	require.Error(t, err)
}

func TestGetChannelPolicyPair(t *testing.T) {
	fake := &fakeLightningClient{
		edge: &lnrpc.ChannelEdge{
			Node1Pub: "02abc",
			Node1Policy: &lnrpc.RoutingPolicy{
				TimeLockDelta:    80,
				FeeBaseMsat:      1000,
				FeeRateMilliMsat: 50,
				MaxHtlcMsat:      990_000_000,
				MinHtlc:          1000,
			},
			Node2Pub: "03def",
		},
	}

	pair, err := newClient(nil, fake).GetChannelPolicyPair(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, uint64(42), fake.chanInfoReq.GetChanId())
	require.Equal(t, "02abc", pair.Node1Pub)
	require.Equal(t, "03def", pair.Node2Pub)
	require.Equal(t, &domain.Policy{
		BaseFeeMsat:   1000,
		FeeRatePpm:    50,
		TimeLockDelta: 80,
		MaxHtlcMsat:   990_000_000,
	}, pair.Node1Policy)
	require.Nil(t, pair.Node2Policy)
}

func TestUpdateChannelPolicy(t *testing.T) {
	chanPoint := domain.Outpoint{Txid: testTxid, VOut: 1}
	policy := domain.Policy{
		BaseFeeMsat:   1000,
		FeeRatePpm:    200,
		TimeLockDelta: 144,
		MaxHtlcMsat:   990_000_000,
	}

	t.Run("valid", func(t *testing.T) {
		fake := &fakeLightningClient{updateRes: &lnrpc.PolicyUpdateResponse{}}
		err := newClient(nil, fake).UpdateChannelPolicy(context.Background(), chanPoint, policy)
		require.NoError(t, err)

		req := fake.updateReq
		require.NotNil(t, req)
		require.Equal(t, testTxid, req.GetChanPoint().GetFundingTxidStr())
		require.Equal(t, uint32(1), req.GetChanPoint().GetOutputIndex())
		require.False(t, req.GetGlobal())
		require.Equal(t, int64(1000), req.GetBaseFeeMsat())
		require.Equal(t, uint32(200), req.GetFeeRatePpm())
		require.Equal(t, uint32(144), req.GetTimeLockDelta())
		require.Equal(t, uint64(990_000_000), req.GetMaxHtlcMsat())
		require.False(t, req.GetMinHtlcMsatSpecified())
	})

	t.Run("rpc error", func(t *testing.T) {
		fake := &fakeLightningClient{err: fmt.Errorf("permission denied")}
		err := newClient(nil, fake).UpdateChannelPolicy(context.Background(), chanPoint, policy)
		require.ErrorContains(t, err, "permission denied")
	})

	t.Run("failed updates", func(t *testing.T) {
		fake := &fakeLightningClient{
			updateRes: &lnrpc.PolicyUpdateResponse{
				FailedUpdates: []*lnrpc.FailedUpdate{{
					Reason:      lnrpc.UpdateFailure_UPDATE_FAILURE_INVALID_PARAMETER,
					UpdateError: "max htlc exceeds capacity",
				}},
			},
		}
		err := newClient(nil, fake).UpdateChannelPolicy(context.Background(), chanPoint, policy)
		require.ErrorContains(t, err, "max htlc exceeds capacity")
	})
}

func TestNewClientCredentials(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing tls cert", func(t *testing.T) {
		_, err := NewClient(Config{
			Host:         "127.0.0.1",
			Port:         10009,
			TLSCertPath:  filepath.Join(dir, "tls.cert"),
			MacaroonPath: filepath.Join(dir, "admin.macaroon"),
		})
		require.ErrorContains(t, err, "tls cert")
	})

	t.Run("invalid tls cert", func(t *testing.T) {
		certPath := filepath.Join(dir, "bad.cert")
		require.NoError(t, os.WriteFile(certPath, []byte("not a cert"), 0o600))

		_, err := getTLSConfig(certPath)
		require.Error(t, err)
	})

	t.Run("macaroon", func(t *testing.T) {
		mac, err := macaroon.New([]byte("root-key"), []byte("id"), "lnd", macaroon.LatestVersion)
		require.NoError(t, err)
		buf, err := mac.MarshalBinary()
		require.NoError(t, err)

		macPath := filepath.Join(dir, "admin.macaroon")
		require.NoError(t, os.WriteFile(macPath, buf, 0o600))

		got, err := getMacaroon(macPath)
		require.NoError(t, err)
		require.Equal(t, mac.Id(), got.Id())

		badPath := filepath.Join(dir, "bad.macaroon")
		require.NoError(t, os.WriteFile(badPath, []byte{0xff, 0x00}, 0o600))
		_, err = getMacaroon(badPath)
		require.Error(t, err)

		_, err = getMacaroon(filepath.Join(dir, "missing.macaroon"))
		require.Error(t, err)
	})
}

func TestConfigAddress(t *testing.T) {
	require.Equal(t, "127.0.0.1:10009", Config{Host: "127.0.0.1", Port: 10009}.address())
	require.Equal(t, "[::1]:10009", Config{Host: "::1", Port: 10009}.address())
}
