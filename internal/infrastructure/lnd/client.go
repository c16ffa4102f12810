package lndclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/arkade-os/feekeeper/internal/core/domain"
	"github.com/arkade-os/feekeeper/internal/core/ports"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/macaroons"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon.v2"
)

const maxGRPCMsgSize = 32 * 1024 * 1024

type Config struct {
	Host         string
	Port         uint32
	TLSCertPath  string
	MacaroonPath string
}

func (c Config) address() string {
	return net.JoinHostPort(c.Host, strconv.FormatUint(uint64(c.Port), 10))
}

type lndClient struct {
	conn   *grpc.ClientConn
	client lnrpc.LightningClient
}

// NewClient sets up the connection to lnd. The connection is established
// lazily, the first RPC is what reveals an unreachable node.
func NewClient(cfg Config) (ports.LightningService, error) {
	tlsConfig, err := getTLSConfig(cfg.TLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load lnd tls cert %s: %w", cfg.TLSCertPath, err)
	}

	mac, err := getMacaroon(cfg.MacaroonPath)
	if err != nil {
		return nil, err
	}
	macCred, err := macaroons.NewMacaroonCredential(mac)
	if err != nil {
		return nil, fmt.Errorf("failed to build macaroon credential: %w", err)
	}

	logger := log.WithField("component", "lnd")
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)),
		grpc.WithPerRPCCredentials(macCred),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxGRPCMsgSize)),
		grpc.WithChainUnaryInterceptor(grpc_logrus.UnaryClientInterceptor(logger)),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler(
			otelgrpc.WithTracerProvider(otel.GetTracerProvider()),
		)),
	}

	conn, err := grpc.NewClient(cfg.address(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lnd at %s: %w", cfg.address(), err)
	}

	return newClient(conn, lnrpc.NewLightningClient(conn)), nil
}

func newClient(conn *grpc.ClientConn, client lnrpc.LightningClient) *lndClient {
	return &lndClient{conn, client}
}

func (c *lndClient) GetIdentity(ctx context.Context) (string, error) {
	info, err := c.client.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return "", err
	}
	if info.GetIdentityPubkey() == "" {
		return "", fmt.Errorf("lnd returned an empty identity pubkey")
	}
	return info.GetIdentityPubkey(), nil
}

func (c *lndClient) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	resp, err := c.client.ListChannels(ctx, &lnrpc.ListChannelsRequest{})
	if err != nil {
		return nil, err
	}

	channels := make([]domain.Channel, 0, len(resp.GetChannels()))
	for _, ch := range resp.GetChannels() {
		if ch == nil {
			continue
		}
		channels = append(channels, domain.Channel{
			ChanId:       ch.GetChanId(),
			ChannelPoint: ch.GetChannelPoint(),
			LocalBalance: ch.GetLocalBalance(),
			Capacity:     ch.GetCapacity(),
			RemotePubkey: ch.GetRemotePubkey(),
			Active:       ch.GetActive(),
		})
	}
	return channels, nil
}

func (c *lndClient) GetChannelPolicyPair(
	ctx context.Context, chanId uint64,
) (*domain.PolicyPair, error) {
	edge, err := c.client.GetChanInfo(ctx, &lnrpc.ChanInfoRequest{ChanId: chanId})
	if err != nil {
		return nil, err
	}

	return &domain.PolicyPair{
		Node1Pub:    edge.GetNode1Pub(),
		Node1Policy: toPolicy(edge.GetNode1Policy()),
		Node2Pub:    edge.GetNode2Pub(),
		Node2Policy: toPolicy(edge.GetNode2Policy()),
	}, nil
}

func (c *lndClient) UpdateChannelPolicy(
	ctx context.Context, chanPoint domain.Outpoint, policy domain.Policy,
) error {
	req := &lnrpc.PolicyUpdateRequest{
		Scope: &lnrpc.PolicyUpdateRequest_ChanPoint{
			ChanPoint: &lnrpc.ChannelPoint{
				FundingTxid: &lnrpc.ChannelPoint_FundingTxidStr{
					FundingTxidStr: chanPoint.Txid,
				},
				OutputIndex: chanPoint.VOut,
			},
		},
		BaseFeeMsat:   policy.BaseFeeMsat,
		FeeRatePpm:    policy.FeeRatePpm,
		TimeLockDelta: policy.TimeLockDelta,
		MaxHtlcMsat:   policy.MaxHtlcMsat,
	}

	resp, err := c.client.UpdateChannelPolicy(ctx, req)
	if err != nil {
		return err
	}

	if failed := resp.GetFailedUpdates(); len(failed) > 0 {
		reasons := make([]string, 0, len(failed))
		for _, f := range failed {
			reasons = append(reasons, fmt.Sprintf("%s: %s", f.GetReason(), f.GetUpdateError()))
		}
		return fmt.Errorf("lnd rejected policy update: %s", strings.Join(reasons, ", "))
	}
	return nil
}

func (c *lndClient) Close() {
	if c.conn != nil {
		// nolint
		c.conn.Close()
	}
}

func toPolicy(p *lnrpc.RoutingPolicy) *domain.Policy {
	if p == nil {
		return nil
	}
	return &domain.Policy{
		BaseFeeMsat:   p.GetFeeBaseMsat(),
		FeeRatePpm:    uint32(p.GetFeeRateMilliMsat()),
		TimeLockDelta: p.GetTimeLockDelta(),
		MaxHtlcMsat:   p.GetMaxHtlcMsat(),
	}
}

func getMacaroon(path string) (*macaroon.Macaroon, error) {
	macBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read macaroon %s: %s", path, err)
	}
	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("failed to parse macaroon %s: %s", path, err)
	}

	return mac, nil
}

func getTLSConfig(path string) (*tls.Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(buf); !ok {
		return nil, fmt.Errorf("failed to parse tls cert")
	}

	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    caCertPool,
	}, nil
}
