package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/arkade-os/feekeeper/internal/core/application"
	"github.com/arkade-os/feekeeper/internal/core/domain"
	"github.com/arkade-os/feekeeper/internal/core/ports"
	alertsmanager "github.com/arkade-os/feekeeper/internal/infrastructure/alertsmanager"
	lndclient "github.com/arkade-os/feekeeper/internal/infrastructure/lnd"
	timescheduler "github.com/arkade-os/feekeeper/internal/infrastructure/scheduler/gocron"
	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

var (
	supportedNetworks = supportedType{
		"bitcoin": {},
		"testnet": {},
		"signet":  {},
		"regtest": {},
	}
	// lnd stores mainnet credentials under "mainnet" rather than "bitcoin".
	macaroonNetworkDirs = map[string]string{
		"bitcoin": "mainnet",
	}
)

type Config struct {
	Interval      int64
	LowFeePpm     uint32
	LowFeeBase    int64
	MediumFeePpm  uint32
	MediumFeeBase int64
	HighFeePpm    uint32
	HighFeeBase   int64
	DryRun        bool

	LndHost      string
	LndPort      uint32
	Network      string
	LndDir       string
	TLSCertPath  string
	MacaroonPath string

	LogLevel              int
	AlertManagerURL       string
	OtelCollectorEndpoint string
	OtelPushInterval      int64
	ConfigFile            string

	lnd       ports.LightningService
	scheduler ports.SchedulerService
	alerts    ports.Alerts
	svc       application.Service
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(*c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	defaultInterval      = 60 // seconds
	defaultLowFeePpm     = 10
	defaultLowFeeBase    = 0
	defaultMediumFeePpm  = 50
	defaultMediumFeeBase = 1000
	defaultHighFeePpm    = 200
	defaultHighFeeBase   = 1000
	defaultLndHost       = "127.0.0.1"
	defaultLndPort       = 10009
	defaultNetwork       = "bitcoin"
	defaultLndDir        = btcutil.AppDataDir("lnd", false)
	defaultLogLevel      = 4
	defaultDryRun        = false

	defaultOtelPushInterval = 10 // seconds
)

// env returns a list of strings prefixed with `FEEKEEPER_`.
// This is used as a syntax sugar for defining env vars.
func env(values ...string) []string {
	envs := make([]string, len(values))

	for i, value := range values {
		envs[i] = fmt.Sprintf("FEEKEEPER_%s", value)
	}

	return envs
}

var (
	Interval = &cli.Int64Flag{
		Usage: "Seconds to wait after a sweep completes before starting the next one",
		Name:  "interval", EnvVars: env("INTERVAL"),
		Value: int64(defaultInterval),
	}

	LowFeePpm = &cli.UintFlag{
		Usage: "Fee rate (ppm) for channels with at most 40% of local liquidity",
		Name:  "low-fee-ppm", EnvVars: env("LOW_FEE_PPM"),
		Value: uint(defaultLowFeePpm),
	}

	LowFeeBase = &cli.Int64Flag{
		Usage: "Base fee (msat) for channels with at most 40% of local liquidity",
		Name:  "low-fee-base", EnvVars: env("LOW_FEE_BASE"),
		Value: int64(defaultLowFeeBase),
	}

	MediumFeePpm = &cli.UintFlag{
		Usage: "Fee rate (ppm) for channels with more than 40% and at most 60% of local liquidity",
		Name:  "medium-fee-ppm", EnvVars: env("MEDIUM_FEE_PPM"),
		Value: uint(defaultMediumFeePpm),
	}

	MediumFeeBase = &cli.Int64Flag{
		Usage: "Base fee (msat) for channels with more than 40% and at most 60% of local liquidity",
		Name:  "medium-fee-base", EnvVars: env("MEDIUM_FEE_BASE"),
		Value: int64(defaultMediumFeeBase),
	}

	HighFeePpm = &cli.UintFlag{
		Usage: "Fee rate (ppm) for channels with more than 60% of local liquidity",
		Name:  "high-fee-ppm", EnvVars: env("HIGH_FEE_PPM"),
		Value: uint(defaultHighFeePpm),
	}

	HighFeeBase = &cli.Int64Flag{
		Usage: "Base fee (msat) for channels with more than 60% of local liquidity",
		Name:  "high-fee-base", EnvVars: env("HIGH_FEE_BASE"),
		Value: int64(defaultHighFeeBase),
	}

	DryRun = &cli.BoolFlag{
		Usage: "Compute and log fee updates without applying them",
		Name:  "dry-run", EnvVars: env("DRY_RUN"),
		Value: defaultDryRun,
	}

	LndHost = &cli.StringFlag{
		Usage: "Host of the lnd gRPC interface",
		Name:  "lnd-host", EnvVars: env("LND_HOST"),
		Value: defaultLndHost,
	}

	LndPort = &cli.UintFlag{
		Usage: "Port of the lnd gRPC interface",
		Name:  "lnd-port", EnvVars: env("LND_PORT"),
		Value: uint(defaultLndPort),
	}

	Network = &cli.StringFlag{
		Usage: fmt.Sprintf("Network lnd runs on (%s)", supportedNetworks),
		Name:  "network", EnvVars: env("NETWORK"),
		Value: defaultNetwork,
	}

	LndDir = &cli.StringFlag{
		Usage: "lnd data directory used to locate the TLS cert and macaroon if not given",
		Name:  "lnd-dir", EnvVars: env("LND_DIR"),
		Value: defaultLndDir,
	}

	TLSCertPath = &cli.StringFlag{
		Usage: "Path to lnd's TLS certificate, defaults to <lnd-dir>/tls.cert",
		Name:  "cert-file", EnvVars: env("CERT_FILE"),
	}

	MacaroonPath = &cli.StringFlag{
		Usage: "Path to lnd's admin macaroon, " +
			"defaults to <lnd-dir>/data/chain/bitcoin/<network>/admin.macaroon",
		Name: "macaroon-file", EnvVars: env("MACAROON_FILE"),
	}

	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}

	AlertManagerURL = &cli.StringFlag{
		Usage: "Prometheus Alertmanager URL, alerts are disabled if empty",
		Name:  "alert-manager-url", EnvVars: env("ALERT_MANAGER_URL"),
	}

	OtelCollectorEndpoint = &cli.StringFlag{
		Usage: "OpenTelemetry collector endpoint, telemetry is disabled if empty",
		Name:  "collector-endpoint", EnvVars: env("COLLECTOR_ENDPOINT"),
	}

	OtelPushInterval = &cli.Int64Flag{
		Usage: "OpenTelemetry metrics push interval in seconds",
		Name:  "otel-push-interval", EnvVars: env("OTEL_PUSH_INTERVAL"),
		Value: int64(defaultOtelPushInterval),
	}

	ConfigFile = &cli.StringFlag{
		Usage: "Optional config file (yaml, toml or json), flags and env vars take precedence",
		Name:  "config-file", EnvVars: env("CONFIG_FILE"),
	}
)

var Flags = []cli.Flag{
	Interval,
	LowFeePpm,
	LowFeeBase,
	MediumFeePpm,
	MediumFeeBase,
	HighFeePpm,
	HighFeeBase,
	DryRun,
	LndHost,
	LndPort,
	Network,
	LndDir,
	TLSCertPath,
	MacaroonPath,
	LogLevel,
	AlertManagerURL,
	OtelCollectorEndpoint,
	OtelPushInterval,
	ConfigFile,
}

func LoadConfig(c *cli.Context) (*Config, error) {
	src := source{ctx: c}
	if path := c.String(ConfigFile.Name); path != "" {
		file := viper.New()
		file.SetConfigFile(path)
		if err := file.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		src.file = file
	}

	network := src.String(Network.Name)
	lndDir := src.String(LndDir.Name)

	tlsCertPath := src.String(TLSCertPath.Name)
	if tlsCertPath == "" {
		tlsCertPath = filepath.Join(lndDir, "tls.cert")
	}
	macaroonPath := src.String(MacaroonPath.Name)
	if macaroonPath == "" {
		macaroonPath = defaultMacaroonPath(lndDir, network)
	}

	return &Config{
		Interval:              src.Int64(Interval.Name),
		LowFeePpm:             uint32(src.Uint(LowFeePpm.Name)),
		LowFeeBase:            src.Int64(LowFeeBase.Name),
		MediumFeePpm:          uint32(src.Uint(MediumFeePpm.Name)),
		MediumFeeBase:         src.Int64(MediumFeeBase.Name),
		HighFeePpm:            uint32(src.Uint(HighFeePpm.Name)),
		HighFeeBase:           src.Int64(HighFeeBase.Name),
		DryRun:                src.Bool(DryRun.Name),
		LndHost:               src.String(LndHost.Name),
		LndPort:               uint32(src.Uint(LndPort.Name)),
		Network:               network,
		LndDir:                lndDir,
		TLSCertPath:           tlsCertPath,
		MacaroonPath:          macaroonPath,
		LogLevel:              src.Int(LogLevel.Name),
		AlertManagerURL:       src.String(AlertManagerURL.Name),
		OtelCollectorEndpoint: src.String(OtelCollectorEndpoint.Name),
		OtelPushInterval:      src.Int64(OtelPushInterval.Name),
		ConfigFile:            c.String(ConfigFile.Name),
	}, nil
}

func defaultMacaroonPath(lndDir, network string) string {
	netDir := network
	if dir, ok := macaroonNetworkDirs[network]; ok {
		netDir = dir
	}
	return filepath.Join(lndDir, "data", "chain", "bitcoin", netDir, "admin.macaroon")
}

func (c *Config) Validate() error {
	if !supportedNetworks.supports(c.Network) {
		return fmt.Errorf("network not supported, please select one of: %s", supportedNetworks)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("invalid interval, must be at least 1 second")
	}
	if c.LowFeeBase < 0 || c.MediumFeeBase < 0 || c.HighFeeBase < 0 {
		return fmt.Errorf("invalid base fee, must not be negative")
	}
	if c.LogLevel < int(log.PanicLevel) || c.LogLevel > int(log.TraceLevel) {
		return fmt.Errorf("invalid log level %d, must be between 0 and 6", c.LogLevel)
	}
	if c.OtelCollectorEndpoint != "" && c.OtelPushInterval <= 0 {
		return fmt.Errorf("invalid otel push interval, must be at least 1 second")
	}
	if c.LowFeePpm > c.MediumFeePpm || c.MediumFeePpm > c.HighFeePpm {
		log.Warn("fee tiers are not increasing with local liquidity")
	}

	if err := c.lndService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.alertsService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) Tiers() domain.Tiers {
	return domain.Tiers{
		Low:    domain.Tier{FeeRatePpm: c.LowFeePpm, BaseFeeMsat: c.LowFeeBase},
		Medium: domain.Tier{FeeRatePpm: c.MediumFeePpm, BaseFeeMsat: c.MediumFeeBase},
		High:   domain.Tier{FeeRatePpm: c.HighFeePpm, BaseFeeMsat: c.HighFeeBase},
	}
}

func (c *Config) lndService() error {
	svc, err := lndclient.NewClient(lndclient.Config{
		Host:         c.LndHost,
		Port:         c.LndPort,
		TLSCertPath:  c.TLSCertPath,
		MacaroonPath: c.MacaroonPath,
	})
	if err != nil {
		return err
	}

	c.lnd = svc
	return nil
}

func (c *Config) schedulerService() error {
	c.scheduler = timescheduler.NewScheduler()
	return nil
}

func (c *Config) alertsService() error {
	if c.AlertManagerURL == "" {
		return nil
	}

	c.alerts = alertsmanager.NewService(c.AlertManagerURL)
	return nil
}

func (c *Config) appService() error {
	if c.lnd == nil || c.scheduler == nil {
		return fmt.Errorf("config not validated")
	}

	svc, err := application.NewService(
		c.lnd, c.scheduler, c.alerts, c.Tiers(),
		time.Duration(c.Interval)*time.Second, c.DryRun,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

// source reads a flag from the command line or env, falling back to the
// config file, if any, when the flag was not explicitly set.
type source struct {
	ctx  *cli.Context
	file *viper.Viper
}

func (s source) fromFile(name string) bool {
	return s.file != nil && !s.ctx.IsSet(name) && s.file.IsSet(name)
}

func (s source) String(name string) string {
	if s.fromFile(name) {
		return s.file.GetString(name)
	}
	return s.ctx.String(name)
}

func (s source) Int(name string) int {
	if s.fromFile(name) {
		return s.file.GetInt(name)
	}
	return s.ctx.Int(name)
}

func (s source) Int64(name string) int64 {
	if s.fromFile(name) {
		return s.file.GetInt64(name)
	}
	return s.ctx.Int64(name)
}

func (s source) Uint(name string) uint {
	if s.fromFile(name) {
		return s.file.GetUint(name)
	}
	return s.ctx.Uint(name)
}

func (s source) Bool(name string) bool {
	if s.fromFile(name) {
		return s.file.GetBool(name)
	}
	return s.ctx.Bool(name)
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
