package flags

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/people-registry/common"
	"github.com/ruteri/people-registry/httpserver"
	"github.com/urfave/cli/v2"
)

// EnvPrefix is prepended to the environment variable of every flag.
const EnvPrefix = "PEOPLE_REGISTRY_"

// EnvVars returns the environment variable names for a flag name,
// e.g. "listen-addr" -> PEOPLE_REGISTRY_LISTEN_ADDR.
func EnvVars(name string) []string {
	return []string{EnvPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))}
}

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *httpserver.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Value:   "http://127.0.0.1:8545",
	Usage:   "address to connect to RPC",
	EnvVars: EnvVars("rpc-addr"),
}

var ServerAddrFlag = &cli.StringFlag{
	Name:    "server-addr",
	Value:   "http://127.0.0.1:8080",
	Usage:   "registry server address to request",
	EnvVars: EnvVars("server-addr"),
}

var KeyFlag = &cli.StringFlag{
	Name:    "key",
	Usage:   "hex-encoded secp256k1 private key",
	EnvVars: EnvVars("key"),
}
var KeystoreFlag = &cli.StringFlag{
	Name:    "keystore",
	Usage:   "path to an encrypted JSON key file (alternative to --key)",
	EnvVars: EnvVars("keystore"),
}
var PasswordFlag = &cli.StringFlag{
	Name:    "password",
	Usage:   "password of the --keystore file",
	EnvVars: EnvVars("password"),
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	Usage:   "log in JSON format",
	EnvVars: EnvVars("log-json"),
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	Usage:   "log debug messages",
	EnvVars: EnvVars("log-debug"),
}
var LogUidFlag = &cli.BoolFlag{
	Name:    "log-uid",
	Value:   false,
	Usage:   "generate a uuid and add to all log messages",
	EnvVars: EnvVars("log-uid"),
}
var LogServiceFlag = &cli.StringFlag{
	Name:    "log-service",
	Value:   "people-registry",
	Usage:   "add 'service' tag to logs",
	EnvVars: EnvVars("log-service"),
}

var PprofFlag = &cli.BoolFlag{
	Name:    "pprof",
	Value:   false,
	Usage:   "enable pprof debug endpoint",
	EnvVars: EnvVars("pprof"),
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:    "drain-seconds",
	Value:   45,
	Usage:   "seconds to wait in drain HTTP request",
	EnvVars: EnvVars("drain-seconds"),
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
	EnvVars: EnvVars("metrics-addr"),
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var CommonFlags = append([]cli.Flag{
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}, LogFlags...)
