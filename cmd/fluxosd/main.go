package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxnode/fluxosd"
	"github.com/fluxnode/fluxosd/internal"
	"github.com/fluxnode/fluxosd/lib"
	"github.com/fluxnode/fluxosd/lib/challenge"
	"github.com/fluxnode/fluxosd/lib/configsync"
	"github.com/fluxnode/fluxosd/lib/daemonrpc"
	"github.com/fluxnode/fluxosd/lib/oracle"
	"github.com/fluxnode/fluxosd/lib/store"
	_ "github.com/fluxnode/fluxosd/lib/store/all"
)

var (
	bind               = flag.String("bind", ":16187", "network address to bind HTTP to")
	bindNetwork        = flag.String("bind-network", "tcp", "network family to bind HTTP to, e.g. unix, tcp")
	configFname        = flag.String("config-fname", "", "path to the fluxosd configuration file (YAML or JSON), flags override its values")
	metricsBind        = flag.String("metrics-bind", ":9090", "network address to bind metrics to")
	metricsBindNetwork = flag.String("metrics-bind-network", "tcp", "network family for the metrics server to bind to")
	slogLevel          = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	socketMode         = flag.String("socket-mode", "0770", "socket mode (permissions) for unix domain sockets")

	arcaneMode    = flag.Bool("arcane-mode", false, "enable the administrative API")
	adminAllow    = flag.String("admin-allow", "", "comma-separated CIDR list allowed to administer this node, empty allows all")
	daemonRPCURL  = flag.String("daemon-rpc-url", "", "URL of the chain daemon's JSON-RPC endpoint")
	keyPolicy     = flag.String("config-key-policy", "", "CEL expression gating top-level config keys in sync payloads")
	oracleTimeout = flag.Duration("oracle-timeout", fluxosd.DefaultOracleTimeout, "timeout for attestation oracle calls")
	oracleURL     = flag.String("oracle-url", "", "URL of the attestation oracle")
	purposeID     = flag.String("purpose-id", "fluxosd", "protocol purpose identifier sent in oracle requests")
	systemID      = flag.String("system-id", "", "this node's identifier in oracle requests, defaults to the hostname")

	storageBackend       = flag.String("storage-backend", "memory", fmt.Sprintf("storage backend, one of: %v", store.Backends()))
	storageBackendConfig = flag.String("storage-backend-config", "", "JSON configuration for the storage backend")

	useRemoteAddress = flag.Bool("use-remote-address", false, "read the client's IP address from the network request, useful when fluxosd faces clients directly")
	healthcheck      = flag.Bool("healthcheck", false, "run a health check against fluxosd")
	versionFlag      = flag.Bool("version", false, "print fluxosd version")
)

func doHealthCheck() error {
	resp, err := http.Get("http://localhost" + *metricsBind + fluxosd.BasePrefix + "/metrics")
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

func setupListener(network string, address string) (net.Listener, string) {
	formattedAddress := ""

	switch network {
	case "unix":
		formattedAddress = "unix:" + address
	case "tcp":
		if strings.HasPrefix(address, ":") { // assume it's just a port e.g. :16187
			formattedAddress = "http://localhost" + address
		} else {
			formattedAddress = "http://" + address
		}
	default:
		formattedAddress = fmt.Sprintf(`(%s) %s`, network, address)
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to bind to %s: %w", formattedAddress, err))
	}

	// additional permission handling for unix sockets
	if network == "unix" {
		mode, err := strconv.ParseUint(*socketMode, 8, 0)
		if err != nil {
			listener.Close()
			log.Fatal(fmt.Errorf("could not parse socket mode %s: %w", *socketMode, err))
		}

		if err := os.Chmod(address, os.FileMode(mode)); err != nil {
			listener.Close()
			log.Fatal(fmt.Errorf("could not change socket mode: %w", err))
		}
	}

	return listener, formattedAddress
}

// buildConfig layers the file config (if any) under every flag the user
// explicitly set.
func buildConfig() (*lib.Config, error) {
	cfg := lib.DefaultConfig()

	if *configFname != "" {
		loaded, err := lib.LoadFile(*configFname)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bind":
			cfg.Bind = *bind
		case "metrics-bind":
			cfg.MetricsBind = *metricsBind
		case "slog-level":
			cfg.SlogLevel = *slogLevel
		case "arcane-mode":
			cfg.ArcaneMode = *arcaneMode
		case "admin-allow":
			cfg.AdminAllow = strings.Split(*adminAllow, ",")
		case "daemon-rpc-url":
			cfg.DaemonRPCURL = *daemonRPCURL
		case "config-key-policy":
			cfg.ConfigKeyPolicy = *keyPolicy
		case "oracle-timeout":
			cfg.OracleTimeout = oracleTimeout.String()
		case "oracle-url":
			cfg.OracleURL = *oracleURL
		case "purpose-id":
			cfg.PurposeID = *purposeID
		case "system-id":
			cfg.SystemID = *systemID
		case "storage-backend":
			cfg.Storage.Backend = *storageBackend
		case "storage-backend-config":
			cfg.Storage.Config = []byte(*storageBackendConfig)
		}
	})

	if cfg.SystemID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("can't determine hostname for system-id: %w", err)
		}
		cfg.SystemID = hostname
	}

	if err := cfg.Valid(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("fluxosd", fluxosd.Version)
		return
	}

	cfg, err := buildConfig()
	if err != nil {
		log.Fatal(err)
	}

	internal.InitSlog(cfg.SlogLevel)

	wg := new(sync.WaitGroup)
	// install signal handler
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fact, ok := store.Get(cfg.Storage.Backend)
	if !ok {
		log.Fatalf("unknown storage backend %q, have: %v", cfg.Storage.Backend, store.Backends())
	}

	st, err := fact.Build(ctx, cfg.Storage.Config)
	if err != nil {
		log.Fatalf("can't build storage backend %q: %v", cfg.Storage.Backend, err)
	}

	heights, err := daemonrpc.New(daemonrpc.Options{
		URL:   cfg.DaemonRPCURL,
		Store: st,
	})
	if err != nil {
		log.Fatalf("can't construct daemon RPC client: %v", err)
	}

	orc, err := oracle.NewClient(oracle.ClientOptions{URL: cfg.OracleURL})
	if err != nil {
		log.Fatalf("can't construct oracle client: %v", err)
	}

	syncer, err := configsync.New(configsync.Options{
		KeyPolicy: cfg.ConfigKeyPolicy,
		Store:     st,
	})
	if err != nil {
		log.Fatalf("can't construct config syncer: %v", err)
	}

	keeper := challenge.NewKeeper(challenge.KeeperOptions{})

	s, err := lib.New(lib.Options{
		Keeper: keeper,
		Verifier: &challenge.Verifier{
			Keeper:    keeper,
			Oracle:    orc,
			PurposeID: cfg.PurposeID,
			SystemID:  cfg.SystemID,
			Timeout:   cfg.OracleTimeoutDuration(),
		},
		ConfigSync: syncer,
		Heights:    heights,
		ArcaneMode: cfg.ArcaneMode,
		AdminAllow: cfg.AdminAllowPrefixes(),
	})
	if err != nil {
		log.Fatalf("can't construct lib.Server: %v", err)
	}

	if cfg.MetricsBind != "" {
		wg.Add(1)
		go metricsServer(ctx, cfg.MetricsBind, wg.Done)
	}

	var h http.Handler
	h = s
	h = internal.RemoteXRealIP(*useRemoteAddress, *bindNetwork, h)
	h = internal.XForwardedForToXRealIP(h)

	srv := http.Server{Handler: h, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, listenerUrl := setupListener(*bindNetwork, cfg.Bind)
	slog.Info(
		"listening",
		"url", listenerUrl,
		"version", fluxosd.Version,
		"arcane-mode", cfg.ArcaneMode,
		"storage-backend", cfg.Storage.Backend,
		"daemon-rpc-url", cfg.DaemonRPCURL,
		"oracle-url", cfg.OracleURL,
		"use-remote-address", *useRemoteAddress,
	)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	wg.Wait()
}

func metricsServer(ctx context.Context, bindAddr string, done func()) {
	defer done()

	mux := http.NewServeMux()
	mux.Handle(fluxosd.BasePrefix+"/metrics", promhttp.Handler())

	srv := http.Server{Handler: mux, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, metricsUrl := setupListener(*metricsBindNetwork, bindAddr)
	slog.Debug("listening for metrics", "url", metricsUrl)

	if *healthcheck {
		log.Println("running healthcheck")
		if err := doHealthCheck(); err != nil {
			log.Fatal(err)
		}
		return
	}

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
