package lib

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/util/yaml"

	"github.com/fluxnode/fluxosd"
	"github.com/fluxnode/fluxosd/lib/store"
)

var (
	ErrNoOracleURL    = errors.New("config: oracleUrl must be set")
	ErrNoDaemonRPCURL = errors.New("config: daemonRpcUrl must be set")
	ErrUnknownBackend = errors.New("config: unknown storage backend")
	ErrBadAdminAllow  = errors.New("config: adminAllow entry is not a CIDR prefix")
	ErrBadDuration    = errors.New("config: oracleTimeout is not a duration")
)

// Config is the agent's on-disk configuration. Files are YAML or JSON, both
// decode through the same path.
type Config struct {
	Bind        string `json:"bind"`
	MetricsBind string `json:"metricsBind"`
	SlogLevel   string `json:"slogLevel"`

	// ArcaneMode enables the administrative API. Off by default.
	ArcaneMode bool `json:"arcaneMode"`

	DaemonRPCURL  string `json:"daemonRpcUrl"`
	OracleURL     string `json:"oracleUrl"`
	OracleTimeout string `json:"oracleTimeout"`

	PurposeID string `json:"purposeId"`
	SystemID  string `json:"systemId"`

	// Storage selects and configures the store backend used for the chain
	// height cache and the persisted configuration.
	Storage StorageConfig `json:"storage"`

	// AdminAllow lists CIDR prefixes allowed to administer this node.
	AdminAllow []string `json:"adminAllow"`

	// ConfigKeyPolicy is a CEL expression gating top-level config keys, see
	// the configsync package.
	ConfigKeyPolicy string `json:"configKeyPolicy"`
}

type StorageConfig struct {
	Backend string          `json:"backend"`
	Config  json.RawMessage `json:"config"`
}

func DefaultConfig() Config {
	return Config{
		Bind:          ":16187",
		MetricsBind:   ":9090",
		SlogLevel:     "INFO",
		OracleTimeout: fluxosd.DefaultOracleTimeout.String(),
		PurposeID:     "fluxosd",
		Storage:       StorageConfig{Backend: "memory"},
	}
}

// Load decodes one configuration document, layered over the defaults.
func Load(r io.Reader) (*Config, error) {
	c := DefaultConfig()

	if err := yaml.NewYAMLToJSONDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("config: can't decode: %w", err)
	}

	if err := c.Valid(); err != nil {
		return nil, err
	}

	return &c, nil
}

func LoadFile(path string) (*Config, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: can't open %s: %w", path, err)
	}
	defer fin.Close()

	return Load(fin)
}

func (c Config) Valid() error {
	var errs []error

	if c.OracleURL == "" {
		errs = append(errs, ErrNoOracleURL)
	}
	if c.DaemonRPCURL == "" {
		errs = append(errs, ErrNoDaemonRPCURL)
	}

	if fact, ok := store.Get(c.Storage.Backend); !ok {
		errs = append(errs, fmt.Errorf("%w: %q (have: %v)", ErrUnknownBackend, c.Storage.Backend, store.Backends()))
	} else if err := fact.Valid(c.Storage.Config); err != nil {
		errs = append(errs, err)
	}

	if c.OracleTimeout != "" {
		if _, err := time.ParseDuration(c.OracleTimeout); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q", ErrBadDuration, c.OracleTimeout))
		}
	}

	for _, cidr := range c.AdminAllow {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q", ErrBadAdminAllow, cidr))
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: invalid configuration:\n%w", errors.Join(errs...))
	}

	return nil
}

// OracleTimeoutDuration returns the parsed timeout. Call Valid first.
func (c Config) OracleTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.OracleTimeout)
	if err != nil {
		return fluxosd.DefaultOracleTimeout
	}
	return d
}

// AdminAllowPrefixes returns the parsed allowlist. Call Valid first.
func (c Config) AdminAllowPrefixes() []netip.Prefix {
	var result []netip.Prefix
	for _, cidr := range c.AdminAllow {
		pfx, err := netip.ParsePrefix(cidr)
		if err != nil {
			continue
		}
		result = append(result, pfx)
	}
	return result
}
