package redis

import (
	"fmt"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/swfrench/simple-session-store/internal/retry"
	"github.com/swfrench/simple-session-store/store"
	"golang.org/x/exp/slog"
)

const (
	defaultHost            = "127.0.0.1"
	defaultPort            = 6379
	defaultFamily          = 4
	defaultConnectAttempts = 5
)

// connectBackoff paces the startup connection probe.
var connectBackoff = retry.Backoff{
	Base:     100 * time.Millisecond,
	Growth:   2.0,
	Jitter:   0.2,
	MaxDelay: 5 * time.Second,
}

// ConnectionConfig describes a new single-node Redis connection.
type ConnectionConfig struct {
	// Host is the Redis host.
	// Default if unspecified: "127.0.0.1"
	Host string
	// Port is the Redis port.
	// Default if unspecified: 6379
	Port int
	// Family is the IP address family used to dial Host: 4 or 6.
	// Default if unspecified: 4
	Family int
	// Password is the Redis AUTH credential.
	// Default if unspecified: "" (no AUTH)
	Password string
	// DB is the Redis database index.
	// Default if unspecified: 0
	DB int
}

// Options represents tunable knobs that control the behavior of Store.
type Options[S any] struct {
	// Client is an existing connection to use instead of creating one. When
	// set, Connection and the Cluster* fields are ignored. Note that Store
	// still closes Client on End, and that New permanently adds a hook to
	// Client for availability tracking: every Store built on the same Client
	// adds another.
	Client goredis.UniversalClient
	// Connection configures the single-node connection created when Client is
	// nil and cluster mode is not in effect.
	Connection ConnectionConfig
	// ClusterMode, together with a non-empty ClusterNodes, selects a
	// cluster-aware connection in place of a single-node one.
	ClusterMode bool
	// ClusterNodes are the addresses (host:port) of the cluster seed nodes.
	ClusterNodes []string
	// ClusterOptions is passed through to the cluster client, with Addrs
	// replaced by ClusterNodes.
	ClusterOptions *goredis.ClusterOptions
	// KeyPrefix is prepended to every SID to form its Redis key.
	// Default if unspecified: "" (the SID is the key)
	KeyPrefix string
	// Serialize converts sessions to their stored form.
	// Default if unspecified: JSON
	Serialize store.SerializeFunc[S]
	// Deserialize converts stored values back into sessions.
	// Default if unspecified: JSON
	Deserialize store.DeserializeFunc[S]
	// Logger receives all diagnostics, including absorbed failures.
	// Default if unspecified: slog.Default()
	Logger *slog.Logger
	// ConnectAttempts is the attempt budget of the background probe that
	// establishes the connection at construction time. A negative value
	// disables the probe.
	// Default if unspecified: 5
	ConnectAttempts int
}

func (cc ConnectionConfig) withDefaults(log *slog.Logger) ConnectionConfig {
	if cc.Host == "" {
		cc.Host = defaultHost
	}
	if cc.Port == 0 {
		cc.Port = defaultPort
	}
	switch cc.Family {
	case 0:
		cc.Family = defaultFamily
	case 4, 6:
	default:
		log.Warn("Ignoring unsupported address family", "family", cc.Family, "default", defaultFamily)
		cc.Family = defaultFamily
	}
	return cc
}

// options returns the go-redis options for a single-node connection.
func (cc ConnectionConfig) options() *goredis.Options {
	return &goredis.Options{
		Network:  fmt.Sprintf("tcp%d", cc.Family),
		Addr:     net.JoinHostPort(cc.Host, strconv.Itoa(cc.Port)),
		Password: cc.Password,
		DB:       cc.DB,
	}
}

// clusterOptions returns the go-redis options for a cluster connection.
func clusterOptions(nodes []string, base *goredis.ClusterOptions) *goredis.ClusterOptions {
	co := new(goredis.ClusterOptions)
	if base != nil {
		*co = *base
	}
	co.Addrs = append([]string(nil), nodes...)
	return co
}

// newClient builds the connection described by opts. The caller must have
// already checked that opts.Client is nil.
func newClient[S any](opts *Options[S], log *slog.Logger) goredis.UniversalClient {
	if opts.ClusterMode && len(opts.ClusterNodes) > 0 {
		log.Debug("Creating Redis cluster client", "nodes", opts.ClusterNodes)
		return goredis.NewClusterClient(clusterOptions(opts.ClusterNodes, opts.ClusterOptions))
	}
	o := opts.Connection.withDefaults(log).options()
	log.Debug("Creating Redis client", "addr", o.Addr, "network", o.Network, "db", o.DB)
	return goredis.NewClient(o)
}
