package platform

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Durable-tier pool and timeout contract from spec §4.3/§5.
const (
	PostgresMaxConns          = 10
	postgresMaxConnIdleTime   = 30 * time.Second
	postgresConnectTimeout    = 10 * time.Second
	PostgresQueryTimeout      = 60 * time.Second
	postgresHealthCheckPeriod = time.Minute
)

// cloudHostSuffixes are hostnames that platform-aware SSL defaulting treats
// as managed databases whose presented certificate commonly doesn't chain
// to the system root store, relaxing validation for them when
// DATABASE_SSL_VALIDATE is unset.
var cloudHostSuffixes = []string{
	".rds.amazonaws.com",
	".database.azure.com",
	".sql.cloud.com",
	".neon.tech",
	".supabase.co",
}

// NewPostgresPool creates a pgxpool.Pool for the durable tier (C3), applying
// the connection pool limits from spec §4.3 and the SSL policy from §6.
func NewPostgresPool(ctx context.Context, databaseURL, sslValidate, sslCA string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres URL: %w", err)
	}

	cfg.MaxConns = PostgresMaxConns
	cfg.MaxConnIdleTime = postgresMaxConnIdleTime
	cfg.HealthCheckPeriod = postgresHealthCheckPeriod
	cfg.ConnConfig.ConnectTimeout = postgresConnectTimeout

	if err := applySSLPolicy(cfg, sslValidate, sslCA); err != nil {
		return nil, fmt.Errorf("applying SSL policy: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, postgresConnectTimeout)
	defer cancel()
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return pool, nil
}

// applySSLPolicy implements the DATABASE_SSL_VALIDATE contract from §6:
//
//	"full"  -> SSL disabled entirely (dev only)
//	"true"  -> TLS on, strict certificate validation
//	"false" -> TLS on, certificate validation off
//	unset   -> platform-aware default: strict in production, relaxed in
//	           development, and relaxed for hosts matching a recognized
//	           managed-database suffix regardless of environment.
func applySSLPolicy(cfg *pgxpool.Config, sslValidate, sslCA string) error {
	switch sslValidate {
	case "full":
		cfg.ConnConfig.TLSConfig = nil
		return nil
	case "true":
		cfg.ConnConfig.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	case "false":
		cfg.ConnConfig.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true} //nolint:gosec
	case "":
		if isDevEnvironment() || looksLikeCloudHost(cfg.ConnConfig.Host) {
			cfg.ConnConfig.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true} //nolint:gosec
		} else {
			cfg.ConnConfig.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
	default:
		return fmt.Errorf("unrecognized DATABASE_SSL_VALIDATE value %q", sslValidate)
	}

	if sslCA != "" && cfg.ConnConfig.TLSConfig != nil {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(sslCA)) {
			return fmt.Errorf("failed to parse DATABASE_SSL_CA as PEM")
		}
		cfg.ConnConfig.TLSConfig.RootCAs = pool
	}

	return nil
}

func isDevEnvironment() bool {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	return env == "" || env == "development" || env == "dev" || env == "test"
}

func looksLikeCloudHost(host string) bool {
	host = strings.ToLower(host)
	for _, suffix := range cloudHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}
