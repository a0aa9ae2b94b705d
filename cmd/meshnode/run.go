package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	meshcrypto "github.com/silentmesh/mesh/crypto"
	"github.com/silentmesh/mesh/crypto/formats"
	"github.com/silentmesh/mesh/health"
	"github.com/silentmesh/mesh/internal/logger"
	"github.com/silentmesh/mesh/internal/metrics"
	"github.com/silentmesh/mesh/meshconfig"
	"github.com/silentmesh/mesh/node"
	"github.com/silentmesh/mesh/relay"
	"github.com/silentmesh/mesh/store"
	"github.com/silentmesh/mesh/transport"
	"github.com/silentmesh/mesh/wire"
	"github.com/spf13/cobra"
)

var (
	runConfigDir    string
	runEnvironment  string
	runEnvFile      string
	runKeyFile      string
	runListenAddr   string
	runPostgresHost string
	runPostgresPort int
	runPostgresUser string
	runPostgresPass string
	runPostgresDB   string
	runPostgresSSL  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a mesh node and block until interrupted",
	Long: `run loads configuration from --config-dir (falling back to
built-in defaults), brings up a WebSocket transport listening on
--listen, and starts the node facade. It blocks until SIGINT/SIGTERM.`,
	Example: `  meshnode run --key node.pem --listen :7000`,
	RunE:    runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runConfigDir, "config-dir", "", "Directory to search for <env>.yaml/default.yaml/config.yaml")
	runCmd.Flags().StringVar(&runEnvironment, "env", "", "Environment name (overrides MESH_ENV)")
	runCmd.Flags().StringVar(&runEnvFile, "env-file", "", "Optional .env file to load before resolving configuration")
	runCmd.Flags().StringVarP(&runKeyFile, "key", "k", "node.pem", "Path to this node's identity PEM file (from meshnode keygen)")
	runCmd.Flags().StringVarP(&runListenAddr, "listen", "l", ":7000", "Address the WebSocket transport listens on")
	runCmd.Flags().StringVar(&runPostgresHost, "postgres-host", "", "Postgres host; if set, the outbox is backed by Postgres instead of memory")
	runCmd.Flags().IntVar(&runPostgresPort, "postgres-port", 5432, "Postgres port")
	runCmd.Flags().StringVar(&runPostgresUser, "postgres-user", "meshnode", "Postgres user")
	runCmd.Flags().StringVar(&runPostgresPass, "postgres-password", "", "Postgres password")
	runCmd.Flags().StringVar(&runPostgresDB, "postgres-db", "silentmesh", "Postgres database name")
	runCmd.Flags().StringVar(&runPostgresSSL, "postgres-sslmode", "disable", "Postgres sslmode")
}

func runRun(cmd *cobra.Command, args []string) error {
	log := logger.GetDefaultLogger()

	loaderOpts := meshconfig.DefaultLoaderOptions()
	if runConfigDir != "" {
		loaderOpts.ConfigDir = runConfigDir
	}
	if runEnvironment != "" {
		loaderOpts.Environment = runEnvironment
	}
	if runEnvFile != "" {
		loaderOpts.EnvFile = runEnvFile
	}
	mc, err := meshconfig.Load(loaderOpts)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Info("configuration loaded", logger.String("environment", mc.Environment))

	priv, err := loadIdentity(runKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load identity from %s (run 'meshnode keygen' first): %w", runKeyFile, err)
	}

	engine, err := buildEngine(cmd.Context())
	if err != nil {
		return err
	}

	cfg := node.ConfigFromMesh(mc)
	n := node.New(cfg, priv, engine, broadcastResolver)

	ws := transport.NewWSTransport(n.GetIdentity().PeerID)
	if err := n.Start(ws); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	log.Info("node started", logger.String("peer_id", n.GetIdentity().PeerID), logger.String("state", n.State().String()))

	checker := health.NewHealthChecker(2 * time.Second)
	checker.RegisterCheck("node_state", nodeStateCheck(n))
	checker.RegisterCheck("store", health.DatabaseHealthCheck(func(ctx context.Context) error {
		_, err := engine.UsedBytes(ctx)
		return err
	}))

	mux := http.NewServeMux()
	mux.Handle("/mesh", ws.Handler(func(r *http.Request) string { return r.URL.Query().Get("peer_id") }))
	mux.HandleFunc("/healthz", healthzHandler(n, checker))
	if mc.Metrics.Enabled {
		mux.Handle(mc.Metrics.Path, metrics.Handler())
	}
	httpServer := &http.Server{
		Addr:              runListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", logger.String("addr", runListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", logger.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	return n.Stop(ctx)
}

// nodeStateCheck fails whenever the node is not Running or Degraded, the
// condition under which it can still accept or relay traffic.
func nodeStateCheck(n *node.Node) health.HealthCheck {
	return func(ctx context.Context) error {
		switch n.State() {
		case node.StateRunning, node.StateDegraded:
			return nil
		default:
			return fmt.Errorf("node state is %s", n.State())
		}
	}
}

// healthzHandler reports the aggregate result of every registered health
// check as JSON, returning 503 whenever the overall status is not
// healthy — the signal an operator's load balancer or orchestrator
// probes for.
func healthzHandler(n *node.Node, checker *health.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		system := checker.GetSystemHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if system.Status != health.StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    system.Status,
			"peer_id":   n.GetIdentity().PeerID,
			"checks":    system.Checks,
			"timestamp": system.Timestamp.UTC().Format(time.RFC3339),
		})
	}
}

// broadcastResolver is the default addressing policy when no
// application-layer destination resolution is wired in: every decoded
// message is treated as locally deliverable and forwarded on.
func broadcastResolver(m *wire.Message) relay.Destination {
	return relay.Destination{Broadcast: true}
}

func buildEngine(ctx context.Context) (store.Engine, error) {
	if runPostgresHost == "" {
		return store.NewMemoryEngine(), nil
	}
	return store.NewPostgresEngine(ctx, store.PostgresConfig{
		Host:     runPostgresHost,
		Port:     runPostgresPort,
		User:     runPostgresUser,
		Password: runPostgresPass,
		Database: runPostgresDB,
		SSLMode:  runPostgresSSL,
	})
}

func loadIdentity(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	importer := formats.NewPEMImporter()
	kp, err := importer.Import(data, meshcrypto.KeyFormatPEM)
	if err != nil {
		return nil, err
	}
	priv, ok := kp.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("identity file does not contain an Ed25519 private key")
	}
	return priv, nil
}
