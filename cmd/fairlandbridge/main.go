// Fairland Bridge - vendor cloud to MQTT bridge for Fairland heat pumps.
//
// The bridge polls the Fairland vendor cloud for heat pump state, publishes
// it as retained MQTT entity state, and translates MQTT commands back into
// cloud writes. Run with the "setup" subcommand once to provision the
// bridge against a cloud account before normal operation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/fairland-bridge/migrations"

	"github.com/nerrad567/fairland-bridge/internal/bridge"
	"github.com/nerrad567/fairland-bridge/internal/fairland"
	"github.com/nerrad567/fairland-bridge/internal/infrastructure/config"
	"github.com/nerrad567/fairland-bridge/internal/infrastructure/database"
	"github.com/nerrad567/fairland-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/fairland-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/fairland-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/fairland-bridge/internal/setup"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		err = runSetup(ctx, os.Args[2:])
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the normal bridge operation, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Fairland bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	store := setup.NewStore(db.DB)
	prov, err := store.LoadProvisioning(ctx)
	if err != nil {
		if errors.Is(err, setup.ErrNotProvisioned) {
			return fmt.Errorf("bridge is not provisioned, run %q first", os.Args[0]+" setup")
		}
		return fmt.Errorf("loading provisioning: %w", err)
	}
	log.Info("provisioning loaded",
		"courtyard_id", prov.CourtyardID,
		"courtyard", prov.CourtyardName,
	)

	initial, err := store.LoadSnapshot(ctx)
	if err != nil {
		log.Warn("persisted snapshot unreadable, starting cold", "error", err)
	}

	client, err := newCloudClient(cfg)
	if err != nil {
		return fmt.Errorf("creating cloud client: %w", err)
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var telemetry fairland.TelemetrySink
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	coordinator, err := fairland.NewCoordinator(fairland.CoordinatorOptions{
		Source:      client,
		CourtyardID: prov.CourtyardID,
		Interval:    pollInterval(cfg, prov),
		Initial:     initial,
		Store:       store,
		Telemetry:   telemetry,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	b, err := bridge.NewBridge(bridge.BridgeOptions{
		BridgeID:       cfg.Bridge.ID,
		Version:        version,
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		Commander:      client,
		Source:         coordinator,
		HealthInterval: time.Duration(cfg.Bridge.HealthInterval) * time.Second,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		b.Stop()
	}()

	// Run the poll loop; it returns when ctx is cancelled
	coordErr := make(chan error, 1)
	go func() {
		coordErr <- coordinator.Run(ctx)
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
	case err := <-coordErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("poll loop: %w", err)
		}
	}

	log.Info("shutdown signal received, cleaning up")
	log.Info("Fairland bridge stopped")
	return nil
}

// runSetup provisions the bridge against the configured cloud account.
func runSetup(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("setup", flag.ContinueOnError)
	courtyardID := flags.String("courtyard", "",
		"courtyard ID to bridge (required when the account has several)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	log := logging.Default()

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("provisioning bridge", "config", configPath)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := newCloudClient(cfg)
	if err != nil {
		return fmt.Errorf("creating cloud client: %w", err)
	}

	prov, err := setup.Run(ctx, setup.FlowOptions{
		Client:              client,
		Store:               setup.NewStore(db.DB),
		AccountName:         cfg.Fairland.AccountName,
		CountryCode:         cfg.Fairland.CountryCode,
		CourtyardID:         *courtyardID,
		PollIntervalSeconds: cfg.Bridge.PollInterval,
		Logger:              log,
	})
	if err != nil {
		return fmt.Errorf("provisioning: %w", err)
	}

	log.Info("bridge provisioned",
		"courtyard_id", prov.CourtyardID,
		"courtyard", prov.CourtyardName,
		"poll_interval_seconds", prov.PollIntervalSeconds,
	)
	return nil
}

// openDatabase opens the SQLite database and applies migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	return db, nil
}

// newCloudClient builds the vendor cloud client from configuration.
func newCloudClient(cfg *config.Config) (*fairland.Client, error) {
	return fairland.NewClient(fairland.ClientOptions{
		BaseURL: cfg.Fairland.BaseURL,
		Credentials: fairland.Credentials{
			AccountName: cfg.Fairland.AccountName,
			Password:    cfg.Fairland.Password,
			CountryCode: cfg.Fairland.CountryCode,
			PhoneCode:   cfg.Fairland.PhoneCode,
		},
		Timeout: time.Duration(cfg.Fairland.Timeout) * time.Second,
	})
}

// pollInterval resolves the poll interval: the provisioned value wins,
// then the config value, then 30 seconds.
func pollInterval(cfg *config.Config, prov *setup.Provisioning) time.Duration {
	if prov.PollIntervalSeconds > 0 {
		return time.Duration(prov.PollIntervalSeconds) * time.Second
	}
	if cfg.Bridge.PollInterval > 0 {
		return time.Duration(cfg.Bridge.PollInterval) * time.Second
	}
	return 30 * time.Second
}

// getConfigPath returns the configuration file path.
// Uses FAIRLAND_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FAIRLAND_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic string, payload []byte) error
// - Bridge expects: func(topic string, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error (bridge handlers don't return errors)
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
