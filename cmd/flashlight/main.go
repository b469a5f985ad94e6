// Flashlight Core
//
// This is the main entry point for the flashlight service. It reads device
// commands from a single upstream TCP stream, keeps the flashlight state, and
// pushes every change to browser observers over WebSocket, plus optional MQTT
// and InfluxDB outputs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/flashlight-core/migrations"

	"github.com/nerrad567/flashlight-core/internal/api"
	"github.com/nerrad567/flashlight-core/internal/bridges/upstream"
	"github.com/nerrad567/flashlight-core/internal/broadcast"
	"github.com/nerrad567/flashlight-core/internal/device"
	"github.com/nerrad567/flashlight-core/internal/infrastructure/config"
	"github.com/nerrad567/flashlight-core/internal/infrastructure/database"
	"github.com/nerrad567/flashlight-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/flashlight-core/internal/infrastructure/logging"
	"github.com/nerrad567/flashlight-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/flashlight-core/internal/pipeline"
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

// configEnvVar overrides the config path when --config is not given.
const configEnvVar = "FLASHLIGHT_CONFIG"

func main() {
	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line flags.
type options struct {
	configPath  string
	panelDir    string
	showVersion bool
}

func parseFlags(args []string) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("flashlight", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default $"+configEnvVar+" or "+defaultConfigPath+")")
	flagSet.StringVar(&opts.panelDir, "panel-dir", "", "serve UI assets from this directory instead of the embedded copy")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, nil
}

// loadConfig resolves the config path. An explicit path must exist; the
// default path falls back to built-in defaults when absent.
func loadConfig(flagPath string) (*config.Config, string, error) {
	if flagPath != "" {
		cfg, err := config.Load(flagPath)
		return cfg, flagPath, err
	}
	if envPath := os.Getenv(configEnvVar); envPath != "" {
		cfg, err := config.Load(envPath)
		return cfg, envPath, err
	}
	cfg, err := config.LoadOrDefault(defaultConfigPath)
	return cfg, defaultConfigPath, err
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//   - stdout: Destination for --version output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, stdout io.Writer) error { //nolint:gocognit,gocyclo // linear startup sequence
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "flashlight %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()

	cfg, configPath, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("starting flashlight core",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}

	// History only covers the current process lifetime.
	history := device.NewSQLiteHistoryRepository(db.DB)
	history.SetMaxRows(cfg.Database.HistoryLimit)
	cleared, err := history.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clearing state history: %w", err)
	}
	state := device.NewState()
	if err := history.Record(ctx, state.Snapshot(), device.HistorySourceStartup); err != nil {
		return fmt.Errorf("recording startup state: %w", err)
	}
	log.Info("database ready", "path", db.Path(), "history_cleared", cleared)

	// Fan-out
	registry := broadcast.NewRegistry()
	broadcaster := broadcast.NewBroadcaster(registry)
	broadcaster.SetLogger(log.With("component", "broadcast"))
	defer closeSinks(registry)

	historySink := broadcast.NewHistorySink(history)
	historySink.SetLogger(log.With("component", "history"))
	registry.Register(historySink)

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg, registry, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
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
		registry.Register(broadcast.NewTelemetrySink(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Pipeline: reader -> reducer -> broadcaster
	reader, err := upstream.NewReader(upstream.Config{
		Address:              cfg.Upstream.Address(),
		MaxReconnectAttempts: cfg.Upstream.MaxReconnectAttempts,
		ConnectTimeout:       cfg.Upstream.ConnectTimeout,
		ReconnectInterval:    cfg.Upstream.ReconnectInterval,
		MaxReconnectInterval: cfg.Upstream.MaxReconnectInterval,
	})
	if err != nil {
		return fmt.Errorf("creating upstream reader: %w", err)
	}
	reader.SetLogger(log.With("component", "upstream"))

	reducer := device.NewReducer(state, broadcaster)
	reducer.SetLogger(log.With("component", "reducer"))

	supervisor := pipeline.New(reader, reducer)
	supervisor.SetLogger(log.With("component", "pipeline"))

	// HTTP API
	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Broadcast:   cfg.Broadcast,
		Logger:      log.With("component", "api"),
		State:       state,
		Broadcaster: broadcaster,
		Upstream:    reader,
		History:     history,
		PanelDir:    opts.panelDir,
		Version:     version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.Telemetry = influxClient
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := server.Start(gctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	g.Go(func() error {
		return supervisor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return server.Close()
	})
	if influxClient != nil {
		g.Go(func() error {
			writePipelineStats(gctx, influxClient, reader, broadcaster, flushPeriod(cfg))
			return nil
		})
	}

	log.Info("flashlight core ready",
		"upstream", cfg.Upstream.Address(),
		"api", server.Addr(),
	)

	if err := g.Wait(); err != nil {
		log.Error("flashlight core stopped", "error", err)
		return err
	}

	log.Info("shutdown complete")
	return nil
}

// connectMQTT connects the broker client and registers the retained state sink.
// The sink is re-registered on every reconnect because a publish failure while
// the broker is away removes it from the registry.
func connectMQTT(cfg *config.Config, registry *broadcast.Registry, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.With("component", "mqtt"))

	sink := broadcast.NewMQTTSink(client, client.Topics().State())
	registry.Register(sink)

	client.SetOnConnect(func() {
		if registry.Register(sink) {
			log.Info("MQTT reconnected, state publishing resumed")
		}
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"topic", client.Topics().State(),
	)
	return client, nil
}

// flushPeriod is the pipeline stats sampling period.
func flushPeriod(cfg *config.Config) time.Duration {
	if cfg.InfluxDB.FlushInterval > 0 {
		return time.Duration(cfg.InfluxDB.FlushInterval) * time.Second
	}
	return 10 * time.Second
}

// writePipelineStats samples reader and broadcaster counters until ctx ends.
func writePipelineStats(ctx context.Context, client *influxdb.Client, reader *upstream.Reader, broadcaster *broadcast.Broadcaster, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs := reader.Stats()
			client.WritePipelineStats(influxdb.PipelineSample{
				CommandsRx:      rs.CommandsRx,
				MalformedTotal:  rs.MalformedTotal,
				ReconnectsTotal: rs.ReconnectsTotal,
				Observers:       broadcaster.Stats().Observers,
				State:           rs.State.String(),
			})
		}
	}
}

// closeSinks unregisters every sink and closes those holding connections.
func closeSinks(registry *broadcast.Registry) {
	for _, member := range registry.Snapshot() {
		sink := member.Sink()
		registry.Unregister(sink)
		if closer, ok := sink.(io.Closer); ok {
			//nolint:errcheck // shutting down
			closer.Close()
		}
	}
}
