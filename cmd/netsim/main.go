package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/icsrange/netsim/pkg/capture"
	"github.com/icsrange/netsim/pkg/gateway"
	"github.com/icsrange/netsim/pkg/logging"
	"github.com/icsrange/netsim/pkg/metrics"
	"github.com/icsrange/netsim/pkg/seclog"
	"github.com/icsrange/netsim/pkg/server"
	"github.com/icsrange/netsim/pkg/topology"
)

const version = "1.0.0"

// rangeConfig is the cmd-level slice of the range configuration file:
// exposed services and peer classification. The topology sections of the
// same file are parsed by the topology store.
type rangeConfig struct {
	Services []struct {
		Device   string `yaml:"device"`
		Network  string `yaml:"network"`
		Protocol string `yaml:"protocol"`
		Port     int    `yaml:"port"`
	} `yaml:"services"`
	Classifier struct {
		Default string `yaml:"default"`
		Rules   []struct {
			CIDR    string `yaml:"cidr"`
			Network string `yaml:"network"`
		} `yaml:"rules"`
	} `yaml:"classifier"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	configPath := flag.String("config", envOr("NETSIM_CONFIG", "topology.yaml"), "Range configuration file")
	listenAddr := flag.String("listen", envOr("NETSIM_LISTEN", ":8080"), "Status server listen address")
	logLevel := flag.String("log-level", envOr("NETSIM_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	secLogDir := flag.String("seclog-dir", envOr("NETSIM_SECLOG_DIR", ""), "Security event log directory (empty disables the file sink)")
	captureDir := flag.String("capture-dir", envOr("NETSIM_CAPTURE_DIR", ""), "Traffic capture directory (empty disables capture)")
	publishAddr := flag.String("publish", envOr("NETSIM_PUBLISH", ""), "Security event pub socket address, e.g. tcp://0.0.0.0:5555")
	postgresURL := flag.String("postgres", envOr("NETSIM_POSTGRES_URL", ""), "Postgres URL for the security event store (empty disables)")
	portOffset := flag.Int("port-offset", gateway.DefaultPortOffset, "Offset between external and loopback protocol-server ports")
	rejectOnDeny := flag.Bool("reject", false, "Reject denied connections with RST instead of dropping them")
	flag.Parse()

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(*logLevel))
	log := logger.With(logging.Component("netsim"))

	// Security event pipeline: in-memory recorder fanning out to the
	// configured sinks
	recorder := seclog.NewRecorder(4096)
	var closers []func() error

	if *secLogDir != "" {
		fileConfig := seclog.DefaultFileConfig()
		fileConfig.LogDir = *secLogDir
		fileSink, err := seclog.NewFileSink(fileConfig)
		if err != nil {
			log.Error("failed to open security log", logging.Error(err))
			os.Exit(1)
		}
		recorder.AddSink(fileSink)
		closers = append(closers, fileSink.Close)
	}
	if *publishAddr != "" {
		publisher, err := seclog.NewPublisher(*publishAddr)
		if err != nil {
			log.Error("failed to start security event publisher", logging.Error(err))
			os.Exit(1)
		}
		recorder.AddSink(publisher)
		closers = append(closers, publisher.Close)
	}
	if *postgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pgStore, err := seclog.NewPGStore(ctx, *postgresURL)
		cancel()
		if err != nil {
			log.Error("failed to connect security event store", logging.Error(err))
			os.Exit(1)
		}
		recorder.AddSink(pgStore)
		closers = append(closers, pgStore.Close)
	}

	metricsRegistry := metrics.NewRegistry()

	store := topology.NewStore(topology.StoreConfig{
		Logger:   logger,
		Security: recorder,
	})
	if err := store.LoadFile(*configPath); err != nil {
		log.Error("failed to load topology", logging.Error(err))
		os.Exit(1)
	}

	rangeCfg, err := loadRangeConfig(*configPath)
	if err != nil {
		log.Error("failed to load range configuration", logging.Error(err))
		os.Exit(1)
	}

	classifier := gateway.NewStaticClassifier(rangeCfg.Classifier.Default)
	for _, rule := range rangeCfg.Classifier.Rules {
		if err := classifier.AddRule(rule.CIDR, rule.Network); err != nil {
			log.Error("invalid classifier rule", logging.Error(err))
			os.Exit(1)
		}
	}

	var tap gateway.Tap
	if *captureDir != "" {
		trafficRecorder, err := capture.NewRecorder(*captureDir)
		if err != nil {
			log.Error("failed to open traffic capture", logging.Error(err))
			os.Exit(1)
		}
		tap = trafficRecorder
		closers = append(closers, trafficRecorder.Close)
	}

	manager, err := gateway.NewManager(gateway.ManagerConfig{
		Store: store,
		Config: gateway.Config{
			PortOffset:   *portOffset,
			RejectOnDeny: *rejectOnDeny,
			DialTimeout:  3 * time.Second,
			StopGrace:    2 * time.Second,
		},
		Classifier: classifier,
		Tap:        tap,
		Logger:     logger,
		Security:   recorder,
		Metrics:    metricsRegistry,
	})
	if err != nil {
		log.Error("failed to create gateway manager", logging.Error(err))
		os.Exit(1)
	}

	for _, svc := range rangeCfg.Services {
		if _, err := manager.Register(svc.Device, svc.Network, svc.Protocol, svc.Port); err != nil {
			log.Error("failed to register service",
				logging.Device(svc.Device),
				logging.Port(svc.Port),
				logging.Error(err))
			os.Exit(1)
		}
	}

	if err := manager.StartAll(); err != nil {
		log.Error("failed to start gateway listeners", logging.Error(err))
		manager.StopAll()
		os.Exit(1)
	}

	summary := manager.Summary(false)
	log.Info("virtual network running",
		logging.Int("listeners", summary.ListenerCount),
		logging.Int("port_offset", *portOffset),
		logging.String("config", *configPath))

	status := server.NewStatusServer(server.StatusConfig{
		Store:    store,
		Manager:  manager,
		Security: recorder,
		Metrics:  metricsRegistry,
		Logger:   logger,
		Version:  version,
	})

	httpServer := server.NewGracefulServer(*listenAddr, status.Handler(), logger)
	httpServer.SetReloadFunc(func() error {
		if err := store.LoadFile(*configPath); err != nil {
			return fmt.Errorf("topology reload: %w", err)
		}
		metricsRegistry.RecordTopologyReload()
		recorder.Log(&seclog.Event{
			Severity: seclog.SeverityInfo,
			Type:     seclog.EventTopologyReloaded,
			Message:  "topology configuration reloaded",
		})
		return nil
	})
	httpServer.SetStopFunc(func() {
		if err := manager.StopAll(); err != nil {
			log.Warn("error stopping gateway listeners", logging.Error(err))
		}
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				log.Warn("error closing sink", logging.Error(err))
			}
		}
	})

	if err := httpServer.Start(); err != nil {
		log.Error("status server failed", logging.Error(err))
		os.Exit(1)
	}
}

func loadRangeConfig(path string) (*rangeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg rangeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
