package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"thermonode/backend/internal/api"
	"thermonode/backend/internal/broker"
	"thermonode/backend/internal/config"
	"thermonode/backend/internal/database/sqlite"
	"thermonode/backend/internal/device"
	"thermonode/backend/internal/metrics"
	"thermonode/backend/internal/platform"
	"thermonode/backend/internal/report"
	"thermonode/backend/internal/scheduler"
	"thermonode/backend/internal/sensor"
	"thermonode/backend/internal/settings"
	"thermonode/backend/internal/telemetry"
	"thermonode/backend/pkg/clock"
	"thermonode/backend/pkg/generate"
	"thermonode/backend/pkg/migrator"
	"thermonode/backend/pkg/mqtt"
	"thermonode/backend/pkg/router"
	"thermonode/backend/pkg/utils"
	"thermonode/web"
)

const (
	mqttConnectTimeout = 5 * time.Second
	// Placeholder broker used only to document the MQTT publications
	docsBrokerURL = "tcp://localhost:1883"

	simulatedTemperature = 21.5
	simulatedBatteryRaw  = 1900
)

func main() {
	if restart := run(); restart {
		if err := platform.Reexec(); err != nil {
			fatalIfErr(slog.Default(), fmt.Errorf("failed to restart: %w", err))
		}
	}
}

// run returns true when the node asked for a restart.
func run() bool {
	sigCtx, sigCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer sigCancel()

	config, err := config.New()
	if err != nil {
		fatalIfErr(slog.Default(), fmt.Errorf("failed to create config: %w", err))
	}

	defer utils.LogOnError(slog.Default(), config.Close, "failed to close config")

	logger := getLogger(config)

	collector, err := getCollector(config, logger)
	fatalIfErr(logger, err)

	// Cancelled by a restart request as well as by signals
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	restarter := platform.NewProcessRestarter(logger, cancel)
	m := metrics.New()

	var (
		db  *sql.DB
		mac net.HardwareAddr
	)

	if !config.Generate {
		fatalIfErr(logger, runMigrations(logger, config))

		db, err = sql.Open("sqlite3", config.Database)
		fatalIfErr(logger, err)

		// SQLite allows one writer; a single connection keeps the settings transaction simple
		db.SetMaxOpenConns(1)

		defer utils.LogOnError(logger, db.Close, "failed to close database")

		mac = getMAC(logger, config)
	}

	store := settings.NewStore(logger, db, mac)
	state := device.NewState(settings.Defaults(mac))
	deviceID := getDeviceID(config, mac)

	rb, err := router.NewRouteBuilder(logger, collector)
	fatalIfErr(logger, err)

	httpServer := api.NewHTTPServer(logger, fmt.Sprintf(":%d", config.Port), rb.Router())

	sampler := sensor.NewSampler(logger, getThermometer(logger, config), getBatteryADC(logger, config), m)

	controller, err := device.NewController(logger, device.ControllerOptions{
		State:       state,
		Store:       store,
		Reset:       device.NewResetDetector(logger, getHallSensor(config)),
		Joiner:      platform.NewNetworkJoiner(logger, config.NetworkInterface),
		JoinTimeout: config.NetworkJoinTimeout,
		Sensors:     sampler,
		Sleeper:     platform.NewCommandSleeper(logger, config.SleepCommand, restarter.Restart),
		Restarter:   restarter,
		Web:         httpServer,
	})
	fatalIfErr(logger, err)

	pages, err := web.Pages()
	fatalIfErr(logger, err)

	handlerOpts := api.HandlerOptions{
		State:     state,
		Store:     store,
		Restarter: controller,
		Pages:     pages.WithLogger(logger),
		Metrics:   m,
	}

	if db != nil {
		handlerOpts.DB = store
	}

	mqttEnabled := config.MQTTBroker != ""

	var mb *mqtt.MQTTBuilder

	if mqttEnabled || config.Generate {
		mb, err = getMQTTBuilder(logger, collector, config, deviceID)
		fatalIfErr(logger, err)

		telemetry.RegisterPublications(mb)

		if mqttEnabled {
			handlerOpts.MQTT = mb.Client()
		}
	}

	h, err := api.NewHandler(logger, handlerOpts)
	fatalIfErr(logger, err)

	api.Register(logger, rb, h, api.NewMiddlewareHandler(logger, m))

	if config.Generate {
		if err := collector.Generate(); err != nil {
			fatalIfErr(logger, fmt.Errorf("failed to generate API documentation: %w", err))
		}

		dumpSchema(logger)

		return false
	}

	if config.MQTTBrokerPort > 0 {
		mqttAddr := fmt.Sprintf(":%d", config.MQTTBrokerPort)
		mqttBroker, err := broker.New(logger, mqttAddr)
		fatalIfErr(logger, err)

		go func() {
			logger.Info("MQTT broker listening", slog.String("address", mqttAddr))

			if err := mqttBroker.Serve(); err != nil {
				logger.Error("MQTT broker failed", utils.ErrAttr(err))
				cancel()
			}
		}()

		defer func() {
			logger.Info("mqtt broker shutting down...")

			if err := mqttBroker.Close(); err != nil {
				logger.Error("mqtt broker shutdown failed", utils.ErrAttr(err))
			}
		}()
	}

	plan, err := controller.Boot(ctx)
	fatalIfErr(logger, err)

	sched := scheduler.New(logger, state, sampler, report.NewClient(logger, config.ReportTimeout), clock.NewMonotonic()).
		WithMetrics(m)

	if mqttEnabled && plan.SleepNow == nil {
		connectCtx, connectCancel := context.WithTimeout(ctx, mqttConnectTimeout)
		if err := mb.Connect(connectCtx); err != nil {
			logger.Warn("MQTT broker not connected", utils.ErrAttr(err))
		}

		connectCancel()

		defer mb.Disconnect()

		mirror := telemetry.NewMirror(logger, mb.Client(), mb, deviceID, m)
		mirror.PublishOnline(ctx)
		sched.WithMirror(mirror)
	}

	if err := controller.Run(ctx, plan, sched); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("node stopped", utils.ErrAttr(err))
	}

	if restarter.Requested() {
		logger.Info("restarting...")
		return true
	}

	logger.Info("node exited gracefully")

	return false
}

func getMAC(l *slog.Logger, c *config.Config) net.HardwareAddr {
	mac, err := platform.InterfaceMAC(c.NetworkInterface)
	if err != nil {
		l.Warn("no hardware address, using generic default name", utils.ErrAttr(err))
		return nil
	}

	return mac
}

// getDeviceID names the node on MQTT. The full MAC keeps it stable across renames.
func getDeviceID(c *config.Config, mac net.HardwareAddr) string {
	if len(mac) == 0 {
		return c.MQTTClientID
	}

	return strings.ReplaceAll(mac.String(), ":", "")
}

//nolint:ireturn // Returns the sysfs or the simulated thermometer
func getThermometer(l *slog.Logger, c *config.Config) sensor.Thermometer {
	if c.W1DevicePath == "" {
		l.Warn("no thermometer configured, using simulated readings")
		return platform.NewSimulatedThermometer(simulatedTemperature)
	}

	return platform.NewW1Thermometer(c.W1DevicePath)
}

//nolint:ireturn // Returns the IIO or the simulated ADC
func getBatteryADC(l *slog.Logger, c *config.Config) sensor.BatteryADC {
	if c.BatteryADCPath == "" {
		l.Debug("no battery ADC configured, using simulated readings")
		return platform.SimulatedADC{Raw: simulatedBatteryRaw}
	}

	return platform.NewIIOChannel(c.BatteryADCPath)
}

//nolint:ireturn // Returns the IIO or the simulated hall sensor
func getHallSensor(c *config.Config) device.HallSensor {
	if c.HallSensorPath == "" {
		return platform.SimulatedHall{}
	}

	return platform.NewIIOChannel(c.HallSensorPath)
}

func getMQTTBuilder(l *slog.Logger, collector generate.MQTTMetadataCollector, c *config.Config, deviceID string) (*mqtt.MQTTBuilder, error) {
	brokerURL := c.MQTTBroker
	if brokerURL == "" {
		brokerURL = docsBrokerURL
	}

	will, err := telemetry.Will(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to build last will: %w", err)
	}

	return mqtt.NewMQTTBuilder(l, collector, mqtt.MQTTClientOptions{
		BrokerURL: brokerURL,
		ClientID:  c.MQTTClientID,
		Username:  c.MQTTUsername,
		Password:  c.MQTTPassword,
		Will:      will,
	})
}

//nolint:ireturn // Returns MetadataCollector interface (OpenAPICollector or NoopCollector)
func getCollector(c *config.Config, l *slog.Logger) (generate.MetadataCollector, error) {
	if !c.Generate {
		return &generate.NoopCollector{}, nil
	}

	return generate.NewOpenAPICollector(l, generate.OpenAPICollectorOptions{
		OpenAPISpecOutputPath: "docs/openapi.yaml",
		APIInfo: generate.APIInfo{
			Title:       "Thermonode API",
			Version:     utils.GetVersionShort(),
			Description: "Web UI, settings and status endpoints of a thermonode, plus its MQTT telemetry",
			Servers: []generate.ServerInfo{
				{URL: "http://thermometer.local", Description: "Node on the local network"},
			},
		},
	})
}

func getLogger(config *config.Config) *slog.Logger {
	logOptions := slog.HandlerOptions{
		Level:       config.LogLevel,
		ReplaceAttr: utils.SlogReplacer,
	}

	var logHandler slog.Handler = slog.NewJSONHandler(config.LogOutput, &logOptions)
	if config.Generate {
		logHandler = slog.NewTextHandler(config.LogOutput, &logOptions)
	}

	return slog.New(logHandler).With(slog.String("version", utils.GetVersionShort()))
}

func fatalIfErr(l *slog.Logger, err error) {
	if err == nil {
		return
	}

	l.Error("error", utils.ErrAttr(err))
	os.Exit(1)
}

func runMigrations(l *slog.Logger, c *config.Config) error {
	l.Info("Running database migrations")

	mig, err := migrator.New(l, sqlite.GetMigrationsFS(), c.Database)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := mig.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	l.Info("Database migrations completed successfully")

	return nil
}

// dumpSchema writes docs/schema.sql from a scratch database. It needs the sqlite3 CLI, so a
// failure is only logged.
func dumpSchema(l *slog.Logger) {
	dir, err := os.MkdirTemp("", "thermonode-schema")
	if err != nil {
		l.Warn("failed to create scratch directory", utils.ErrAttr(err))
		return
	}

	defer utils.LogOnError(l, func() error { return os.RemoveAll(dir) }, "failed to remove scratch directory")

	mig, err := migrator.New(l, sqlite.GetMigrationsFS(), filepath.Join(dir, "schema.sqlite"))
	if err != nil {
		l.Warn("failed to create migrator", utils.ErrAttr(err))
		return
	}

	if err := mig.Migrate(); err != nil {
		l.Warn("failed to migrate scratch database", utils.ErrAttr(err))
		return
	}

	if err := mig.DumpSchema("docs/schema.sql"); err != nil {
		l.Warn("schema not dumped", utils.ErrAttr(err))
	}
}
