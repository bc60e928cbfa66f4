package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type EnvKey string

const (
	EnvGenerate EnvKey = "GENERATE"

	EnvPort      EnvKey = "PORT"
	EnvDataDir   EnvKey = "DATA_DIR"
	EnvLogLevel  EnvKey = "LOG_LEVEL"
	EnvLogToFile EnvKey = "LOG_TO_FILE"

	EnvW1DevicePath   EnvKey = "W1_DEVICE_PATH"
	EnvBatteryADCPath EnvKey = "BATTERY_ADC_PATH"
	EnvHallSensorPath EnvKey = "HALL_SENSOR_PATH"

	EnvNetworkInterface   EnvKey = "NETWORK_INTERFACE"
	EnvNetworkJoinTimeout EnvKey = "NETWORK_JOIN_TIMEOUT"
	EnvSleepCommand       EnvKey = "SLEEP_COMMAND"
	EnvReportTimeout      EnvKey = "REPORT_TIMEOUT"

	EnvMQTTBrokerPort EnvKey = "MQTT_SERVER_PORT"

	EnvMQTTBroker   EnvKey = "MQTT_BROKER"
	EnvMQTTClientID EnvKey = "MQTT_CLIENT_ID"
	EnvMQTTUsername EnvKey = "MQTT_USERNAME"
	EnvMQTTPassword EnvKey = "MQTT_PASSWORD"
)

type Config struct {
	Port      int
	Generate  bool
	DataDir   string
	Database  string
	LogLevel  slog.Leveler
	LogOutput io.Writer

	// Hardware paths, empty selects the simulated device
	W1DevicePath   string
	BatteryADCPath string
	HallSensorPath string

	NetworkInterface   string
	NetworkJoinTimeout time.Duration
	SleepCommand       string
	ReportTimeout      time.Duration

	// MQTT Server configuration
	MQTTBrokerPort int

	// MQTT configuration, an empty broker disables the telemetry mirror
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
}

func New() (*Config, error) {
	// Get data directory
	dataDir := getStringEnv(EnvDataDir, "data")

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Derive paths from data directory
	logPath := filepath.Join(dataDir, "app.log")

	var logOutput io.Writer = os.Stdout

	if getBoolEnv(EnvLogToFile, false) {
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		logOutput = f
	}

	port := getIntEnv(EnvPort, 80)
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid %s: %d", EnvPort, port)
	}

	sleepCommand := getStringEnv(EnvSleepCommand, "")
	if sleepCommand != "" && strings.Count(sleepCommand, "%d") != 1 {
		return nil, fmt.Errorf("%s must contain exactly one %%d for the sleep seconds", EnvSleepCommand)
	}

	return &Config{
		Port:               port,
		Generate:           getBoolEnv(EnvGenerate, false),
		DataDir:            dataDir,
		Database:           filepath.Join(dataDir, "thermonode.sqlite"),
		LogLevel:           getLogLevelEnv(EnvLogLevel, slog.LevelInfo),
		LogOutput:          logOutput,
		W1DevicePath:       getStringEnv(EnvW1DevicePath, ""),
		BatteryADCPath:     getStringEnv(EnvBatteryADCPath, ""),
		HallSensorPath:     getStringEnv(EnvHallSensorPath, ""),
		NetworkInterface:   getStringEnv(EnvNetworkInterface, "wlan0"),
		NetworkJoinTimeout: getDurationEnv(EnvNetworkJoinTimeout, 20*time.Second),
		SleepCommand:       sleepCommand,
		ReportTimeout:      getDurationEnv(EnvReportTimeout, 5*time.Second),
		MQTTBrokerPort:     getIntEnv(EnvMQTTBrokerPort, 0),
		MQTTBroker:         getStringEnv(EnvMQTTBroker, ""),
		MQTTClientID:       getStringEnv(EnvMQTTClientID, "thermonode"),
		MQTTUsername:       getStringEnv(EnvMQTTUsername, ""),
		MQTTPassword:       getStringEnv(EnvMQTTPassword, ""),
	}, nil
}

func (c *Config) Close() error {
	if f, ok := c.LogOutput.(*os.File); ok {
		if f != os.Stdout && f != os.Stderr {
			return f.Close()
		}
	}

	return nil
}
