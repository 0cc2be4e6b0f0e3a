package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configName = "safem8"
	envPrefix  = "SAFEM8"
)

type RTDB struct {
	URL       string        `mapstructure:"url"`
	AuthToken string        `mapstructure:"authToken"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type Relay struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type Sensors struct {
	Temperature string `mapstructure:"temperature"`
	Humidity    string `mapstructure:"humidity"`
	Battery     string `mapstructure:"battery"`
	AirQuality  string `mapstructure:"airQuality"`
	FaceLog     string `mapstructure:"faceLog"`
}

type Store struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
}

type Influx struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
	Device  string `mapstructure:"device"`
}

type Graylog struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Config is the typed view of all settings.
type Config struct {
	LogLevel   string `mapstructure:"logLevel"`
	ListenAddr string `mapstructure:"listenAddr"`
	Joystick   struct {
		MaxDrag float64 `mapstructure:"maxDrag"`
	} `mapstructure:"joystick"`
	RTDB    RTDB    `mapstructure:"rtdb"`
	Relay   Relay   `mapstructure:"relay"`
	Sensors Sensors `mapstructure:"sensors"`
	Alert   struct {
		TemperatureLimit float64 `mapstructure:"temperatureLimit"`
	} `mapstructure:"alert"`
	Notifications struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"notifications"`
	Store   Store   `mapstructure:"store"`
	Influx  Influx  `mapstructure:"influx"`
	Graylog Graylog `mapstructure:"graylog"`
	Gamepad struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"gamepad"`
	Tray struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"tray"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("listenAddr", ":8080")

	viper.SetDefault("joystick.maxDrag", 50)

	viper.SetDefault("rtdb.url", "")
	viper.SetDefault("rtdb.authToken", "")
	viper.SetDefault("rtdb.timeout", 5*time.Second)

	viper.SetDefault("relay.enabled", false)
	viper.SetDefault("relay.url", "ws://localhost:9000/robot")

	viper.SetDefault("sensors.temperature", "log/temp")
	viper.SetDefault("sensors.humidity", "log/humid")
	viper.SetDefault("sensors.battery", "monitor/battery")
	viper.SetDefault("sensors.airQuality", "")
	viper.SetDefault("sensors.faceLog", "face_log")

	viper.SetDefault("alert.temperatureLimit", 35.0)
	viper.SetDefault("notifications.capacity", 5)

	viper.SetDefault("store.enabled", true)
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.dsn", "safem8.db")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "safem8")
	viper.SetDefault("influx.bucket", "sensors")
	viper.SetDefault("influx.device", "safem8")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("gamepad.enabled", false)
	viper.SetDefault("tray.enabled", true)
}

// BindFlags registers command-line overrides on fs and binds them to viper.
func BindFlags(fs *pflag.FlagSet) error {
	fs.String("config-dir", ".", "directory containing safem8.json and .env")
	fs.String("listen", ":8080", "HTTP listen address")
	fs.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	fs.String("rtdb-url", "", "realtime database URL")
	fs.Bool("gamepad", false, "drive the robot from a connected gamepad")
	fs.Bool("no-tray", false, "disable the system tray icon")

	binds := map[string]string{
		"listenAddr":      "listen",
		"logLevel":        "log-level",
		"rtdb.url":        "rtdb-url",
		"gamepad.enabled": "gamepad",
	}
	for key, name := range binds {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Load sets defaults, loads .env and the optional safem8.json from configDir,
// and enables SAFEM8_* environment overrides (e.g. SAFEM8_RTDB_AUTHTOKEN).
func Load(configDir string) error {
	setDefaults()

	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(configName)
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// FromViper decodes the current viper state.
func FromViper() (Config, error) {
	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	if c.Joystick.MaxDrag <= 0 {
		return Config{}, fmt.Errorf("joystick.maxDrag must be positive, got %v", c.Joystick.MaxDrag)
	}
	return c, nil
}
