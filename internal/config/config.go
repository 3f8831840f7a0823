// Package config loads server settings from flags, environment and an
// optional config file.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ConfigFile              = "config"
	ConfigGnubgPath         = "gnubg-path"
	ConfigGnubgArgs         = "gnubg-args"
	ConfigHost              = "host"
	ConfigPort              = "port"
	ConfigDefaultPlies      = "default-plies"
	ConfigBannerTimeout     = "banner-timeout"
	ConfigCommandTimeout    = "command-timeout"
	ConfigHintTimeout       = "hint-timeout"
	ConfigStopTimeout       = "stop-timeout"
	ConfigIdleDivisor       = "idle-divisor"
	ConfigMinLineTimeout    = "min-line-timeout"
	ConfigMaxWait           = "max-wait"
	ConfigMaxInFlight       = "max-in-flight"
	ConfigCacheSize         = "cache-size"
	ConfigLogLevel          = "log-level"
	ConfigNatsURL           = "nats-url"
	ConfigNatsSubjectPrefix = "nats-subject-prefix"
)

// EnvPrefix prefixes environment overrides, e.g. BGSERVER_PORT.
const EnvPrefix = "BGSERVER"

type Config struct {
	*viper.Viper
}

// New returns a Config holding only the defaults.
func New() *Config {
	v := viper.New()
	v.SetDefault(ConfigGnubgPath, "gnubg")
	v.SetDefault(ConfigGnubgArgs, "--tty")
	v.SetDefault(ConfigHost, "0.0.0.0")
	v.SetDefault(ConfigPort, 8080)
	v.SetDefault(ConfigDefaultPlies, 2)
	v.SetDefault(ConfigBannerTimeout, 10*time.Second)
	v.SetDefault(ConfigCommandTimeout, 10*time.Second)
	v.SetDefault(ConfigHintTimeout, 30*time.Second)
	v.SetDefault(ConfigStopTimeout, 5*time.Second)
	v.SetDefault(ConfigIdleDivisor, 20)
	v.SetDefault(ConfigMinLineTimeout, 50*time.Millisecond)
	v.SetDefault(ConfigMaxWait, 60*time.Second)
	v.SetDefault(ConfigMaxInFlight, 64)
	v.SetDefault(ConfigCacheSize, 4096)
	v.SetDefault(ConfigLogLevel, "info")
	v.SetDefault(ConfigNatsURL, "")
	v.SetDefault(ConfigNatsSubjectPrefix, "backgammon")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// the engine location keeps the names the docker images already use
	_ = v.BindEnv(ConfigGnubgPath, "GNUBG_PATH")
	_ = v.BindEnv(ConfigGnubgArgs, "GNUBG_ARGS")

	return &Config{Viper: v}
}

// Load parses command-line args on top of the environment and, when
// --config is given, a config file. Flags win over the environment, which
// wins over the file.
func (c *Config) Load(name string, args []string) error {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String(ConfigFile, "", "optional config file (yaml, toml or json)")
	fs.String(ConfigGnubgPath, c.GetString(ConfigGnubgPath), "gnubg binary name or path")
	fs.String(ConfigGnubgArgs, c.GetString(ConfigGnubgArgs), "arguments passed to gnubg, shell-quoted")
	fs.String(ConfigHost, c.GetString(ConfigHost), "listen address")
	fs.Int(ConfigPort, c.GetInt(ConfigPort), "listen port")
	fs.Int(ConfigDefaultPlies, c.GetInt(ConfigDefaultPlies), "search depth when a request omits ply")
	fs.Duration(ConfigBannerTimeout, c.GetDuration(ConfigBannerTimeout), "wait for the gnubg banner")
	fs.Duration(ConfigCommandTimeout, c.GetDuration(ConfigCommandTimeout), "wait for each gnubg command")
	fs.Duration(ConfigHintTimeout, c.GetDuration(ConfigHintTimeout), "wait for hint output")
	fs.Duration(ConfigStopTimeout, c.GetDuration(ConfigStopTimeout), "grace period before gnubg is killed")
	fs.Int(ConfigIdleDivisor, c.GetInt(ConfigIdleDivisor), "per-line timeout is the command timeout divided by this")
	fs.Duration(ConfigMinLineTimeout, c.GetDuration(ConfigMinLineTimeout), "lower bound for the per-line timeout")
	fs.Duration(ConfigMaxWait, c.GetDuration(ConfigMaxWait), "upper bound for any single gnubg reply")
	fs.Int(ConfigMaxInFlight, c.GetInt(ConfigMaxInFlight), "requests allowed to queue for the engine")
	fs.Int(ConfigCacheSize, c.GetInt(ConfigCacheSize), "answers remembered per request kind, 0 disables")
	fs.String(ConfigLogLevel, c.GetString(ConfigLogLevel), "debug, info, warn or error")
	fs.String(ConfigNatsURL, c.GetString(ConfigNatsURL), "NATS server, empty to disable")
	fs.String(ConfigNatsSubjectPrefix, c.GetString(ConfigNatsSubjectPrefix), "NATS subject prefix")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.BindPFlags(fs); err != nil {
		return err
	}

	if file := c.GetString(ConfigFile); file != "" {
		c.SetConfigFile(file)
		if err := c.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", file, err)
		}
	}
	return c.Validate()
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	if p := c.GetInt(ConfigDefaultPlies); p < 0 || p > 4 {
		return fmt.Errorf("%s must be 0-4, got %d", ConfigDefaultPlies, p)
	}
	if c.GetInt(ConfigIdleDivisor) < 1 {
		return fmt.Errorf("%s must be positive", ConfigIdleDivisor)
	}
	if c.GetInt(ConfigMaxInFlight) < 1 {
		return fmt.Errorf("%s must be positive", ConfigMaxInFlight)
	}
	if c.GetInt(ConfigCacheSize) < 0 {
		return fmt.Errorf("%s must not be negative", ConfigCacheSize)
	}
	if _, err := c.GnubgArgs(); err != nil {
		return err
	}
	return nil
}

// GnubgArgs splits the shell-quoted gnubg argument string.
func (c *Config) GnubgArgs() ([]string, error) {
	args, err := shellquote.Split(c.GetString(ConfigGnubgArgs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigGnubgArgs, err)
	}
	return args, nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.GetString(ConfigHost), strconv.Itoa(c.GetInt(ConfigPort)))
}
