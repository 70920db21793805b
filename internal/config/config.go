package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

type ContextKey string

// EnvPrefix is prepended to every environment override, e.g. GLIMPSE_SNMP_TARGET.
const EnvPrefix = "GLIMPSE"

type Config struct {
	InputMethod     InputMethod `yaml:"input_method" default:"local"`
	RefreshInterval int         `yaml:"refresh_interval" default:"2"`
	CollectorID     string      `yaml:"collector_id"`
	PidFileDir      string      `yaml:"pid_file_dir" default:"/tmp/"`
	WorkDir         string      `yaml:"work_dir" default:"/tmp/"`
	Log             Log         `yaml:"log"`
	Metrics         Metrics     `yaml:"metrics"`
	Database        Database    `yaml:"database"`
	SNMP            SNMP        `yaml:"snmp"`
	Plugins         []Plugin    `yaml:"plugins"`
}

type Log struct {
	FileDir string `yaml:"file_dir"`
}

type Metrics struct {
	Port string `yaml:"port" default:"8080"`
	// Aggregator serves the snapshots every collector stored in the database
	// instead of collecting locally.
	Aggregator bool `yaml:"aggregator"`
}

type Database struct {
	URL        string `yaml:"url" default:"localhost"`
	Port       int    `yaml:"port" default:"6379"`
	User       string `yaml:"user" default:""`
	Password   string `yaml:"password" default:""`
	Database   int    `yaml:"database" default:"0"`
	TTLSeconds int    `yaml:"ttl_seconds" default:"0"`
	Enabled    bool   `yaml:"enabled" default:"false"`
}

// SNMP holds the remote acquisition target used when input_method is snmp.
type SNMP struct {
	Target         string `yaml:"target"`
	Port           int    `yaml:"port" default:"161"`
	Community      string `yaml:"community" default:"public"`
	Version        string `yaml:"version" default:"2c"`
	TimeoutSeconds int    `yaml:"timeout_seconds" default:"2"`
	Retries        int    `yaml:"retries" default:"1"`
}

type Plugin struct {
	Name     string `yaml:"name"`
	Disabled bool   `yaml:"disabled"`
}

// Default returns a Config filled from the default struct tags.
func Default() (Config, error) {
	var config Config
	if err := setDefaults(reflect.ValueOf(&config).Elem()); err != nil {
		return Config{}, err
	}
	return config, nil
}

// LoadConfig decodes the file on top of Default, so keys the file sets
// (explicit zeros included) win and missing keys keep their default.
func LoadConfig(configPath string) (Config, error) {
	config, err := Default()
	if err != nil {
		return Config{}, err
	}
	file, err := os.Open(configPath)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	err = decoder.Decode(&config)
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

// LoadInEnvs applies GLIMPSE_* environment overrides and validates the
// result. Defaults are not applied here; start from LoadConfig or Default.
func LoadInEnvs(config Config) (Config, error) {
	if err := applyEnvOverrides(reflect.ValueOf(&config).Elem(), EnvPrefix); err != nil {
		return Config{}, err
	}
	method, err := ParseInputMethod(string(config.InputMethod))
	if err != nil {
		return Config{}, err
	}
	config.InputMethod = method
	if config.RefreshInterval <= 0 {
		return Config{}, fmt.Errorf("refresh_interval must be positive, got %d", config.RefreshInterval)
	}
	if config.CollectorID == "" {
		config.CollectorID = uuid.NewString()
	}
	return config, nil
}

// PluginDisabled reports whether the plugin has been switched off in the config.
// Plugins not listed are enabled.
func (c Config) PluginDisabled(name string) bool {
	for _, p := range c.Plugins {
		if p.Name == name {
			return p.Disabled
		}
	}
	return false
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]+`)

func normalizeEnvKey(key string) string {
	return nonAlnum.ReplaceAllString(strings.ToUpper(key), "_")
}

// applyEnvOverrides walks the yaml-tagged fields of v and replaces any field
// whose PREFIX_FIELD environment variable is set. Nested structs extend the
// prefix with their own tag.
func applyEnvOverrides(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("yaml"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + normalizeEnvKey(tag)
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			if err := applyEnvOverrides(fv, key); err != nil {
				return err
			}
			continue
		}
		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := setField(fv, raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// setDefaults fills zero-valued fields from their default tag.
func setDefaults(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			if err := setDefaults(fv); err != nil {
				return err
			}
			continue
		}
		def, ok := t.Field(i).Tag.Lookup("default")
		if !ok || def == "" || !fv.IsZero() {
			continue
		}
		if err := setField(fv, def); err != nil {
			return fmt.Errorf("default tag of field %s: %w", t.Field(i).Name, err)
		}
	}
	return nil
}

func setField(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}
