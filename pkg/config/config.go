package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/greg-hellings/stateview/pkg/nifi"
)

// ErrComponentNotFound is returned when a named component is not configured.
var ErrComponentNotFound = errors.New("component not found in configuration")

// Config represents the top-level configuration file structure
type Config struct {
	Instances map[string]InstanceConfig `yaml:"instances" toml:"instances"`
}

// InstanceConfig contains configuration for a single NiFi instance
type InstanceConfig struct {
	Default    InstanceDefaults  `yaml:"default" toml:"default"`
	Components []ComponentConfig `yaml:"components" toml:"components"`
}

// InstanceDefaults contains connection settings and values inherited by components
type InstanceDefaults struct {
	URL      string `yaml:"url" toml:"url"`
	Token    string `yaml:"token" toml:"token"`
	Insecure bool   `yaml:"insecure" toml:"insecure"`
	Type     string `yaml:"type" toml:"type"`
}

// ComponentConfig names a component whose state can be viewed
type ComponentConfig struct {
	Name string `yaml:"name" toml:"name"`
	ID   string `yaml:"id" toml:"id"`
	Type string `yaml:"type" toml:"type"`
	// URI overrides the URI built from the instance URL, type and id.
	URI string `yaml:"uri" toml:"uri"`
}

// LoadFromFile reads a YAML or TOML configuration file (chosen by extension)
// and returns the parsed Config. A .env file next to the config is loaded
// first so that ${VAR} references can be resolved from it.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(filename), ".env")
	if _, statErr := os.Stat(envFile); statErr == nil {
		if err := LoadEnvFile(envFile); err != nil {
			return nil, err
		}
	}

	var config Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply defaults to components
	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	return &config, nil
}

// LoadEnvFile loads variables from a dotenv file without overriding
// variables already present in the environment.
func LoadEnvFile(filename string) error {
	if err := godotenv.Load(filename); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", filename, err)
	}
	return nil
}

// ApplyDefaults expands environment references, applies instance defaults to
// components that don't set them, and validates required fields
func (c *Config) ApplyDefaults() error {
	for instanceName, instanceConfig := range c.Instances {
		defaults := &instanceConfig.Default
		defaults.URL = strings.TrimRight(os.ExpandEnv(defaults.URL), "/")
		defaults.Token = os.ExpandEnv(defaults.Token)

		for i := range instanceConfig.Components {
			comp := &instanceConfig.Components[i]

			if comp.Type == "" {
				comp.Type = defaults.Type
			}
			typ, err := nifi.ParseComponentType(comp.Type)
			if err != nil {
				return fmt.Errorf("instance %s: component at index %d: %w", instanceName, i, err)
			}
			comp.Type = string(typ)
			comp.URI = os.ExpandEnv(comp.URI)

			// Validate required fields
			if comp.Name == "" {
				return fmt.Errorf("instance %s: component at index %d missing required field 'name'", instanceName, i)
			}
			if comp.ID == "" && comp.URI == "" {
				return fmt.Errorf("instance %s: component %q needs either 'id' or 'uri'", instanceName, comp.Name)
			}
			if comp.URI == "" && defaults.URL == "" {
				return fmt.Errorf("instance %s: component %q has no 'uri' and the instance has no default 'url'", instanceName, comp.Name)
			}
		}
		c.Instances[instanceName] = instanceConfig
	}

	return nil
}

// GetAllComponents returns a flat list of all components with their instance,
// ordered by instance and then by declaration order
func (c *Config) GetAllComponents() []ComponentWithInstance {
	names := make([]string, 0, len(c.Instances))
	for name := range c.Instances {
		names = append(names, name)
	}
	sort.Strings(names)

	var comps []ComponentWithInstance
	for _, instanceName := range names {
		instanceConfig := c.Instances[instanceName]
		for _, comp := range instanceConfig.Components {
			comps = append(comps, ComponentWithInstance{
				Instance: instanceName,
				Defaults: instanceConfig.Default,
				Config:   comp,
			})
		}
	}
	return comps
}

// FindComponent looks a component up by name. When instance is empty every
// instance is searched and the name must be unambiguous.
func (c *Config) FindComponent(instance, name string) (*ComponentWithInstance, error) {
	var found []ComponentWithInstance
	for _, comp := range c.GetAllComponents() {
		if instance != "" && comp.Instance != instance {
			continue
		}
		if comp.Config.Name == name {
			found = append(found, comp)
		}
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, name)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("component %q is defined in several instances; use --instance", name)
	}
}

// ComponentWithInstance combines a component configuration with its instance
type ComponentWithInstance struct {
	Instance string
	Defaults InstanceDefaults
	Config   ComponentConfig
}

// URI returns the REST resource URI of the component.
func (c ComponentWithInstance) URI() string {
	if c.Config.URI != "" {
		return strings.TrimRight(c.Config.URI, "/")
	}
	return nifi.ComponentURI(c.Defaults.URL, nifi.ComponentType(c.Config.Type), c.Config.ID)
}

// Component returns the reference bound to the state dialog.
func (c ComponentWithInstance) Component() nifi.Component {
	return nifi.Component{URI: c.URI(), Name: c.Config.Name}
}

// ClientConfig returns connection settings for the component's instance.
func (c ComponentWithInstance) ClientConfig() nifi.Config {
	return nifi.Config{
		BaseURL:  c.Defaults.URL,
		Token:    c.Defaults.Token,
		Insecure: c.Defaults.Insecure,
	}
}
