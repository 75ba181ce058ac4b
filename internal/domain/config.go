package domain

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
// This is the root configuration structure loaded from YAML files.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Jira      JiraConfig      `yaml:"jira"`
	Members   MembersConfig   `yaml:"members"`
}

// TransportConfig defines transport settings.
// Specifies whether to use stdio or HTTP transport.
type TransportConfig struct {
	Type string     `yaml:"type"` // "stdio" or "http"
	HTTP HTTPConfig `yaml:"http,omitempty"`
}

// HTTPConfig defines HTTP transport settings.
// Only used when transport type is "http".
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// JiraConfig carries the process-wide default credentials. Every field is
// optional: a tool call may supply its own jiraHost/loginName/loginToken
// arguments instead, and credential resolution fails only when a field is
// absent from both sources.
type JiraConfig struct {
	Host       string `yaml:"host,omitempty"`
	LoginName  string `yaml:"login_name,omitempty"`
	LoginToken string `yaml:"login_token,omitempty"`
}

// MembersConfig controls which actors are hidden from the "who's available"
// member listing shown when a requested user is not found. Actors whose type
// matches a hidden account type are suppressed unless their display name
// contains the always-show substring (case-insensitive). An absent list means
// the default (app accounts hidden); an explicitly empty list hides nothing.
type MembersConfig struct {
	HiddenAccountTypes  []string `yaml:"hidden_account_types,omitempty"`
	AlwaysShowSubstring string   `yaml:"always_show_substring,omitempty"`
}

// DefaultCredentials implements DefaultsProvider using the configured Jira
// section.
func (c *Config) DefaultCredentials() Credentials {
	return Credentials{
		Host:       c.Jira.Host,
		LoginName:  c.Jira.LoginName,
		LoginToken: c.Jira.LoginToken,
	}
}

// ShouldHide reports whether an actor of the given type and display name is
// suppressed from the member listing.
func (mc MembersConfig) ShouldHide(actorType, displayName string) bool {
	// nil means unconfigured; an explicit empty list disables hiding.
	hidden := mc.HiddenAccountTypes
	if hidden == nil {
		hidden = []string{"app"}
	}

	matched := false
	for _, t := range hidden {
		if strings.EqualFold(actorType, t) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	if mc.AlwaysShowSubstring != "" &&
		strings.Contains(strings.ToLower(displayName), strings.ToLower(mc.AlwaysShowSubstring)) {
		return false
	}
	return true
}

// LoadConfig reads and validates configuration from a YAML file.
// Returns an error if the file is missing, has invalid syntax, or fails validation.
func LoadConfig(path string) (*Config, error) {
	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	// Parse YAML
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid YAML syntax in configuration file: %w", err)
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Validate checks the configuration for completeness and correctness.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errors []string

	// Validate transport configuration
	if err := c.validateTransport(); err != nil {
		errors = append(errors, err.Error())
	}

	// Validate the Jira defaults (only the parts that are present)
	if err := c.validateJira(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// validateTransport validates the transport configuration.
func (c *Config) validateTransport() error {
	var errors []string

	// Check transport type is specified
	if c.Transport.Type == "" {
		errors = append(errors, "transport type is required")
	} else if c.Transport.Type != "stdio" && c.Transport.Type != "http" {
		errors = append(errors, fmt.Sprintf("invalid transport type '%s': must be 'stdio' or 'http'", c.Transport.Type))
	}

	// If HTTP transport, validate HTTP configuration
	if c.Transport.Type == "http" {
		if c.Transport.HTTP.Host == "" {
			errors = append(errors, "HTTP host is required when transport type is 'http'")
		}
		if c.Transport.HTTP.Port <= 0 || c.Transport.HTTP.Port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid HTTP port %d: must be between 1 and 65535", c.Transport.HTTP.Port))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// validateJira validates the Jira default-credential section. All fields are
// optional, but a host that is present must be a usable URL once normalized.
func (c *Config) validateJira() error {
	if c.Jira.Host == "" {
		return nil
	}

	normalized := NormalizeHost(c.Jira.Host)
	parsedURL, err := url.Parse(normalized)
	if err != nil {
		return fmt.Errorf("jira host is invalid: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("jira host must use http or https scheme")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("jira host must include a hostname")
	}

	return nil
}
