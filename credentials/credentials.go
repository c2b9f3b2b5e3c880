// Package credentials loads and validates the account details used to log in
// to a Smartschool portal.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to every environment variable read by FromEnv.
	EnvPrefix = "SMARTSCHOOL_"
	// FileName is the credentials file looked up by Find.
	FileName = "credentials.yml"
	// CacheDirName is the dotted directory under the home directory that is
	// searched last.
	CacheDirName = ".cache/smartschool"
)

// ErrInvalid is returned by Validate when required fields are empty.
var ErrInvalid = errors.New("invalid credentials")

// Credentials holds what is needed to log in. MainURL is the portal host
// without scheme, e.g. "school.smartschool.be".
type Credentials struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	MainURL   string `yaml:"main_url"`
	MFASecret string `yaml:"mfa,omitempty"`
	Birthday  string `yaml:"birthday,omitempty"`

	Extra map[string]any `yaml:",inline"`
}

// Validate trims every field and reports all required fields that are empty.
func (c *Credentials) Validate() error {
	c.Username = strings.TrimSpace(c.Username)
	c.Password = strings.TrimSpace(c.Password)
	c.MainURL = strings.TrimSpace(c.MainURL)
	c.MFASecret = strings.TrimSpace(c.MFASecret)
	c.Birthday = strings.TrimSpace(c.Birthday)

	var missing []string
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if c.MainURL == "" {
		missing = append(missing, "main_url")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: please verify and correct these attributes: %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^-_a-zA-Z0-9.]+`)

// Identity returns a filesystem safe key that is unique per account and portal.
func (c *Credentials) Identity() string {
	id := unsafeChars.ReplaceAllString(c.Username+"@"+c.MainURL, "_")
	return strings.Trim(id, "_")
}

// FromEnv reads the SMARTSCHOOL_* environment variables.
func FromEnv() *Credentials {
	return &Credentials{
		Username:  os.Getenv(EnvPrefix + "USERNAME"),
		Password:  os.Getenv(EnvPrefix + "PASSWORD"),
		MainURL:   os.Getenv(EnvPrefix + "MAIN_URL"),
		MFASecret: os.Getenv(EnvPrefix + "MFA"),
		Birthday:  os.Getenv(EnvPrefix + "BIRTHDAY"),
	}
}

// FromFile reads a YAML credentials file. Unknown keys end up in Extra.
func FromFile(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}

	return &creds, nil
}

// SearchPath lists the candidate credential files in lookup order: the
// explicit path, the working directory and its ancestors, the home directory
// and finally the dotted cache directory.
func SearchPath(explicit string) []string {
	var paths []string
	if explicit != "" {
		paths = append(paths, explicit)
	}

	if cwd, err := os.Getwd(); err == nil {
		dir := cwd
		for {
			paths = append(paths, filepath.Join(dir, FileName))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, FileName))
		paths = append(paths, filepath.Join(home, CacheDirName, FileName))
	}

	return paths
}

// Find returns the first existing file from SearchPath.
func Find(explicit string) (string, error) {
	for _, p := range SearchPath(explicit) {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no %s found: %w", FileName, os.ErrNotExist)
}

// Load resolves credentials from a file on the search path, falling back to
// the environment, and validates the result.
func Load(explicit string) (*Credentials, error) {
	var creds *Credentials

	path, err := Find(explicit)
	switch {
	case err == nil:
		creds, err = FromFile(path)
		if err != nil {
			return nil, err
		}
	case explicit != "":
		return nil, fmt.Errorf("credentials file %s: %w", explicit, err)
	default:
		creds = FromEnv()
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}
