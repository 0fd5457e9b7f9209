// Package config owns the persisted configuration: where the file lives,
// what the defaults are, and the credentials section the provider registry
// reads through the ConfigStore interface. It keeps a private viper instance
// so importers of this module can run their own viper without conflicts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/objtools/storctl/pkg/cloud"
	"github.com/objtools/storctl/pkg/provider"
)

const (
	// EnvConfigFile names an alternate config file location, consulted when
	// no --config flag is given.
	EnvConfigFile = "STORCTL_CONFIG"

	configDirName  = ".storctl"
	configFileName = "config"

	oneMB = 1024 * 1024
)

type Manager struct {
	Cfg    *viper.Viper
	Logger *logrus.Logger

	// path is the config file actually read, empty when none was found and
	// we are running on defaults plus environment.
	path string
}

// NewManager builds the configuration manager. Recognized options:
//
//	"config-file" (string): read exactly this file instead of searching
//	"logger" (*logrus.Logger): use this logger instead of a fresh one
//
// A missing config file is not an error unless it was named explicitly;
// first runs operate on defaults until Bootstrap writes a file.
func NewManager(userCfg map[string]interface{}) (*Manager, error) {
	var err error
	mgr := &Manager{}

	if loggerRaw, ok := userCfg["logger"]; ok {
		if logger, ok := loggerRaw.(*logrus.Logger); ok {
			mgr.Logger = logger
		} else {
			return nil, errors.New("option 'logger' must be a *logrus.Logger")
		}
	} else {
		mgr.Logger = logrus.New()
	}

	if cfgPathRaw, ok := userCfg["config-file"]; ok {
		if cfgPath, ok := cfgPathRaw.(string); ok {
			err = mgr.initConfig(&cfgPath)
		} else {
			return nil, errors.New("option 'config-file' must be of type string")
		}
	} else {
		err = mgr.initConfig(nil)
	}
	if err != nil {
		return nil, err
	}

	return mgr, nil
}

func (m *Manager) initConfig(cfgPath *string) error {
	// Private viper context just for storctl (so as not to conflict with the
	// importer's usage).
	m.Cfg = viper.New()

	// Transfers at or above this many bytes show a progress line.
	m.Cfg.SetDefault("storctl.resumable_threshold", oneMB)

	// State for restartable transfers. Empty means ~/.storctl/tracker,
	// resolved lazily because HOME may not exist at startup in minimal
	// environments.
	m.Cfg.SetDefault("storctl.resumable_tracker_dir", "")

	// Where "storctl update" looks for the published release archive.
	m.Cfg.SetDefault("storctl.release_bucket", "gs://storctl-release")

	m.Cfg.SetDefault("transport.num_retries", 4)
	m.Cfg.SetDefault("transport.https_validate_certificates", true)
	m.Cfg.SetDefault("transport.proxy", "")
	m.Cfg.SetDefault("transport.proxy_port", 0)

	// Credentials may come from the environment without any file present.
	// Precedence for command code is still owned by the provider registry;
	// these bindings just make `storctl ver`-style reads coherent.
	for _, name := range provider.Names() {
		src := provider.Sources(name)
		m.Cfg.BindEnv("credentials."+src.AccessKeyOption, src.AccessKeyEnvVar())
		m.Cfg.BindEnv("credentials."+src.SecretKeyOption, src.SecretKeyEnvVar())
	}

	if cfgPath != nil {
		expanded, err := homedir.Expand(*cfgPath)
		if err != nil {
			return errors.Wrap(err, "Failed to resolve config path")
		}
		m.Cfg.SetConfigFile(expanded)
		if err := m.Cfg.ReadInConfig(); err != nil {
			return errors.Wrap(err, "Failed to load config")
		}
		m.path = m.Cfg.ConfigFileUsed()
		return nil
	}

	if envPath := os.Getenv(EnvConfigFile); envPath != "" {
		m.Cfg.SetConfigFile(envPath)
		if err := m.Cfg.ReadInConfig(); err != nil {
			return errors.Wrap(err, "Failed to load config named by "+EnvConfigFile)
		}
		m.path = m.Cfg.ConfigFileUsed()
		return nil
	}

	// Default search path is ~/.storctl/config.* (yaml, json, etc).
	dir, err := DefaultDir()
	if err == nil {
		m.Cfg.AddConfigPath(dir)
	}
	m.Cfg.SetConfigName(configFileName)
	if err := m.Cfg.ReadInConfig(); err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
			// First run: keep going on defaults, Bootstrap may create one.
			m.Logger.WithField("module", "config").Debug("No config file found")
			return nil
		default:
			return errors.Wrap(err, "Failed to load config")
		}
	}
	m.path = m.Cfg.ConfigFileUsed()
	return nil
}

// DefaultDir returns ~/.storctl.
func DefaultDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "Failed to locate home directory")
	}
	return filepath.Join(home, configDirName), nil
}

// Path returns the config file in use, empty when running without one.
func (m *Manager) Path() string {
	return m.path
}

// CredentialOption implements provider.ConfigStore: string options out of
// the credentials section.
func (m *Manager) CredentialOption(option string) string {
	return m.Cfg.GetString("credentials." + option)
}

// ConfigVersion returns the version note the bootstrap wrote into the
// config file, empty when the file predates it or does not exist.
func (m *Manager) ConfigVersion() string {
	return m.Cfg.GetString("config_version")
}

// ResumableThreshold is the transfer size at which progress reporting (and,
// for providers that support it, the resumable protocol) kicks in.
func (m *Manager) ResumableThreshold() int64 {
	return m.Cfg.GetInt64("storctl.resumable_threshold")
}

// TrackerDir returns the directory for transfer tracker state, creating it
// if needed.
func (m *Manager) TrackerDir() (string, error) {
	dir := m.Cfg.GetString("storctl.resumable_tracker_dir")
	if dir == "" {
		base, err := DefaultDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "tracker")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errors.Wrap(err, "Failed to create tracker directory")
	}
	return dir, nil
}

// ReleaseBucket is the URI of the bucket holding published releases.
func (m *Manager) ReleaseBucket() string {
	return m.Cfg.GetString("storctl.release_bucket")
}

// TransportOptions builds the storage client options from the transport
// section plus the given debug level.
func (m *Manager) TransportOptions(debugLevel int) cloud.Options {
	opts := cloud.Options{
		NumRetries:         m.Cfg.GetInt("transport.num_retries"),
		InsecureSkipVerify: !m.Cfg.GetBool("transport.https_validate_certificates"),
		DebugHTTP:          debugLevel >= 2,
		DebugHTTPBody:      debugLevel >= 3,
	}
	if proxy := m.Cfg.GetString("transport.proxy"); proxy != "" {
		if !strings.Contains(proxy, "://") {
			proxy = "http://" + proxy
		}
		if port := m.Cfg.GetInt("transport.proxy_port"); port != 0 {
			proxy = fmt.Sprintf("%s:%d", proxy, port)
		}
		opts.Proxy = proxy
	}
	return opts
}
