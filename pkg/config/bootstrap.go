package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	isatty "github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/objtools/storctl/pkg/provider"
	"github.com/objtools/storctl/pkg/version"
)

// Bootstrap makes sure a usable credential store exists before any command
// runs. When a config file was read, or any provider already has credentials
// in the environment, there is nothing to do. Otherwise, on a terminal, it
// prompts per provider and writes ~/.storctl/config.yaml; off a terminal it
// proceeds without credentials and lets the transport report the
// authentication failure.
func (m *Manager) Bootstrap() error {
	if m.path != "" {
		return nil
	}
	for _, name := range provider.Names() {
		src := provider.Sources(name)
		if os.Getenv(src.AccessKeyEnvVar()) != "" || os.Getenv(src.SecretKeyEnvVar()) != "" {
			return nil
		}
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		m.Logger.WithField("module", "config").
			Debug("No credentials configured and stdin is not a terminal; skipping setup")
		return nil
	}
	return m.interactiveSetup(os.Stdin)
}

func (m *Manager) interactiveSetup(in *os.File) error {
	fmt.Println("No storctl configuration found. Let's create one.")
	fmt.Println("Leave an access key blank to skip that provider.")

	reader := bufio.NewReader(in)
	entered := make(map[string]string)
	for _, name := range provider.Names() {
		src := provider.Sources(name)
		access, err := promptLine(reader, fmt.Sprintf("%s access key id", name))
		if err != nil {
			return err
		}
		if access == "" {
			continue
		}
		secret, err := promptSecret(in, reader, fmt.Sprintf("%s secret access key", name))
		if err != nil {
			return err
		}
		entered["credentials."+src.AccessKeyOption] = access
		entered["credentials."+src.SecretKeyOption] = secret
	}
	if len(entered) == 0 {
		fmt.Println("No credentials entered; continuing without a config file.")
		return nil
	}

	path, err := m.writeCredentials(entered)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// writeCredentials persists exactly what the user entered (plus a version
// marker), not the full effective configuration, so the file stays readable
// and defaults keep following tool upgrades.
func (m *Manager) writeCredentials(entered map[string]string) (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errors.Wrap(err, "Failed to create config directory")
	}
	path := filepath.Join(dir, configFileName+".yaml")

	out := viper.New()
	out.Set("config_version", version.Version)
	for key, value := range entered {
		out.Set(key, value)
		m.Cfg.Set(key, value)
	}
	m.Cfg.Set("config_version", version.Version)
	if err := out.WriteConfigAs(path); err != nil {
		return "", errors.Wrap(err, "Failed to write config file")
	}
	// The file holds secrets.
	if err := os.Chmod(path, 0600); err != nil {
		return "", errors.Wrap(err, "Failed to restrict config file permissions")
	}
	m.path = path
	return path, nil
}

func promptLine(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Printf("%s: ", prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "Failed to read input")
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo on a terminal, falling back to a plain
// line read for piped input.
func promptSecret(in *os.File, reader *bufio.Reader, prompt string) (string, error) {
	fmt.Printf("%s: ", prompt)
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", errors.Wrap(err, "Failed to read secret")
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "Failed to read secret")
	}
	return strings.TrimSpace(line), nil
}
