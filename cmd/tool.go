package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/objtools/storctl/pkg/cloud"
	"github.com/objtools/storctl/pkg/command"
	"github.com/objtools/storctl/pkg/config"
	"github.com/objtools/storctl/pkg/provider"
	"github.com/objtools/storctl/pkg/wildcard"
)

// tool carries everything a handler needs for one invocation: the config
// manager, the provider registry, and one storage client per provider,
// constructed on first use. Tests swap newClient and the streams.
type tool struct {
	mgr      *config.Manager
	registry *provider.Registry
	log      *logrus.Logger
	headers  map[string]string
	debug    int

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	clients   map[provider.Name]cloud.StorageClient
	newClient func(p *provider.Profile, logger *logrus.Logger, opts cloud.Options) (cloud.StorageClient, error)
}

func newTool(mgr *config.Manager, debug int, headers map[string]string) *tool {
	return &tool{
		mgr:       mgr,
		registry:  provider.NewRegistry(mgr, mgr.Logger),
		log:       mgr.Logger,
		headers:   headers,
		debug:     debug,
		in:        os.Stdin,
		out:       os.Stdout,
		errOut:    os.Stderr,
		clients:   make(map[provider.Name]cloud.StorageClient),
		newClient: cloud.NewClient,
	}
}

// clientOptions assembles transport options from the config plus the
// per-invocation globals. A tracker directory that cannot be created only
// disables resumable uploads; transfers still run single-shot.
func (t *tool) clientOptions() cloud.Options {
	opts := t.mgr.TransportOptions(t.debug)
	opts.ExtraHeaders = t.headers
	opts.ResumableThreshold = t.mgr.ResumableThreshold()
	trackerDir, err := t.mgr.TrackerDir()
	if err != nil {
		t.log.WithField("module", "cmd").WithError(err).
			Debug("No tracker directory; resumable uploads disabled")
	} else {
		opts.TrackerDir = trackerDir
	}
	return opts
}

func (t *tool) client(name provider.Name) (cloud.StorageClient, error) {
	if c, ok := t.clients[name]; ok {
		return c, nil
	}
	p, err := t.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	c, err := t.newClient(p, t.log, t.clientOptions())
	if err != nil {
		return nil, err
	}
	t.clients[name] = c
	return c, nil
}

func (t *tool) clientForScheme(scheme string) (cloud.StorageClient, error) {
	name, err := provider.ForScheme(scheme)
	if err != nil {
		return nil, err
	}
	return t.client(name)
}

// expander routes wildcard expansion through the cached clients.
func (t *tool) expander() *wildcard.Expander {
	return &wildcard.Expander{
		Clients: func(scheme string) (wildcard.Source, error) {
			return t.clientForScheme(scheme)
		},
	}
}

// parseHeaders turns repeated -h values into a header map. Each value must
// take the form name:value with both halves non-empty; the value keeps
// any further colons.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, pair := range raw {
		name, value, found := strings.Cut(pair, ":")
		if !found || name == "" || value == "" {
			return nil, command.Errorf("Invalid header %q: headers take the form name:value.", pair)
		}
		headers[name] = value
	}
	return headers, nil
}
