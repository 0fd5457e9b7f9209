// Package shell runs external commands and captures their output. The
// updater uses it to smoke-test a freshly installed binary before swapping
// it into place.
package shell

import (
	"bytes"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// Shell and Exec invoke a command line through the system shell.
	Shell = "/bin/sh"
	Exec  = "-c"
)

// Run executes exe with args and returns captured stdout and stderr. A
// non-zero exit reports as an error alongside whatever output was produced.
func Run(exe string, args ...string) ([]byte, []byte, error) {
	log.Debugf("exec %s %v", exe, args)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(exe, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Output is Run for callers that only want stdout. Failures carry the
// command's stderr, which usually names the actual problem.
func Output(exe string, args ...string) (string, error) {
	stdout, stderr, err := Run(exe, args...)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			return "", errors.Wrap(err, "Failed to run "+exe)
		}
		return "", errors.Wrapf(err, "Failed to run %s (%s)", exe, msg)
	}
	return string(stdout), nil
}
