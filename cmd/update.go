package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/command"
	"github.com/objtools/storctl/pkg/shell"
	"github.com/objtools/storctl/pkg/transfer"
	"github.com/objtools/storctl/pkg/uri"
	"github.com/objtools/storctl/pkg/version"
)

var updateCmdConfig struct {
	force bool
}

var updateCmd = &cobra.Command{
	Use:   "update [-f]",
	Short: "Update storctl to the published release",
	Long: `Fetches the published release and replaces the running executable
with it. Experimental; asks for confirmation before touching anything.
With -f the release is installed even when its version matches.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ctl.runUpdate(context.Background(), updateCmdConfig.force)
	},
}

// unsafeUpdateDirs is checked with a lowercased, slash-left-stripped
// comparison, so "/Dev" matches the "dev" entry.
var unsafeUpdateDirs = map[string]bool{
	"applications": true, "auto": true, "bin": true, "boot": true,
	"desktop": true, "dev": true, "documents and settings": true,
	"etc": true, "export": true, "home": true, "kernel": true,
	"lib": true, "lib32": true, "library": true, "lost+found": true,
	"mach_kernel": true, "media": true, "mnt": true, "net": true,
	"null": true, "network": true, "opt": true, "private": true,
	"proc": true, "program files": true, "python": true, "root": true,
	"sbin": true, "scripts": true, "srv": true, "sys": true,
	"system": true, "tmp": true, "users": true, "usr": true,
	"var": true, "volumes": true, "win": true, "win32": true,
	"windows": true, "winnt": true,
}

// ensureDirsSafeForUpdate is a fail-safe so the updater never writes into or
// removes a system directory.
func ensureDirsSafeForUpdate(dirs []string) error {
	for _, d := range dirs {
		name := d
		if name == "" {
			name = "null"
		}
		if unsafeUpdateDirs[strings.ToLower(strings.TrimLeft(name, string(os.PathSeparator)))] {
			return command.Errorf("encountered unsafe directory (%s); aborting update", name)
		}
	}
	return nil
}

func (t *tool) runUpdate(ctx context.Context, force bool) error {
	release, err := uri.Parse(t.mgr.ReleaseBucket())
	if err != nil {
		return err
	}
	client, err := t.clientForScheme(release.Scheme)
	if err != nil {
		return err
	}

	fmt.Fprintln(t.out, "Checking for software update...")
	body, _, err := client.GetObject(ctx, release.Bucket, "VERSION")
	if err != nil {
		return errors.Wrap(err, "Failed to fetch the release version")
	}
	verBytes, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return errors.Wrap(err, "Failed to read the release version")
	}
	latest := strings.TrimSpace(string(verBytes))

	if !force && latest == version.Version {
		return command.Infof("You have the latest version of storctl installed.")
	}

	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "Failed to locate the running executable")
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	exeDir := filepath.Dir(exe)

	fmt.Fprintf(t.out, "This command will update to the %q version of\nstorctl at %s\n", latest, exeDir)

	fmt.Fprint(t.out, "Proceed (Note: experimental command)? [y/N] ")
	answer, err := bufio.NewReader(t.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return errors.Wrap(err, "Failed to read confirmation")
	}
	answer = strings.TrimSpace(answer)
	if answer == "" || (answer[0] != 'y' && answer[0] != 'Y') {
		return command.Infof("Not running update.")
	}

	tmpDir, err := os.MkdirTemp("", "storctl-update-")
	if err != nil {
		return errors.Wrap(err, "Failed to create staging directory")
	}
	defer os.RemoveAll(tmpDir)
	if err := ensureDirsSafeForUpdate([]string{tmpDir, exeDir}); err != nil {
		return err
	}

	archive, _, err := client.GetObject(ctx, release.Bucket, "storctl.tar.gz")
	if err != nil {
		return errors.Wrap(err, "Failed to fetch the release archive")
	}
	defer archive.Close()
	if _, err := transfer.UntarStream(archive, tmpDir); err != nil {
		return command.Errorf("Update failed: %v.", err)
	}
	newBin := filepath.Join(tmpDir, "storctl", "storctl")
	if _, err := os.Stat(newBin); err != nil {
		return command.Errorf("Update failed: %s.", "release archive does not contain storctl/storctl")
	}

	// Ignore interrupts while files move, so ^C cannot leave a half
	// installed binary behind.
	signal.Ignore(os.Interrupt)
	defer signal.Reset(os.Interrupt)

	staged := exe + ".new"
	oldPath := exe + ".old"
	if err := transfer.CopyFile(newBin, staged); err != nil {
		return command.Errorf("Update failed: %v.", err)
	}
	if err := os.Chmod(staged, 0755); err != nil {
		os.Remove(staged)
		return command.Errorf("Update failed: %v.", err)
	}
	if err := os.Rename(exe, oldPath); err != nil {
		os.Remove(staged)
		return command.Errorf("Update failed: %v.", err)
	}
	if err := os.Rename(staged, exe); err != nil {
		os.Rename(oldPath, exe)
		return command.Errorf("Update failed: %v.", err)
	}

	// Keep the old binary around until the new one proves it can run.
	if _, err := shell.Output(exe, "ver"); err != nil {
		os.Remove(exe)
		os.Rename(oldPath, exe)
		return command.Errorf("Update failed: %v.", err)
	}
	os.Remove(oldPath)

	fmt.Fprintln(t.out, "Update complete.")
	return nil
}

func init() {
	addCommand(updateCmd, mustSpec("update"))
	updateCmd.Flags().BoolVarP(&updateCmdConfig.force, "force", "f", false,
		"install the release even when the version already matches")
}
