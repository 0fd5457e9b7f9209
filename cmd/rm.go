package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/command"
	"github.com/objtools/storctl/pkg/failure"
	"github.com/objtools/storctl/pkg/uri"
)

var rmCmdConfig struct {
	force bool
}

var rmCmd = &cobra.Command{
	Use:   "rm [-f] uri...",
	Short: "Delete objects",
	Long: `Deletes the named objects, expanding wildcards first. Buckets are
refused; empty them with rm and then delete them with rb. With -f a failed
deletion is reported but does not stop the remaining ones.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ctl.removeObjects(context.Background(), args, rmCmdConfig.force)
	},
}

// removeObjects deletes every object the arguments expand to. mv reuses it
// for the source cleanup pass, which is why local files are handled even
// though the rm command itself never accepts them.
func (t *tool) removeObjects(ctx context.Context, args []string, force bool) error {
	exp := t.expander()
	for _, arg := range args {
		u, err := uri.Parse(arg)
		if err != nil {
			return err
		}
		matches, err := exp.Expand(ctx, u)
		if err != nil {
			return err
		}
		for _, match := range matches {
			container := match.NamesContainer()
			if match.IsFileURI() {
				fi, err := os.Stat(match.Path())
				container = err == nil && fi.IsDir()
			}
			if container {
				trimmed := strings.TrimRight(arg, "/\\")
				return command.Errorf("\"rm\" command will not remove buckets. To delete this/these bucket(s) do:\n\tstorctl rm %s/*\n\tstorctl rb %s",
					trimmed, trimmed)
			}

			fmt.Fprintf(t.out, "Removing %s...\n", match)
			err := t.deleteURI(ctx, match)
			if err == nil {
				continue
			}
			if !force {
				return err
			}
			if msg, _ := failure.Classify(err, t.debug); msg != "" {
				fmt.Fprintln(t.errOut, msg)
			}
		}
	}
	return nil
}

func (t *tool) deleteURI(ctx context.Context, u uri.StorageURI) error {
	if u.IsFileURI() {
		return os.Remove(u.Path())
	}
	client, err := t.clientForScheme(u.Scheme)
	if err != nil {
		return err
	}
	return client.DeleteObject(ctx, u.Bucket, u.Object)
}

func init() {
	addCommand(rmCmd, mustSpec("rm"))
	rmCmd.Flags().BoolVarP(&rmCmdConfig.force, "force", "f", false,
		"continue deleting after individual failures")
}
