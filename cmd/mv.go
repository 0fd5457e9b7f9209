package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/command"
	"github.com/objtools/storctl/pkg/uri"
)

var mvCmd = &cobra.Command{
	Use:   "mv src... dst",
	Short: "Move objects",
	Long: `Moves objects by copying and then removing the sources. There is no
atomic rename. Buckets and directories are refused as sources; copy and
remove them as separate operations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		// Refuse bucket and directory sources; removing those must be
		// requested explicitly, as a separate operation after the copy.
		first, err := uri.Parse(args[0])
		if err != nil {
			return err
		}
		if container, _ := copySourceKind(first); container {
			return command.Errorf("Will not remove source buckets or directories. You must separately copy and remove for that purpose.")
		}

		if len(args) > 2 {
			last, err := uri.Parse(args[len(args)-1])
			if err != nil {
				return err
			}
			if err := insistContainer("mv", last); err != nil {
				return err
			}
		}

		// Expand wildcards before copying. Otherwise with a bucket holding
		// only gs://bucket/obj, "mv gs://bucket/* gs://bucket/d.txt" would
		// copy obj to d.txt and then remove the freshly written d.txt.
		exp := ctl.expander()
		expanded := make([]string, 0, len(args))
		for _, arg := range args {
			u, err := uri.Parse(arg)
			if err != nil {
				return err
			}
			if u.ContainsWildcard() {
				matches, err := exp.Expand(ctx, u)
				if err != nil {
					return err
				}
				for _, m := range matches {
					expanded = append(expanded, m.String())
				}
			} else {
				expanded = append(expanded, arg)
			}
		}

		if err := ctl.copyObjects(ctx, expanded, cpFlags{}, "mv"); err != nil {
			return err
		}
		return ctl.removeObjects(ctx, expanded[:len(expanded)-1], false)
	},
}

func init() {
	addCommand(mvCmd, mustSpec("mv"))
}
