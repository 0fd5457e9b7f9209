package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/command"
	"github.com/objtools/storctl/pkg/uri"
)

var rbCmd = &cobra.Command{
	Use:   "rb uri...",
	Short: "Delete empty buckets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		exp := ctl.expander()
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
				if match.Object != "" {
					return command.Errorf(`"rb" command requires a URI with no object name`)
				}
				client, err := ctl.clientForScheme(match.Scheme)
				if err != nil {
					return err
				}
				fmt.Fprintf(ctl.out, "Removing %s...\n", match)
				if err := client.DeleteBucket(ctx, match.Bucket); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func init() {
	addCommand(rbCmd, mustSpec("rb"))
}
