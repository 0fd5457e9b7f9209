package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/uri"
)

var mbCmd = &cobra.Command{
	Use:   "mb uri...",
	Short: "Create buckets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		for _, arg := range args {
			u, err := uri.Parse(arg)
			if err != nil {
				return err
			}
			client, err := ctl.clientForScheme(u.Scheme)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctl.out, "Creating %s...\n", u)
			if err := client.CreateBucket(ctx, u.Bucket); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	addCommand(mbCmd, mustSpec("mb"))
}
