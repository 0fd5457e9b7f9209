package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/command"
	"github.com/objtools/storctl/pkg/uri"
)

var catCmdConfig struct {
	showHeader bool
}

var catCmd = &cobra.Command{
	Use:   "cat [-h] uri...",
	Short: "Write object contents to stdout",
	Long: `Concatenates the data of the named objects to standard output,
expanding wildcards first. With -h each object is preceded by a
"==> uri <==" banner.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		exp := ctl.expander()

		printedOne := false
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
				if match.Object == "" {
					return command.Errorf(`"cat" command must specify objects.`)
				}
				if catCmdConfig.showHeader {
					if printedOne {
						fmt.Fprintln(ctl.out)
					}
					fmt.Fprintf(ctl.out, "==> %s <==\n", match)
					printedOne = true
				}
				if err := ctl.catObject(ctx, match); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func (t *tool) catObject(ctx context.Context, u uri.StorageURI) error {
	client, err := t.clientForScheme(u.Scheme)
	if err != nil {
		return err
	}
	body, _, err := client.GetObject(ctx, u.Bucket, u.Object)
	if err != nil {
		return err
	}
	defer body.Close()
	if _, err := io.Copy(t.out, body); err != nil {
		return errors.Wrap(err, "Failed to stream "+u.String())
	}
	return nil
}

func init() {
	addCommand(catCmd, mustSpec("cat"))
	catCmd.Flags().BoolVarP(&catCmdConfig.showHeader, "header", "h", false,
		"print a banner naming each object")
}
