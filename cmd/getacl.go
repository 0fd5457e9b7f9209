package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/acl"
	"github.com/objtools/storctl/pkg/command"
	"github.com/objtools/storctl/pkg/provider"
	"github.com/objtools/storctl/pkg/uri"
)

var getaclCmd = &cobra.Command{
	Use:   "getacl uri",
	Short: "Print the ACL of a bucket or object",
	Long: `Prints the ACL of the named bucket or object as indented XML,
suitable for editing and feeding back to setacl.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		u, err := uri.Parse(args[0])
		if err != nil {
			return err
		}
		// Wildcarding is allowed but must resolve to just one object.
		matches, err := ctl.expander().Expand(ctx, u)
		if err != nil {
			return err
		}
		if len(matches) != 1 {
			return command.Errorf(`Wildcards must resolve to exactly one object for "getacl" command.`)
		}
		target := matches[0]
		if target.Bucket == "" {
			return command.Errorf(`"getacl" command must specify a bucket or object.`)
		}

		client, err := ctl.clientForScheme(target.Scheme)
		if err != nil {
			return err
		}
		aclText, err := client.GetACL(ctx, target.Bucket, target.Object)
		if err != nil {
			return err
		}

		// Pretty-print the XML to make it easier to edit by hand.
		name, err := provider.ForScheme(target.Scheme)
		if err != nil {
			return err
		}
		doc, err := acl.Parse(provider.VocabularyFor(name), aclText)
		if err != nil {
			return err
		}
		fmt.Fprint(ctl.out, doc.RenderIndent())
		return nil
	},
}

func init() {
	addCommand(getaclCmd, mustSpec("getacl"))
}
