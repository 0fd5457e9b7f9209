package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/acl"
	"github.com/objtools/storctl/pkg/cloud"
	"github.com/objtools/storctl/pkg/command"
	"github.com/objtools/storctl/pkg/provider"
	"github.com/objtools/storctl/pkg/uri"
)

var setaclCmd = &cobra.Command{
	Use:   "setacl acl uri...",
	Short: "Set the ACL on buckets or objects",
	Long: `Applies an ACL to every matched bucket or object. The acl argument
is either the name of a file holding ACL XML or the name of a canned ACL.
All targets must live on one provider; the ACL models differ.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		aclArg := args[0]
		uriArgs := args[1:]

		// First pass: expand everything and refuse multi-provider requests,
		// because there are differences in the ACL models.
		exp := ctl.expander()
		scheme := ""
		var targets []uri.StorageURI
		for _, arg := range uriArgs {
			u, err := uri.Parse(arg)
			if err != nil {
				return err
			}
			matches, err := exp.Expand(ctx, u)
			if err != nil {
				return err
			}
			for _, match := range matches {
				if scheme == "" {
					scheme = match.Scheme
				} else if match.Scheme != scheme {
					return command.Errorf(`"setacl" command spanning providers not allowed.`)
				}
				targets = append(targets, match)
			}
		}

		name, err := provider.ForScheme(scheme)
		if err != nil {
			return err
		}
		p, err := ctl.registry.Resolve(name)
		if err != nil {
			return err
		}

		// The argument names a file holding ACL XML, or failing that the
		// string name of a canned ACL.
		var setting cloud.ACLSetting
		if fi, err := os.Stat(aclArg); err == nil && fi.Mode().IsRegular() {
			text, err := os.ReadFile(aclArg)
			if err != nil {
				return err
			}
			if _, err := acl.Parse(provider.VocabularyFor(name), string(text)); err != nil {
				var invalid *acl.InvalidACLError
				if errors.As(err, &invalid) {
					return command.Errorf("Requested ACL is invalid: %s", invalid.Message)
				}
				return err
			}
			setting.XML = string(text)
		} else {
			if !p.HasCannedACL(aclArg) {
				return command.Errorf("Invalid canned ACL %q.", aclArg)
			}
			setting.Canned = aclArg
		}

		client, err := ctl.clientForScheme(scheme)
		if err != nil {
			return err
		}
		for _, target := range targets {
			fmt.Fprintf(ctl.out, "Setting ACL on %s...\n", target)
			if err := client.SetACL(ctx, target.Bucket, target.Object, setting); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	addCommand(setaclCmd, mustSpec("setacl"))
}
