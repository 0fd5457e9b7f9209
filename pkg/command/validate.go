package command

import (
	"github.com/objtools/storctl/pkg/uri"
)

// Validate applies the table's arity and scheme rules to the positional
// arguments a handler is about to receive. Flags are already stripped by the
// time this runs.
func Validate(s Spec, args []string) error {
	if len(args) < s.MinArgs || (s.MaxArgs != Unbounded && len(args) > s.MaxArgs) {
		return Errorf("Wrong number of arguments for %q command.", s.Name)
	}
	if s.URIsStartArg >= len(args) {
		return nil
	}
	for _, arg := range args[s.URIsStartArg:] {
		u, err := uri.Parse(arg)
		if err != nil {
			return err
		}
		if !s.FileURIsOK && u.IsFileURI() {
			return Errorf("%q command does not support \"file://\" URIs. Did you mean to use a gs:// URI?", s.Name)
		}
		if !s.ProviderURIsOK && u.IsProviderURI() {
			return Errorf("%q command does not support provider-only URIs.", s.Name)
		}
	}
	return nil
}
