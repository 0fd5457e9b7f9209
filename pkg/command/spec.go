package command

import "sort"

// Unbounded marks a command with no upper limit on positional arguments.
const Unbounded = -1

// Spec is one dispatch-table row. Flags uses getopt notation: a letter
// followed by a colon takes a value. URIsStartArg is the index of the first
// positional argument that is itself a URI; scheme checks skip everything
// before it.
type Spec struct {
	Name           string
	MinArgs        int
	MaxArgs        int
	Flags          string
	FileURIsOK     bool
	ProviderURIsOK bool
	URIsStartArg   int
	UsesXML        bool
}

var table = []Spec{
	{Name: "cat", MinArgs: 1, MaxArgs: Unbounded, Flags: "h"},
	{Name: "cp", MinArgs: 2, MaxArgs: Unbounded, Flags: "a:rRtz:", FileURIsOK: true},
	{Name: "getacl", MinArgs: 1, MaxArgs: 1, UsesXML: true},
	{Name: "help", MinArgs: 0, MaxArgs: 0},
	{Name: "ls", MinArgs: 0, MaxArgs: Unbounded, Flags: "blL", ProviderURIsOK: true, UsesXML: true},
	{Name: "mb", MinArgs: 1, MaxArgs: Unbounded},
	{Name: "mv", MinArgs: 2, MaxArgs: Unbounded, FileURIsOK: true},
	{Name: "rb", MinArgs: 1, MaxArgs: Unbounded},
	{Name: "rm", MinArgs: 1, MaxArgs: Unbounded, Flags: "f"},
	{Name: "setacl", MinArgs: 2, MaxArgs: Unbounded, URIsStartArg: 1, UsesXML: true},
	{Name: "update", MinArgs: 0, MaxArgs: 0, Flags: "f"},
	{Name: "ver", MinArgs: 0, MaxArgs: 0},
}

var specs = func() map[string]Spec {
	m := make(map[string]Spec, len(table))
	for _, s := range table {
		m[s.Name] = s
	}
	return m
}()

// Lookup resolves a command name against the table. Unknown names are a
// user error carrying the literal name.
func Lookup(name string) (Spec, error) {
	s, ok := specs[name]
	if !ok {
		return Spec{}, Errorf("Invalid command %q.", name)
	}
	return s, nil
}

// Names returns every command name in sorted order, for usage text.
func Names() []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FlagLetters expands the getopt string into letter -> takes-value.
func (s Spec) FlagLetters() map[byte]bool {
	out := make(map[byte]bool)
	for i := 0; i < len(s.Flags); i++ {
		c := s.Flags[i]
		if c == ':' {
			continue
		}
		out[c] = i+1 < len(s.Flags) && s.Flags[i+1] == ':'
	}
	return out
}
