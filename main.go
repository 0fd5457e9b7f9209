package main

import "github.com/objtools/storctl/cmd"

// storctl is a single executable; every operation is a subcommand. The
// subcommand pattern (http://blog.ralch.com/tutorial/golang-subcommands/)
// keeps what could otherwise become a fragmented set of utilities cohesive.
func main() {
	cmd.Execute()
}
