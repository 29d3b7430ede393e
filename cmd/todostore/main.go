// Command todostore manages a todo list kept in a Bolt file, a Pebble
// directory or memory.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run executes one command line and closes the store it opened, whether
// the command succeeded or not.
func run(args []string, stdout, stderr io.Writer) error {
	opts := &RootOptions{}
	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	if cerr := opts.close(); err == nil {
		err = cerr
	}
	return err
}
