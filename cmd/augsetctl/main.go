// cmd/augsetctl/main.go
//
// augsetctl - interactive shell over an in-process augmented set.
//
// Usage:
//
//	augsetctl [domain-size]
//
// domain-size fixes the key range [0, domain-size); it defaults to 100000.
// Use .help for available commands.
package main

import (
	"fmt"
	"os"
	"strconv"

	"augset/pkg/augset"
	"augset/pkg/cli"
)

func main() {
	domainSize := 100_000
	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid domain size %q: %v\n", os.Args[1], err)
			os.Exit(1)
		}
		if n <= 0 {
			fmt.Fprintf(os.Stderr, "domain size must be positive, got %d\n", n)
			os.Exit(1)
		}
		domainSize = n
	}

	set := augset.New[string](augset.Config{L: 0, R: domainSize})

	repl := cli.NewREPL(set, os.Stdin, os.Stdout, os.Stderr)
	repl.Run()
}
