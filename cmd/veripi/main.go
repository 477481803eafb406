// Command veripi is a symbolic protocol analyzer in the ProVerif
// tradition: it parses a process-calculus model, resolves and compiles
// it to Horn rules, and searches for an attacker derivation of a
// secrecy query.
package main

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/cli"
)

func main() {
	log := hclog.New(&hclog.LoggerOptions{
		Name:  "veripi",
		Level: hclog.LevelFromString(os.Getenv("VERIPI_LOG")),
	})
	if log.GetLevel() == hclog.NoLevel {
		log = hclog.New(&hclog.LoggerOptions{Name: "veripi", Level: hclog.Warn})
	}

	c := cli.NewCLI("veripi", version)
	c.Args = os.Args[1:]
	c.Commands = map[string]cli.CommandFactory{
		"check": func() (cli.Command, error) {
			return &CheckCommand{Log: log}, nil
		},
	}

	exitCode, err := c.Run()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	os.Exit(exitCode)
}

const version = "0.1.0"
