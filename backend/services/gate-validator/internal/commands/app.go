package commands

import "github.com/urfave/cli/v3"

// App is the root command. Gate devices run it without network access.
func App() *cli.Command {
	return &cli.Command{
		Name:  "gate-validator",
		Usage: "Offline checks for ticket verification attestations",
		Commands: []*cli.Command{
			ValidateCommand(),
			KeygenCommand(),
		},
	}
}
