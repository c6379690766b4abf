// Command movies serves the movie catalogue REST API and runs its queue
// ingestion worker.
package main

import (
	"github.com/nimburion/movies/pkg/cli"
	"github.com/spf13/cobra"
)

const (
	serviceName = "movies"
	envPrefix   = "MOVIES"
)

func main() {
	cli.Execute(newRootCommand())
}

func newRootCommand() *cobra.Command {
	return cli.NewServiceCommand(cli.ServiceCommandOptions{
		Name:              serviceName,
		Description:       "Movie catalogue REST API",
		EnvPrefix:         envPrefix,
		RunServer:         runServer,
		CheckDependencies: checkReady,
		BuildDocument:     buildDocument,
		Commands: func(load cli.ConfigLoader) []*cobra.Command {
			return []*cobra.Command{newIngestCommand(load)}
		},
	})
}
