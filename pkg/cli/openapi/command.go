// Package openapi provides the "openapi" command tree.
package openapi

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/nimburion/movies/pkg/config"
	"github.com/nimburion/movies/pkg/observability/logger"
	serveropenapi "github.com/nimburion/movies/pkg/server/openapi"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ConfigLoader loads the service config using command flags.
type ConfigLoader func(flags *pflag.FlagSet) (*config.Config, logger.Logger, error)

// CommandOptions configures the OpenAPI command tree.
type CommandOptions struct {
	BuildDocument func(cfg *config.Config) (*openapi3.T, error)
	LoadConfig    ConfigLoader
	Stdout        io.Writer
}

// NewCommand creates the "openapi" command and its subcommands. It returns
// nil when no document builder is configured.
func NewCommand(opts CommandOptions) *cobra.Command {
	if opts.BuildDocument == nil || opts.LoadConfig == nil {
		return nil
	}

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "OpenAPI document commands",
	}

	var outputPath string
	var format string
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the OpenAPI document from the registered routes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("format") {
				format = ""
			}
			return runGenerate(cmd, opts, outputPath, format)
		},
	}
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path; stdout when empty")
	generateCmd.Flags().StringVarP(&format, "format", "f", serveropenapi.FormatYAML, "output format: yaml or json")
	cmd.AddCommand(generateCmd)

	return cmd
}

// runGenerate writes the document to outputPath, or to stdout when it is
// empty. An empty format follows the output file extension.
func runGenerate(cmd *cobra.Command, opts CommandOptions, outputPath, format string) error {
	cfg, _, err := opts.LoadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	doc, err := opts.BuildDocument(cfg)
	if err != nil {
		return fmt.Errorf("build openapi document: %w", err)
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = cmd.OutOrStdout()
	}

	if strings.TrimSpace(outputPath) == "" {
		if format == "" {
			format = serveropenapi.FormatYAML
		}
		data, err := serveropenapi.Marshal(doc, format)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}

	if format == "" {
		err = serveropenapi.WriteSpec(outputPath, doc)
	} else {
		err = writeFormatted(outputPath, doc, format)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "OpenAPI document written to %s (%d paths)\n", outputPath, doc.Paths.Len())
	return nil
}

func writeFormatted(path string, doc *openapi3.T, format string) error {
	data, err := serveropenapi.Marshal(doc, format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write openapi document: %w", err)
	}
	return nil
}
