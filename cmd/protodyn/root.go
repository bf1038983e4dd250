package main

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// rootCommand holds the state shared by all subcommands.
type rootCommand struct {
	logger     *logrus.Logger
	cmd        *cobra.Command
	stdin      io.Reader
	stdout     io.Writer
	verbose    bool
	configPath string
	schema     schemaFlags
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *rootCommand {
	c := &rootCommand{
		logger: &logrus.Logger{
			Out:       stderr,
			Formatter: new(logrus.TextFormatter),
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.InfoLevel,
		},
		stdin:  stdin,
		stdout: stdout,
	}
	c.cmd = &cobra.Command{
		Use:               "protodyn",
		Short:             "work with protobuf messages using runtime descriptors",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}
	c.cmd.SetIn(stdin)
	c.cmd.SetOut(stdout)
	c.cmd.SetErr(stderr)
	c.cmd.PersistentFlags().AddFlagSet(c.persistentFlagSet())
	c.cmd.AddCommand(
		getConvertCmd(c),
		getDescribeCmd(c),
	)
	return c
}

func (c *rootCommand) persistentFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVarP(&c.configPath, "config", "c", "", "TOML file with default codec options")
	flags.StringVar(&c.schema.descriptorSet, "schema", "", "serialized FileDescriptorSet to load types from")
	flags.StringSliceVar(&c.schema.protoFiles, "proto", nil, ".proto source files to compile and load types from")
	flags.StringSliceVarP(&c.schema.importPaths, "import-path", "I", nil, "directories in which to search for .proto imports")
	flags.StringVar(&c.schema.reflectAddr, "reflect", "", "address of a gRPC server to download types from with server reflection (plaintext)")
	return flags
}

func (c *rootCommand) persistentPreRunE(cmd *cobra.Command, _ []string) error {
	if c.verbose {
		c.logger.SetLevel(logrus.DebugLevel)
	}
	if c.configPath == "" {
		return nil
	}
	c.logger.WithField("config", c.configPath).Debug("loading config")
	return applyConfig(c.configPath, cmd.Flags())
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := newRootCommand(stdin, stdout, stderr)
	c.cmd.SetArgs(args)
	if err := c.cmd.ExecuteContext(context.Background()); err != nil {
		c.logger.Error(err)
		return 1
	}
	return 0
}
