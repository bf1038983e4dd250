package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jhump/dynproto/desc"
	"github.com/jhump/dynproto/dynamic"
)

// format is a message encoding named on the command line.
type format string

const (
	wireFormat format = "wire"
	textFormat format = "text"
	jsonFormat format = "json"
)

var _ pflag.Value = (*format)(nil)

func (f *format) String() string {
	return string(*f)
}

func (f *format) Set(s string) error {
	switch format(s) {
	case wireFormat, textFormat, jsonFormat:
		*f = format(s)
		return nil
	default:
		return fmt.Errorf("unknown format %q: must be wire, text, or json", s)
	}
}

func (f *format) Type() string {
	return "format"
}

type codecFlags struct {
	text   dynamic.MarshalTextOptions
	textIn dynamic.UnmarshalTextOptions
	json   dynamic.MarshalJSONOptions
	jsonIn dynamic.UnmarshalJSONOptions
}

func (c *codecFlags) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("codec", pflag.ContinueOnError)
	flags.BoolVar(&c.text.Pretty, "text-pretty", false, "write text with one field per line")
	flags.BoolVar(&c.text.ExpandAny, "text-expand-any", true, "write Any messages in expanded form when the type is known")
	flags.BoolVar(&c.text.SkipUnknownFields, "text-skip-unknown", true, "leave unknown fields out of text output")
	flags.BoolVar(&c.textIn.Strict, "text-strict", false, "reject unknown field names when reading text")
	flags.StringVar(&c.json.Indent, "json-indent", "", "indent JSON output with this string")
	flags.BoolVar(&c.json.UseProtoNames, "json-proto-names", false, "use proto field names instead of JSON names")
	flags.BoolVar(&c.json.UseEnumNumbers, "json-enum-numbers", false, "write enum values as numbers")
	flags.BoolVar(&c.json.StringifyInt64s, "json-stringify-int64s", false, "write 64-bit integers as strings")
	flags.BoolVar(&c.json.SkipDefaultFields, "json-skip-defaults", false, "leave unset fields out of JSON output")
	flags.BoolVar(&c.jsonIn.DisallowUnknownFields, "json-disallow-unknown", false, "reject unknown field names when reading JSON")
	return flags
}

type convertCommand struct {
	root          *rootCommand
	typeName      string
	from          format
	to            format
	input         string
	output        string
	checkRequired bool
	codec         codecFlags
}

func getConvertCmd(root *rootCommand) *cobra.Command {
	c := &convertCommand{root: root, from: wireFormat, to: jsonFormat}
	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a message between the wire, text, and JSON formats",
		Example: `
  # Decode a binary message to JSON.
  protodyn convert --schema app.pb --type acme.v1.Order --in order.bin

  # Encode text format from stdin, using .proto sources.
  protodyn convert --proto acme/v1/order.proto -I proto --type acme.v1.Order --from text --to wire`[1:],
		Args: cobra.NoArgs,
		RunE: c.run,
	}

	flags := convertCmd.Flags()
	flags.SortFlags = false
	flags.StringVarP(&c.typeName, "type", "t", "", "fully-qualified name of the message type")
	flags.VarP(&c.from, "from", "f", "input format: wire, text, or json")
	flags.VarP(&c.to, "to", "o", "output format: wire, text, or json")
	flags.StringVar(&c.input, "in", "", "input file (stdin by default)")
	flags.StringVar(&c.output, "out", "", "output file (stdout by default)")
	flags.BoolVar(&c.checkRequired, "check-required", false, "fail if a required field is missing")
	flags.AddFlagSet(c.codec.flagSet())
	must(convertCmd.MarkFlagRequired("type"))
	return convertCmd
}

func (c *convertCommand) run(cmd *cobra.Command, _ []string) error {
	logger := c.root.logger
	pool, err := c.root.schema.load(cmd.Context(), logger)
	if err != nil {
		return err
	}
	md, err := pool.FindMessageByName(c.typeName)
	if err != nil {
		return err
	}

	data, err := c.read()
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"type":  md.FullName(),
		"from":  c.from,
		"bytes": len(data),
	}).Debug("decoding message")
	m, err := c.decode(md, data)
	if err != nil {
		return err
	}
	if c.checkRequired {
		if err := m.Validate(); err != nil {
			return err
		}
	}

	out, err := c.encode(m)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"to":    c.to,
		"bytes": len(out),
	}).Debug("encoded message")
	return c.write(out)
}

func (c *convertCommand) decode(md *desc.MessageDescriptor, data []byte) (*dynamic.Message, error) {
	switch c.from {
	case textFormat:
		return dynamic.UnmarshalTextWithOptions(md, data, c.codec.textIn)
	case jsonFormat:
		return dynamic.UnmarshalJSONWithOptions(md, data, c.codec.jsonIn)
	default:
		return dynamic.Unmarshal(md, data)
	}
}

func (c *convertCommand) encode(m *dynamic.Message) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch c.to {
	case textFormat:
		out, err = m.MarshalTextWithOptions(c.codec.text)
	case jsonFormat:
		out, err = m.MarshalJSONWithOptions(c.codec.json)
	default:
		return m.Marshal()
	}
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func (c *convertCommand) read() ([]byte, error) {
	if c.input == "" || c.input == "-" {
		return io.ReadAll(c.root.stdin)
	}
	return os.ReadFile(c.input)
}

func (c *convertCommand) write(data []byte) error {
	if c.output == "" || c.output == "-" {
		_, err := c.root.stdout.Write(data)
		return err
	}
	return os.WriteFile(c.output, data, 0o644)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
