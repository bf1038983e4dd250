package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jhump/dynproto/desc"
)

func getDescribeCmd(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "describe NAME",
		Short: "Describe a message, enum, or service in the schema",
		Long: `Describe prints the fields of a message (number, name, type, and
cardinality), the values of an enum, or the methods of a service.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := root.schema.load(cmd.Context(), root.logger)
			if err != nil {
				return err
			}
			return describe(root.stdout, pool, args[0])
		},
	}
}

func describe(w io.Writer, pool *desc.Pool, name string) error {
	md, err := pool.FindMessageByName(name)
	if err == nil {
		return describeMessage(w, md)
	} else if !errors.Is(err, desc.ErrNotFound) {
		return err
	}
	ed, err := pool.FindEnumByName(name)
	if err == nil {
		return describeEnum(w, ed)
	} else if !errors.Is(err, desc.ErrNotFound) {
		return err
	}
	sd, err := pool.FindServiceByName(name)
	if err == nil {
		return describeService(w, sd)
	} else if !errors.Is(err, desc.ErrNotFound) {
		return err
	}
	return fmt.Errorf("no message, enum, or service named %q: %w", name, desc.ErrNotFound)
}

func describeMessage(w io.Writer, md *desc.MessageDescriptor) error {
	if _, err := fmt.Fprintf(w, "message %s\n", md.FullName()); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, fd := range md.Fields() {
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\n", fd.Number(), fd.Name(), typeName(fd), fd.Cardinality())
	}
	return tw.Flush()
}

func typeName(fd *desc.FieldDescriptor) string {
	switch {
	case fd.IsMap():
		return fmt.Sprintf("map<%s, %s>", typeName(fd.MapKey()), typeName(fd.MapValue()))
	case fd.Message() != nil:
		return fd.Message().FullName()
	case fd.Enum() != nil:
		return fd.Enum().FullName()
	default:
		return fd.Kind().String()
	}
}

func describeEnum(w io.Writer, ed *desc.EnumDescriptor) error {
	if _, err := fmt.Fprintf(w, "enum %s\n", ed.FullName()); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, vd := range ed.Values() {
		fmt.Fprintf(tw, "  %d\t%s\n", vd.Number(), vd.Name())
	}
	return tw.Flush()
}

func describeService(w io.Writer, sd *desc.ServiceDescriptor) error {
	if _, err := fmt.Fprintf(w, "service %s\n", sd.FullName()); err != nil {
		return err
	}
	methods := sd.Unwrap().Methods()
	for i := range methods.Len() {
		mtd := sd.FindMethodByName(string(methods.Get(i).Name()))
		_, err := fmt.Fprintf(w, "  %s(%s%s) returns (%s%s)\n", mtd.Name(),
			streamPrefix(mtd.IsClientStreaming()), mtd.Input().FullName(),
			streamPrefix(mtd.IsServerStreaming()), mtd.Output().FullName())
		if err != nil {
			return err
		}
	}
	return nil
}

func streamPrefix(streaming bool) string {
	if streaming {
		return "stream "
	}
	return ""
}
