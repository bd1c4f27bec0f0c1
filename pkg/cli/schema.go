package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/protoguard/pkg/schema"
)

func newSchemaCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "schema [files...]",
		Short: "Assemble the schema and print it",
		RunE: func(cmd *cobra.Command, files []string) error {
			s, err := a.assemble(cmd, files)
			if err != nil {
				return err
			}
			return writeSchema(cmd.OutOrStdout(), format, s)
		},
	}
	cmd.Flags().StringVar(&format, "format", "tree", "Output format: tree, descriptors, rules")
	return cmd
}

// assemble compiles files, imports them into a registry and assembles the
// result
func (a *app) assemble(cmd *cobra.Command, files []string) (*schema.Schema, error) {
	ctx := cmd.Context()
	res, err := a.compile(ctx, files)
	if err != nil {
		return nil, err
	}
	r := schema.NewRegistry(schema.WithLogger(a.logger), schema.WithRecorder(a.recorder()))
	if err := schema.ImportFiles(r, res.Files, res.Rules); err != nil {
		return nil, err
	}
	return r.Assemble(ctx)
}

func writeSchema(w io.Writer, format string, s *schema.Schema) error {
	switch format {
	case "tree":
		writeTree(w, s)
		return nil
	case "descriptors":
		set := &descriptorpb.FileDescriptorSet{File: s.FileDescriptorProtos()}
		data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(set)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "rules":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(s.RuleSet()); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeTree(w io.Writer, s *schema.Schema) {
	for _, f := range s.Files {
		fmt.Fprintf(w, "%s (package %s)\n", f.Path, f.Package)
		for _, m := range f.Messages {
			writeMessage(w, m, 1)
		}
		for _, e := range f.Enums {
			writeEnum(w, e, 1)
		}
		for _, svc := range f.Services {
			fmt.Fprintf(w, "  service %s\n", svc.Name)
			for _, m := range svc.Methods {
				fmt.Fprintf(w, "    rpc %s(%s%s) returns (%s%s)\n",
					m.Name, stream(m.ClientStreaming), m.Input, stream(m.ServerStreaming), m.Output)
			}
		}
		for _, ext := range f.Extensions {
			fmt.Fprintf(w, "  extend %s\n", ext.Target)
			for _, field := range ext.Fields {
				writeField(w, field, 2)
			}
		}
	}
}

func writeMessage(w io.Writer, m *schema.Message, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%smessage %s\n", indent, m.Name)
	for _, entry := range m.Entries {
		switch e := entry.(type) {
		case *schema.Field:
			writeField(w, e, depth+1)
		case *schema.Oneof:
			fmt.Fprintf(w, "%s  oneof %s\n", indent, e.Name)
			for _, field := range e.Fields {
				writeField(w, field, depth+2)
			}
		}
	}
	for _, nested := range m.Messages {
		writeMessage(w, nested, depth+1)
	}
	for _, e := range m.Enums {
		writeEnum(w, e, depth+1)
	}
}

func writeField(w io.Writer, f *schema.Field, depth int) {
	var label string
	switch {
	case f.IsMap():
		label = fmt.Sprintf("map<%s, %s>", f.MapKey, typeName(f))
	case f.Repeated:
		label = "repeated " + typeName(f)
	case f.Optional:
		label = "optional " + typeName(f)
	default:
		label = typeName(f)
	}
	fmt.Fprintf(w, "%s%s %s = %d", strings.Repeat("  ", depth), label, f.Name, f.Number)
	if opts := f.Options(); len(opts) > 0 {
		fmt.Fprintf(w, " [%s]", strings.Join(opts, ", "))
	}
	fmt.Fprintln(w)
}

func writeEnum(w io.Writer, e *schema.Enum, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%senum %s\n", indent, e.Name)
	for _, v := range e.Values {
		fmt.Fprintf(w, "%s  %s = %d\n", indent, v.Name, v.Number)
	}
}

func typeName(f *schema.Field) string {
	if f.Kind == protoreflect.MessageKind || f.Kind == protoreflect.EnumKind || f.Kind == protoreflect.GroupKind {
		return f.TypeName
	}
	return f.Kind.String()
}

func stream(streaming bool) string {
	if streaming {
		return "stream "
	}
	return ""
}
