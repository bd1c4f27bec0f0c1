package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/protoguard/pkg/validation"
	"github.com/platinummonkey/protoguard/pkg/violation"
)

// documentReport is the outcome of validating one document
type documentReport struct {
	Document   string            `json:"document" yaml:"document"`
	Valid      bool              `json:"valid" yaml:"valid"`
	Violations []violationReport `json:"violations,omitempty" yaml:"violations,omitempty"`
}

type violationReport struct {
	Field   string `json:"field,omitempty" yaml:"field,omitempty"`
	Rule    string `json:"rule,omitempty" yaml:"rule,omitempty"`
	RuleID  string `json:"rule_id" yaml:"rule_id"`
	Message string `json:"message" yaml:"message"`
	ForKey  bool   `json:"for_key,omitempty" yaml:"for_key,omitempty"`
}

func newValidateCommand(a *app) *cobra.Command {
	var (
		typeName string
		format   string
		sources  []string
	)

	cmd := &cobra.Command{
		Use:   "validate --type NAME [documents...]",
		Short: "Validate protojson documents against a message type",
		Long: `Validate protojson documents against a message type. A document named
"-", or no document at all, is read from standard input.`,
		RunE: func(cmd *cobra.Command, docs []string) error {
			return a.runValidate(cmd, typeName, format, sources, docs)
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "Full name of the message type, e.g. acme.v1.User")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, yaml")
	cmd.Flags().StringSliceVar(&sources, "proto", nil, "Proto files to compile (default: all under the first import path)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, typeName, format string, sources, docs []string) error {
	ctx := cmd.Context()

	res, err := a.compile(ctx, sources)
	if err != nil {
		return err
	}
	md, err := res.FindMessage(protoreflect.FullName(typeName))
	if err != nil {
		return err
	}
	opts, err := a.validatorOptions(res.Files)
	if err != nil {
		return err
	}
	v, err := validation.New(md, res.Rules, opts...)
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		docs = []string{"-"}
	}
	msgs := make([]proto.Message, len(docs))
	for i, doc := range docs {
		data, err := readDocument(cmd.InOrStdin(), doc)
		if err != nil {
			return err
		}
		msg := dynamicpb.NewMessage(md)
		if err := protojson.Unmarshal(data, msg); err != nil {
			return fmt.Errorf("failed to parse %s as %s: %w", doc, typeName, err)
		}
		msgs[i] = msg
	}

	results, err := v.ValidateAll(ctx, msgs)
	if err != nil {
		return err
	}

	reports := make([]documentReport, len(docs))
	invalid := 0
	for i, vs := range results {
		reports[i] = report(docs[i], vs)
		if !reports[i].Valid {
			invalid++
		}
	}
	a.logger.WithFields(map[string]interface{}{
		"type":      typeName,
		"documents": len(docs),
		"invalid":   invalid,
	}).Debug("Validated documents")

	if err := writeReports(cmd.OutOrStdout(), format, reports); err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d documents are invalid", invalid, len(docs))
	}
	return nil
}

func report(doc string, vs violation.Violations) documentReport {
	r := documentReport{Document: doc, Valid: vs.Valid()}
	for _, v := range vs {
		r.Violations = append(r.Violations, violationReport{
			Field:   v.Field.String(),
			Rule:    v.Rule.String(),
			RuleID:  v.RuleID,
			Message: v.Message,
			ForKey:  v.ForKey,
		})
	}
	return r
}

func writeReports(w io.Writer, format string, reports []documentReport) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reports)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(reports); err != nil {
			return err
		}
		return encoder.Close()
	case "text":
		for _, r := range reports {
			if r.Valid {
				fmt.Fprintf(w, "%s: valid\n", r.Document)
				continue
			}
			for _, v := range r.Violations {
				field := v.Field
				if field == "" {
					field = "(message)"
				}
				fmt.Fprintf(w, "%s: %s: %s [%s]\n", r.Document, field, v.Message, v.RuleID)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func readDocument(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read standard input: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
