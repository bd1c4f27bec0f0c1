package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/protoguard/pkg/validation"
)

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [files...]",
		Short: "Check the rules of every message type for consistency",
		RunE:  a.runCheck,
	}
}

func (a *app) runCheck(cmd *cobra.Command, files []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	res, err := a.compile(ctx, files)
	if err != nil {
		return err
	}
	opts, err := a.validatorOptions(res.Files)
	if err != nil {
		return err
	}

	messages := res.MessageTypes()
	failed := 0
	for _, md := range messages {
		_, err := validation.New(md, res.Rules, opts...)
		if err == nil {
			continue
		}
		failed++
		fmt.Fprintf(out, "%s:\n", md.FullName())
		if es, ok := validation.AsConsistencyErrors(err); ok {
			for _, e := range es {
				fmt.Fprintf(out, "  %s\n", e)
			}
			continue
		}
		fmt.Fprintf(out, "  %v\n", err)
	}
	a.reportCacheSize()

	if failed > 0 {
		return fmt.Errorf("%d of %d message types have inconsistent rules", failed, len(messages))
	}
	fmt.Fprintf(out, "%d message types checked, all rules are consistent\n", len(messages))
	return nil
}
