package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/jitexpr/internal/compiler"
	"github.com/roach88/jitexpr/internal/session"
)

// MoneyOptions holds flags for the money command.
type MoneyOptions struct {
	*RootOptions
	BackendOptions
	Amount   float64
	Currency string
	Repeat   int
}

// NewMoneyCommand creates the money command.
func NewMoneyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MoneyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "money",
		Short: "Build and call a Money constructor",
		Long: `Define the record Money{amount float64, currency string}, compile a
function that fills one in and returns a pointer to it, then call that
function --repeat times and print each record it returns.

Example:
  jitexpr money
  jitexpr money --amount 12.5 --currency EUR --repeat 1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMoney(cmd, opts)
		},
	}

	opts.BackendOptions.register(cmd)
	cmd.Flags().Float64Var(&opts.Amount, "amount", 20, "amount stored in the record")
	cmd.Flags().StringVar(&opts.Currency, "currency", "USD", "currency stored in the record")
	cmd.Flags().IntVar(&opts.Repeat, "repeat", 3, "number of calls")

	return cmd
}

func runMoney(cmd *cobra.Command, opts *MoneyOptions) error {
	formatter := opts.newFormatter(cmd)
	logger := opts.newLogger(cmd)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Repeat < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--repeat must be at least 1, got %d", opts.Repeat))
	}
	backend, err := opts.backend(logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid backend flags", err)
	}

	values, err := session.EvaluateRecord(ctx, backend, session.RecordRequest{
		Record: compiler.MoneyRecord,
		Inits: []compiler.FieldInit{
			{Field: "amount", Value: opts.Amount},
			{Field: "currency", Value: opts.Currency},
		},
		Calls: opts.Repeat,
	}, session.WithLogger(logger))
	if err != nil {
		return formatter.Fail("money evaluation failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(values)
	}
	for _, v := range values {
		amount, _ := v.Field("amount")
		currency, _ := v.Field("currency")
		fmt.Fprintf(formatter.Writer, "%f %s\n", amount, currency)
	}
	return nil
}
