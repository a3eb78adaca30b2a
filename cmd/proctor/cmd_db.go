package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"proctor/internal/config"
	"proctor/internal/fixture"
	"proctor/internal/models"
)

var dbSpecPath string

func newDBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the isolated evaluation database",
	}

	cmd.PersistentFlags().StringVar(&dbSpecPath, "spec", "", "Run-spec YAML file with store settings")

	cmd.AddCommand(newDBSetupCommand())
	cmd.AddCommand(newDBResetCommand())
	cmd.AddCommand(newDBDropCommand())
	cmd.AddCommand(newDBCustomerCommand())
	cmd.AddCommand(newDBCheckReturnCommand())
	return cmd
}

func dbConfig() (*config.RunConfig, error) {
	if dbSpecPath == "" {
		return config.NewRunConfig(), nil
	}
	spec, err := config.LoadRunSpec(dbSpecPath)
	if err != nil {
		return nil, err
	}
	opts, err := spec.Options()
	if err != nil {
		return nil, err
	}
	return config.NewRunConfig(opts...), nil
}

func newDBSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the evaluation database, its schema, and load the baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := dbConfig()
			if err != nil {
				return err
			}

			if err := fixture.CreateStore(ctx, cfg.Store()); err != nil {
				return err
			}

			store, err := fixture.Connect(ctx, cfg.Store())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.CreateSchema(ctx); err != nil {
				return err
			}
			if err := store.LoadBaseline(cfg.BaselinePath()); err != nil {
				return err
			}
			if err := store.ResetToBaseline(ctx); err != nil {
				return err
			}

			count, err := store.CountRecords(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Evaluation database ready: %d records loaded\n", count)
			return nil
		},
	}
}

func newDBResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the evaluation database to the baseline dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := dbConfig()
			if err != nil {
				return err
			}

			store, err := fixture.Connect(ctx, cfg.Store())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.LoadBaseline(cfg.BaselinePath()); err != nil {
				return err
			}
			if err := store.ResetToBaseline(ctx); err != nil {
				return err
			}
			fmt.Printf("Reset to baseline: %d records\n", store.BaselineCount())
			return nil
		},
	}
}

func newDBDropCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop the evaluation database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := dbConfig()
			if err != nil {
				return err
			}
			if !force {
				return fmt.Errorf("refusing to drop %s without --force", cfg.Store().WithDefaults().Database)
			}
			return fixture.DropStore(cmd.Context(), cfg.Store())
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm the drop")
	return cmd
}

// newDBCustomerCommand summarizes one customer's orders, which is the view
// task authors capture ground truth from.
func newDBCustomerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "customer <customer_id>",
		Short: "Summarize a customer's orders and returns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := dbConfig()
			if err != nil {
				return err
			}

			store, err := fixture.Connect(ctx, cfg.Store())
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := store.GetCustomerSummary(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Customer %s: %d orders\n", summary.CustomerID, summary.TotalOrders)
			for status, n := range summary.OrderStatuses {
				fmt.Printf("  order status %-12s %d\n", status, n)
			}
			for status, n := range summary.ReturnStatuses {
				fmt.Printf("  return status %-11s %d\n", status, n)
			}
			for _, o := range summary.Products {
				fmt.Printf("  #%d  %-28s %s\n", o.OrderID, o.ProductName, o.OrderStatus)
			}
			return nil
		},
	}
}

func newDBCheckReturnCommand() *cobra.Command {
	var (
		customerID string
		orderID    int64
		expected   string
	)

	cmd := &cobra.Command{
		Use:   "check-return",
		Short: "Check an order's return status against an expected value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := dbConfig()
			if err != nil {
				return err
			}

			store, err := fixture.Connect(ctx, cfg.Store())
			if err != nil {
				return err
			}
			defer store.Close()

			check, err := store.VerifyReturnStatus(ctx, models.OrderKey{CustomerID: customerID, OrderID: orderID}, expected)
			if err != nil {
				return err
			}
			if check.Error != "" {
				return fmt.Errorf("%s", check.Error)
			}
			if !check.Passed {
				return fmt.Errorf("return status is %q, expected %q", check.Actual, check.Expected)
			}
			fmt.Printf("Return status matches: %q\n", check.Actual)
			return nil
		},
	}

	cmd.Flags().StringVar(&customerID, "customer", "", "Customer ID")
	cmd.Flags().Int64Var(&orderID, "order", 0, "Order ID")
	cmd.Flags().StringVar(&expected, "expected", "", "Expected return status")
	_ = cmd.MarkFlagRequired("customer") //nolint:errcheck
	_ = cmd.MarkFlagRequired("order")    //nolint:errcheck
	_ = cmd.MarkFlagRequired("expected") //nolint:errcheck
	return cmd
}
