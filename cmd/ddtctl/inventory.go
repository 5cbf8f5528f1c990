package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/ddt-ledger/internal/application/inventory"
	domaininv "github.com/jhoicas/ddt-ledger/internal/domain/inventory"
	"github.com/jhoicas/ddt-ledger/internal/infrastructure/postgres"
)

var failOnDrift bool

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Auditoría del stock materializado contra el libro de movimientos",
}

var inventoryVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compara quantity_available con la suma de movimientos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInventory(cmd.Context(), func(ctx context.Context, svc *inventory.Service) error {
			drifts, err := svc.Verify(ctx)
			if err != nil {
				return err
			}
			printDrifts(cmd, drifts)
			if failOnDrift && len(drifts) > 0 {
				return fmt.Errorf("%d filas con diferencias", len(drifts))
			}
			return nil
		})
	},
}

var inventoryRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Reescribe quantity_available a partir del libro de movimientos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInventory(cmd.Context(), func(ctx context.Context, svc *inventory.Service) error {
			drifts, err := svc.Rebuild(ctx)
			if err != nil {
				return err
			}
			printDrifts(cmd, drifts)
			fmt.Fprintf(cmd.OutOrStdout(), "%d filas corregidas\n", len(drifts))
			return nil
		})
	},
}

func withInventory(ctx context.Context, fn func(ctx context.Context, svc *inventory.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, err := loadEnv()
	if err != nil {
		return err
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := inventory.NewService(
		postgres.NewTxRunner(pool, cfg.DB.LockTimeout),
		log.Component("inventory"),
		inventory.WithRetryPolicy(inventory.RetryPolicy{
			MaxAttempts: cfg.Ledger.RetryMaxAttempts,
			BaseDelay:   cfg.Ledger.RetryBaseDelay,
		}),
	)
	return fn(ctx, svc)
}

func printDrifts(cmd *cobra.Command, drifts []domaininv.Drift) {
	if len(drifts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "sin diferencias")
		return
	}
	for _, d := range drifts {
		fmt.Fprintf(cmd.OutOrStdout(), "producto=%d bodega=%d almacenado=%s libro=%s diferencia=%s\n",
			d.Key.ProductID, d.Key.WarehouseID, d.Stored, d.Replayed, d.Difference())
	}
}

func init() {
	inventoryVerifyCmd.Flags().BoolVar(&failOnDrift, "fail", false, "termina con error si hay diferencias")
	inventoryCmd.AddCommand(inventoryVerifyCmd, inventoryRebuildCmd)
	rootCmd.AddCommand(inventoryCmd)
}
