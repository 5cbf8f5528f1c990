// Command ddtctl tareas de operación: migraciones y auditoría del ledger de stock.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/ddt-ledger/pkg/config"
	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "ddtctl",
	Short:         "Operación del servicio de documentos de transporte",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadEnv carga configuración y logger para un subcomando.
func loadEnv() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("cargar configuración: %w", err)
	}
	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: "ddtctl",
	})
	return cfg, log, nil
}
