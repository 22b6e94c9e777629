package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	dir "github.com/Strob0t/TaskForge/internal/domain/directory"
	"github.com/Strob0t/TaskForge/internal/port/directory"
)

func newDirectoryCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Manage tenants, cost centers, task types and employees",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import reference data from a YAML file",
		Long: `Import reads a YAML document with the keys tenants, cost_centers,
task_types and employees and writes every record, replacing existing ones.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := readSeed(args[0])
			if err != nil {
				return err
			}
			b, err := cc.openBackend(cmd.Context(), false)
			if err != nil {
				return err
			}
			if err := directory.Import(cmd.Context(), b.registrar, seed); err != nil {
				return fmt.Errorf("import: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d tenants, %d cost centers, %d task types, %d employees\n",
				len(seed.Tenants), len(seed.CostCenters), len(seed.TaskTypes), len(seed.Employees))
			return nil
		},
	})

	return cmd
}

func readSeed(path string) (dir.Seed, error) {
	var seed dir.Seed
	data, err := os.ReadFile(path) //nolint:gosec // path is an operator-supplied CLI argument
	if err != nil {
		return seed, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return seed, fmt.Errorf("parse %s: %w", path, err)
	}
	return seed, nil
}
