package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rasterstats/pkg/config"
	"rasterstats/pkg/enhancement"
)

var configCommand = &cobra.Command{
	Use:   "config",
	Short: "manage the configuration file",
}

var configInitCommand = &cobra.Command{
	Use:   "init",
	Short: "write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists", configPath)
		}
		if err := config.CreateDefaultConfigFile(configPath); err != nil {
			return err
		}
		fmt.Printf("Default configuration written to %s\n", configPath)
		return nil
	},
}

var configShowCommand = &cobra.Command{
	Use:   "show",
	Short: "print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(a.cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		fmt.Printf("# enhancement methods: %v\n", methodNames(a.registry))
		return nil
	},
}

func methodNames(r *enhancement.Registry) []string {
	var out []string
	for _, m := range r.Methods() {
		out = append(out, string(m))
	}
	return out
}

func init() {
	configCommand.AddCommand(configInitCommand, configShowCommand)
}
