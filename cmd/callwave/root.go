package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"callwave/internal/config"
)

// commandContext carries the persistent flag values and lazily resolved
// configuration shared by all subcommands.
type commandContext struct {
	addrFlag   *string
	configFlag *string
	jsonFlag   *bool

	cfg *config.Config
}

func newCommandContext(addrFlag, configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		addrFlag:   addrFlag,
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, _, _, err := config.Load(strings.TrimSpace(*c.configFlag))
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// apiAddr resolves the daemon address: the --addr flag wins, then the
// configured api_bind.
func (c *commandContext) apiAddr() (string, error) {
	if addr := strings.TrimSpace(*c.addrFlag); addr != "" {
		return addr, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return "", fmt.Errorf("no daemon address: set --addr or api_bind in the config")
	}
	return bind, nil
}

func (c *commandContext) client() (*Client, error) {
	addr, err := c.apiAddr()
	if err != nil {
		return nil, err
	}
	return NewClient(addr)
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func newRootCommand() *cobra.Command {
	var addrFlag string
	var configFlag string
	var jsonFlag bool

	ctx := newCommandContext(&addrFlag, &configFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "callwave",
		Short:         "Callwave CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "Daemon API address (host:port)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of tables")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newCallsCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newCompleteCommand(ctx))
	rootCmd.AddCommand(newArchiveCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
