package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danmuck/colonyctl/internal/config"
	"github.com/danmuck/colonyctl/internal/minigame"
)

func loadMinigames(cfg appConfig) (*minigame.Registry, error) {
	if cfg.Catalogue == "" {
		return minigame.Builtin(), nil
	}
	cat, err := config.LoadCatalogue(cfg.Catalogue)
	if err != nil {
		return nil, err
	}
	return cat.Registry()
}

func newMinigamesCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "minigames",
		Short: "List known minigames with their resolved difficulty settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			reg, err := loadMinigames(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, info := range reg.Variants() {
				fmt.Fprintf(out, "%d %s\n", info.ID, info.Name)
				for _, d := range info.Difficulties {
					res, err := reg.Resolve(uint32(info.ID), d.ID)
					if err != nil {
						fmt.Fprintf(out, "  %d %s: %v\n", d.ID, d.Name, err)
						continue
					}
					fmt.Fprintf(out, "  %d %s: %+v\n", d.ID, d.Name, res.Settings)
				}
			}
			return nil
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	var (
		kind   string
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a config template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := output
			if target == "" {
				switch kind {
				case "catalogue":
					target = "catalogue.toml"
				default:
					target = "colonyctl.toml"
				}
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config template to %s\n", kind, target)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "runtime", "config kind: runtime|catalogue")
	cmd.Flags().StringVar(&output, "output", "", "output path for the template")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
