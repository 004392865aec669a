package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/qmjianda/loglayout-sub001/internal/preset"
)

func newPresetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage saved layer presets",
	}
	cmd.AddCommand(
		newPresetListCmd(a),
		newPresetShowCmd(a),
		newPresetSaveCmd(a),
		newPresetDeleteCmd(a),
		newPresetExportCmd(a),
		newPresetImportCmd(a),
	)
	return cmd
}

// withPresets opens the configured store for the duration of fn.
func withPresets(a *app, fn func(preset.Store) error) error {
	store, err := a.openPresets()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newPresetListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPresets(a, func(store preset.Store) error {
				infos, err := store.List()
				if err != nil {
					return err
				}
				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.Header("Name", "Layers", "Saved", "Definition")
				for _, info := range infos {
					p, err := store.Get(info.Name)
					if err != nil {
						return err
					}
					row := []string{info.Name, strconv.Itoa(info.Layers), info.SavedAt.Local().Format(time.DateTime), presetSummary(p)}
					if err := table.Append(row); err != nil {
						return err
					}
				}
				return table.Render()
			})
		},
	}
}

func newPresetShowCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a preset as JSON, YAML or TOML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := preset.ParseFormat(format)
			if err != nil {
				return err
			}
			return withPresets(a, func(store preset.Store) error {
				p, err := store.Get(args[0])
				if err != nil {
					return err
				}
				data, err := preset.Encode(p, f)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "yaml", "Output format: json, yaml or toml")
	return cmd
}

func newPresetSaveCmd(a *app) *cobra.Command {
	var specs []string
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save layer definitions as a preset",
		Example: `  loglayout preset save errors -l 'level:ERROR,WARN'
  loglayout preset save timeouts -l 'filter:timeout | highlight:"retry" color:#f97316'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := parseSpecs(specs)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return fmt.Errorf("at least one --layer is required")
			}
			return withPresets(a, func(store preset.Store) error {
				p := preset.New(args[0], list)
				if err := store.Save(p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved preset %q (%d layers)\n", p.Name, len(p.Layers))
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&specs, "layer", "l", nil, "Layer definition (repeatable)")
	return cmd
}

func newPresetDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPresets(a, func(store preset.Store) error {
				return store.Delete(args[0])
			})
		},
	}
}

func newPresetExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <name> <file>",
		Short: "Write a preset to a .json, .yaml or .toml file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := preset.FormatFromPath(args[1])
			if err != nil {
				return err
			}
			return withPresets(a, func(store preset.Store) error {
				p, err := store.Get(args[0])
				if err != nil {
					return err
				}
				data, err := preset.Encode(p, f)
				if err != nil {
					return err
				}
				return os.WriteFile(args[1], data, 0o644)
			})
		},
	}
}

func newPresetImportCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a preset from a .json, .yaml or .toml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := preset.FormatFromPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			p, err := preset.Decode(data, f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if name != "" {
				p.Name = name
			}
			if p.Name == "" {
				base := filepath.Base(args[0])
				p.Name = strings.TrimSuffix(base, filepath.Ext(base))
			}
			return withPresets(a, func(store preset.Store) error {
				if err := store.Save(p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported preset %q (%d layers)\n", p.Name, len(p.Layers))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Store under this name instead of the one in the file")
	return cmd
}
