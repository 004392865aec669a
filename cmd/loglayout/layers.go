package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/pkg/layerspec"
	"github.com/qmjianda/loglayout-sub001/internal/preset"
)

// layerFlags selects the layers a command starts with: a stored preset
// followed by any --layer definitions.
type layerFlags struct {
	preset string
	specs  []string
}

func (f *layerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.preset, "preset", "p", "", "Start from a saved preset")
	cmd.Flags().StringArrayVarP(&f.specs, "layer", "l", nil, `Layer definition, e.g. 'level:ERROR,WARN' or 'filter:"timeout" | highlight:retry color:#f97316' (repeatable)`)
}

func (f *layerFlags) empty() bool {
	return f.preset == "" && len(f.specs) == 0
}

// build resolves the flags into a layer list.
func (f *layerFlags) build(a *app) ([]*layer.Layer, error) {
	var list []*layer.Layer
	if f.preset != "" {
		store, err := a.openPresets()
		if err != nil {
			return nil, err
		}
		defer store.Close()
		p, err := store.Get(f.preset)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", f.preset, err)
		}
		list = append(list, p.Layers...)
	}
	specLayers, err := parseSpecs(f.specs)
	if err != nil {
		return nil, err
	}
	return append(list, specLayers...), nil
}

func parseSpecs(specs []string) ([]*layer.Layer, error) {
	var list []*layer.Layer
	for _, text := range specs {
		parsed, err := layerspec.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("--layer %q: %w", text, err)
		}
		for _, s := range parsed {
			list = append(list, s.Layer(""))
		}
	}
	return list, nil
}

// presetSummary is a one-line description used by list output.
func presetSummary(p preset.Preset) string {
	parts := make([]string, len(p.Layers))
	for i, l := range p.Layers {
		parts[i] = layerspec.Format(l)
	}
	return strings.Join(parts, " | ")
}
