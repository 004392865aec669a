package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/qmjianda/loglayout-sub001/internal/engine"
	"github.com/qmjianda/loglayout-sub001/internal/pkg/layerspec"
	"github.com/qmjianda/loglayout-sub001/internal/source"
	"github.com/qmjianda/loglayout-sub001/internal/tui"
)

type runFlags struct {
	layers      layerFlags
	search      string
	regex       bool
	print       int
	summaryPath string
	timeout     time.Duration
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Apply layers to a file headlessly and print per-layer stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if f.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, f.timeout)
				defer cancel()
			}
			return runHeadless(ctx, a, args[0], f, cmd.OutOrStdout())
		},
	}
	f.layers.register(cmd)
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "Global search query")
	cmd.Flags().BoolVar(&f.regex, "regex", false, "Treat --search as a regular expression")
	cmd.Flags().IntVarP(&f.print, "print", "n", 0, "Print the first N output lines")
	cmd.Flags().StringVar(&f.summaryPath, "summary", "", "Write the session summary as JSON to this path")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Abort if loading and processing take longer")
	return cmd
}

func runHeadless(ctx context.Context, a *app, path string, f runFlags, out io.Writer) error {
	list, err := f.layers.build(a)
	if err != nil {
		return err
	}

	sess := engine.NewSession("", filepath.Base(path), a.cfg.EngineOptions(nil, a.log))
	defer sess.Close()
	sess.ImportLayers(list)
	if f.search != "" {
		sess.SetGlobalQuery(f.search, engine.SearchOptions{Regex: f.regex})
	}

	loader := source.NewLoader(a.cfg.Source.BatchLines, a.log)
	stats, err := loader.LoadFile(ctx, path, sess)
	if err != nil {
		return err
	}
	if err := sess.Wait(ctx); err != nil {
		return err
	}

	for _, l := range sess.Window(0, f.print) {
		fmt.Fprintf(out, "%d\t%s\n", l.Index+1, l.Text())
	}
	if f.print > 0 {
		fmt.Fprintln(out)
	}

	if err := renderStats(out, sess); err != nil {
		return err
	}
	sum := sess.Summary()
	fmt.Fprintf(out, "%d of %d lines (%s, %s compression, loaded in %s, pipeline %.1fms)\n",
		sum.OutputLines, sum.SourceLines, formatBytes(stats.Bytes), stats.Compression,
		stats.Duration.Round(time.Millisecond), sum.LastRunMillis)
	if res := sess.Result(); res != nil && f.search != "" {
		fmt.Fprintf(out, "search %q: %d hits\n", f.search, len(res.SearchHits))
	}

	if f.summaryPath != "" {
		if err := engine.SaveSummary(f.summaryPath, sum); err != nil {
			return fmt.Errorf("save summary: %w", err)
		}
	}
	return nil
}

func renderStats(out io.Writer, sess *engine.Session) error {
	res := sess.Result()
	if res == nil {
		return nil
	}
	entries := sess.Flatten()
	if len(entries) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Layer", "Type", "On", "Lines", "Distribution", "Note")
	for _, e := range entries {
		l := e.Layer
		on := "yes"
		if !e.Effective {
			on = "no"
		}
		name := l.Name
		if name == "" {
			name = layerspec.Format(l)
		}
		row := []string{strings.Repeat("  ", e.Depth) + name, string(l.Type), on, "", "", res.Diagnostics[l.ID]}
		if st, ok := res.Stats[l.ID]; ok && !l.IsFolder() {
			row[3] = strconv.Itoa(st.Count)
			row[4] = tui.HeatBar(st.Distribution, 20)
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
