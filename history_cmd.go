package main

import (
	"context"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"handspeak/core"
	"handspeak/history"
)

var historyFormat string

var historyCmd = &cobra.Command{
	Use:   "history [device-id]",
	Short: "Print the stored sentence history of a device",
	Long: `Print the most recent finalized sentences of a device, newest first.

Without a device id the devices that have history are listed.
The history database lives under <data_dir>/history and must not be open
by a running server.

Examples:
  handspeak history
  handspeak history watch-01
  handspeak history watch-01 --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		store, err := history.NewBadgerStore(history.BadgerOptions{Dir: settings.HistoryDir(), Logger: core.NewNopLogger()})
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		return printHistory(cmd.Context(), cmd.OutOrStdout(), store, args, historyFormat)
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyFormat, "format", "o", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(historyCmd)
}

func printHistory(ctx context.Context, w io.Writer, store history.Store, args []string, format string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var v any
	if len(args) == 0 {
		devices, err := store.Devices(ctx)
		if err != nil {
			return err
		}
		v = map[string]any{"devices": devices}
	} else {
		entries, err := store.Load(ctx, args[0])
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []history.Entry{}
		}
		v = map[string]any{"device_id": args[0], "entries": entries}
	}
	return printOutput(w, v, format)
}

func printOutput(w io.Writer, v any, format string) error {
	switch format {
	case "json":
		data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
