package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iisharvard/a2b-sub002/internal/diff"
)

// diffCmd compares two JSON collections of records offline.
func diffCmd() *cobra.Command {
	var idKey string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "diff <before.json> <after.json>",
		Short: "Compare two JSON arrays of records",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := readRecords(args[0])
			if err != nil {
				return err
			}
			after, err := readRecords(args[1])
			if err != nil {
				return err
			}

			d := diff.Collections(before, after, idKey)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Diff %s → %s:\n", args[0], args[1])
			fmt.Fprintln(cmd.OutOrStdout(), diff.Format(d))
			return nil
		},
	}
	cmd.Flags().StringVar(&idKey, "id-key", "id", "field that identifies a record")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the diff as JSON")
	return cmd
}

func readRecords(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}
