package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hmurata/crambooks/internal/config"
	"github.com/hmurata/crambooks/internal/rowstore"
)

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed (books|students) <file.csv>",
	Short: "Load a CSV file into the catalog storage",
	Long: `Load a CSV file into the catalog storage, replacing the target
sheet. The first row must be the header row.

Examples:
  crambooks seed books ./books.csv
  crambooks seed students ./students.csv --sheet 生徒一覧v2`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, file := args[0], args[1]

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		sheet, _ := cmd.Flags().GetString("sheet")
		if sheet == "" {
			switch target {
			case "books":
				sheet = cfg.Sheets.Books
			case "students":
				sheet = cfg.Sheets.Students
			default:
				return fmt.Errorf("unknown seed target %q (want books or students)", target)
			}
		}

		rows, err := readCSV(file)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("%s is empty", file)
		}

		printStep("Seeding sheet %q from %s...", sheet, file)

		store, err := rowstore.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening row store: %w", err)
		}
		defer store.Close()

		if err := store.SeedSheet(sheet, rows); err != nil {
			return fmt.Errorf("seeding sheet: %w", err)
		}

		printSuccess("Loaded %d rows into %q (1 header + %d data)", len(rows), sheet, len(rows)-1)
		return nil
	},
}

// readCSV reads a whole CSV file allowing ragged rows, since book
// chapter rows are shorter than the header.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rows, nil
}

func init() {
	seedCmd.Flags().String("sheet", "", "override the target sheet name")
}

// --- call ---

var callCmd = &cobra.Command{
	Use:   "call <tool> [json-args]",
	Short: "Invoke a catalog tool on the running server",
	Long: `Invoke a catalog tool on the running server over HTTP and print
the response envelope.

Examples:
  crambooks call books_list
  crambooks call books_find '{"query":"青チャート"}'
  crambooks call students_get '{"student_id":"gs001"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tool := args[0]

		toolArgs := map[string]any{}
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
				return fmt.Errorf("invalid JSON arguments: %w", err)
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(context.Background(), "/tools/"+tool, toolArgs)
		if err != nil {
			return err
		}

		var envelope map[string]any
		if err := decodeJSON(resp, &envelope); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(envelope); err != nil {
			return err
		}

		if ok, _ := envelope["ok"].(bool); !ok {
			return fmt.Errorf("%s failed", tool)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}

		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
