// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/smcstat/pkg/smc"
)

var (
	keysOffset  int
	keysLimit   int
	keysReverse bool

	dumpFormat string
	dumpOutput string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the controller key catalog",
	Long: `List the metadata of every key in the controller catalog by index.

--offset seeks without reading the skipped keys; --reverse walks the catalog
from its end.

Examples:
  smcstat keys --limit 20
  smcstat keys --offset 100 --limit 10
  smcstat keys --reverse --limit 5`,
	RunE: runKeys,
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump every key with its value",
	Long: `Read every key in the controller catalog with its value.

Formats:
  text  one line per key
  json  an array of objects
  cbor  an array of maps (binary, use --output)`,
	RunE: runDump,
}

func init() {
	keysCmd.Flags().IntVar(&keysOffset, "offset", 0, "Number of keys to skip")
	keysCmd.Flags().IntVar(&keysLimit, "limit", 0, "Maximum keys to list (0 = all)")
	keysCmd.Flags().BoolVar(&keysReverse, "reverse", false, "List from the end of the catalog")

	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "text", "Output format (text, json, cbor)")
	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "", "Write to file instead of stdout")

	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(dumpCmd)
}

// window walks it from offset, forward or backward, for at most limit
// elements. limit <= 0 means no limit.
func window[T any](it *smc.Iter[T], offset, limit int, reverse bool, fn func(T, error) error) error {
	first, next := it.Nth, it.Next
	if reverse {
		first, next = it.NthBack, it.NextBack
	}

	v, ok, err := first(offset)
	for n := 0; ok; {
		if err := fn(v, err); err != nil {
			return err
		}
		n++
		if limit > 0 && n >= limit {
			break
		}
		v, ok, err = next()
	}
	return nil
}

func runKeys(cmd *cobra.Command, args []string) error {
	if keysOffset < 0 {
		return fmt.Errorf("--offset must not be negative")
	}

	return withConn(func(conn *smc.Conn) error {
		it, err := conn.Keys()
		if err != nil {
			return err
		}
		total := it.Len()

		listed := 0
		err = window(it, keysOffset, keysLimit, keysReverse, func(info smc.KeyInfo, err error) error {
			if err != nil {
				fmt.Printf("  error: %v\n", err)
				return nil
			}
			fmt.Printf("  %s\n", info)
			listed++
			return nil
		})
		if err != nil {
			return err
		}

		fmt.Printf("\n%d of %d keys\n", listed, total)
		return nil
	})
}

// dumpRecord is one key of a dump in the json and cbor formats
type dumpRecord struct {
	Key        string      `json:"key" cbor:"key"`
	Type       string      `json:"type" cbor:"type"`
	Size       uint32      `json:"size" cbor:"size"`
	Attributes uint8       `json:"attributes" cbor:"attributes"`
	Present    bool        `json:"present" cbor:"present"`
	Value      interface{} `json:"value,omitempty" cbor:"value,omitempty"`
	Raw        []byte      `json:"raw,omitempty" cbor:"raw,omitempty"`
	Error      string      `json:"error,omitempty" cbor:"error,omitempty"`
}

func newDumpRecord(r smc.KeyReading) dumpRecord {
	rec := dumpRecord{
		Key:        r.Info.Key.String(),
		Type:       r.Info.Type.String(),
		Size:       r.Info.Size,
		Attributes: r.Info.Attributes,
		Present:    r.Present,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	if r.Present {
		rec.Value = r.Value.Interface()
		rec.Raw = r.Value.Raw
		if f, ok := rec.Value.(float32); ok && (math.IsNaN(float64(f)) || math.IsInf(float64(f), 0)) {
			rec.Value = nil
		}
	}
	return rec
}

func runDump(cmd *cobra.Command, args []string) error {
	switch dumpFormat {
	case "text", "json", "cbor":
	default:
		return fmt.Errorf("unknown format %q (use text, json or cbor)", dumpFormat)
	}

	var out io.Writer = os.Stdout
	if dumpOutput != "" {
		f, err := os.Create(dumpOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return withConn(func(conn *smc.Conn) error {
		it, err := conn.Data()
		if err != nil {
			return err
		}

		records := make([]dumpRecord, 0, it.Len())
		for r, err := range it.All() {
			if err != nil {
				log.Warn("key unreadable by index", "error", err)
				continue
			}
			if dumpFormat == "text" {
				fmt.Fprintln(out, smc.FormatReading(r))
				continue
			}
			records = append(records, newDumpRecord(r))
		}

		switch dumpFormat {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		case "cbor":
			return cbor.NewEncoder(out).Encode(records)
		}
		return nil
	})
}
