package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/spf13/cobra"
)

var (
	flagSource string
	flagFormat string
)

var generateCmd = &cobra.Command{
	Use:   "generate LENGTH",
	Short: "Print LENGTH seed bytes from a source",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func init() {
	flags := generateCmd.Flags()
	flags.StringVarP(&flagSource, "source", "s", "", "source name (default source when empty)")
	flags.StringVarP(&flagFormat, "format", "f", "hex", "output format: hex, base64 or raw")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	length, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("parse length: %w", err)
	}

	_, built, err := loadSources()
	if err != nil {
		return err
	}
	name, src, err := pick(built, flagSource)
	if err != nil {
		return err
	}

	out, err := seed.Generate(src, length)
	if err != nil {
		return fmt.Errorf("generate %d bytes from %s: %w", length, name, err)
	}

	w := cmd.OutOrStdout()
	switch flagFormat {
	case "hex":
		_, err = fmt.Fprintln(w, hex.EncodeToString(out))
	case "base64":
		_, err = fmt.Fprintln(w, base64.StdEncoding.EncodeToString(out))
	case "raw":
		_, err = w.Write(out)
	default:
		return fmt.Errorf("unknown format %q", flagFormat)
	}
	return err
}
