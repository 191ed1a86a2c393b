package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/glesvk/program"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <binary>",
	Short: "Decode a saved program binary",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	blob, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	h, exe, backendBlob, err := program.ReadBinary(blob)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "fingerprint %s ", hex.EncodeToString(h.Fingerprint[:]))
	if h.Fingerprint == program.DefaultFingerprint() {
		okColor.Fprintln(out, "(this build)")
	} else {
		failColor.Fprintln(out, "(other build)")
	}
	fmt.Fprintf(out, "client version %d.%d, backend data %d bytes\n", h.Major, h.Minor, len(backendBlob))
	return printExecutable(out, exe)
}
