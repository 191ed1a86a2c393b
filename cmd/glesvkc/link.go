package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/glesvk"
	"github.com/gogpu/glesvk/backend"
	"github.com/gogpu/glesvk/program"
)

var linkOutput string

var linkCmd = &cobra.Command{
	Use:   "link <program.toml>",
	Short: "Link a program description and print its resources",
	Args:  cobra.ExactArgs(1),
	RunE:  runLink,
}

func init() {
	linkCmd.Flags().StringVarP(&linkOutput, "output", "o", "", "write the program binary to `file`")
}

func runLink(cmd *cobra.Command, args []string) error {
	desc, err := loadProgram(args[0])
	if err != nil {
		return err
	}
	p, err := glesvk.NewProgramFromConfig(backend.Null{}, &cfg, program.WithWebGL(desc.WebGL))
	if err != nil {
		return err
	}
	defer p.Release()
	if err := desc.apply(p); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	err = p.Link(ctx)
	if err == nil {
		err = p.ResolveLink(ctx)
	}
	if err != nil {
		failColor.Fprintf(cmd.ErrOrStderr(), "link failed: %s\n", args[0])
		if log := p.InfoLog(); log != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), strings.TrimRight(log, "\n"))
		}
		return err
	}

	okColor.Fprintf(out, "linked %s\n", args[0])
	if err := printExecutable(out, p.Executable()); err != nil {
		return err
	}

	if linkOutput == "" {
		return nil
	}
	blob, err := p.SaveBinary()
	if err != nil {
		return err
	}
	if err := os.WriteFile(linkOutput, blob, 0o644); err != nil { //nolint:gosec // binaries are not secret
		return err
	}
	dimColor.Fprintf(out, "\nwrote %d bytes to %s\n", len(blob), linkOutput)
	return nil
}
