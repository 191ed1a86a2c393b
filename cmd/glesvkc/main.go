// Command glesvkc links GLES program descriptions and inspects the
// binaries and SPIR-V modules glesvk produces.
//
// Usage:
//
//	glesvkc [flags] <command> <input>
//
// Examples:
//
//	glesvkc link program.toml              # Link and print the resource tables
//	glesvkc link -o prog.bin program.toml  # Also save the program binary
//	glesvkc inspect prog.bin               # Decode a saved program binary
//	glesvkc dis shader.spv                 # Disassemble a SPIR-V module
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gogpu/glesvk"
	"github.com/gogpu/glesvk/config"
)

var rootCmd = &cobra.Command{
	Use:               "glesvkc",
	Short:             "GLES to Vulkan program linker and inspector",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	configPath string
	verbose    bool
	cacheDir   string
	colorMode  string

	// cfg is the configuration loaded by setup.
	cfg config.Config
)

func init() {
	rootCmd.Version = glesvk.Version
	rootCmd.AddCommand(linkCmd, inspectCmd, disCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (TOML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "program binary cache directory")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "colorize output (auto|on|off)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration, applies the global flags and installs
// the logger.
func setup(cmd *cobra.Command, _ []string) error {
	c := config.Default()
	if configPath != "" {
		var err error
		if c, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if cacheDir != "" {
		c.Cache.Dir = cacheDir
	}
	if verbose {
		c.Log.Level = "debug"
	}
	switch colorMode {
	case "auto":
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("unsupported color mode %q (must be auto, on or off)", colorMode)
	}
	glesvk.SetLogger(c.NewLogger(cmd.ErrOrStderr()))
	cfg = c
	return nil
}
