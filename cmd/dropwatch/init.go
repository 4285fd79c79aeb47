package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/abelbrown/dropwatch/internal/config"
)

func runInit() int {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	common := registerCommon(fs)
	force := fs.Bool("force", false, "overwrite an existing config file")
	fs.Parse(os.Args[1:])

	cfg, err := common.resolve()
	if err != nil {
		return fail("%v", err)
	}
	if err := writeConfig(cfg, common.configPath, *force, os.Stdout); err != nil {
		return fail("%v", err)
	}
	return 0
}

// writeConfig saves cfg to path. An existing file is kept unless force.
func writeConfig(cfg *config.Config, path string, force bool, w io.Writer) error {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: %w", err)
		}
	}
	if err := cfg.SaveTo(path); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s\n", path)
	return nil
}
