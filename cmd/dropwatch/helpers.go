package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/abelbrown/dropwatch/internal/api"
	"github.com/abelbrown/dropwatch/internal/config"
	"github.com/abelbrown/dropwatch/internal/render"
)

// commonFlags are shared by every subcommand. Empty values leave the
// config untouched.
type commonFlags struct {
	configPath string
	envFile    string
	baseURL    string
	limit      int
	logLevel   string
	author     string
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	f := &commonFlags{}
	fs.StringVar(&f.configPath, "config", config.ConfigPath(), "config file")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file with DROPWATCH_* settings")
	fs.StringVar(&f.baseURL, "base-url", "", "backend base URL")
	fs.IntVar(&f.limit, "limit", 0, "posts per snapshot")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.author, "author", "", "author label on cards")
	return f
}

// resolve loads the config and applies flag overrides.
func (f *commonFlags) resolve() (*config.Config, error) {
	cfg, err := config.LoadFrom(f.configPath, f.envFile)
	if err != nil {
		return nil, err
	}
	if f.baseURL != "" {
		cfg.Backend.BaseURL = f.baseURL
	}
	if f.limit != 0 {
		cfg.Backend.PostLimit = f.limit
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.author != "" {
		cfg.UI.Author = f.author
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newAPIClient(cfg *config.Config) (*api.Client, error) {
	return api.New(cfg.Backend.BaseURL, api.WithLimit(cfg.Backend.PostLimit))
}

func newRenderer(cfg *config.Config) render.Renderer {
	return render.Renderer{ProfileURL: cfg.UI.ProfileURL, HashtagURL: cfg.UI.HashtagURL}
}

// fail prints err to stderr and returns the exit code.
func fail(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, "dropwatch: "+format+"\n", args...)
	return 1
}
