// Command dropwatch is a terminal client for the airdrop post feed.
//
// Usage:
//
//	dropwatch [flags]          Live feed (TUI)
//	dropwatch dump [flags]     Load once and print the feed as text or HTML
//	dropwatch init [flags]     Write the resolved config to the config file
package main

import (
	"fmt"
	"os"
)

const usage = `dropwatch - live airdrop post feed

Usage:
  dropwatch [flags]          Live feed in the terminal
  dropwatch dump [flags]     Load once and print the feed (text or html)
  dropwatch init [flags]     Write the current settings to the config file

Config:
  ~/.dropwatch/config.json, then ./.env, then the environment, then flags.

Environment:
  DROPWATCH_BASE_URL       Backend base URL (default http://localhost:5000)
  DROPWATCH_POST_LIMIT     Posts per snapshot (default 50)
  DROPWATCH_LOG_LEVEL      debug, info, warn, error (default info)
  DROPWATCH_METRICS_ADDR   Serve Prometheus metrics on this address
  DROPWATCH_AUTHOR         Author label on cards (default @binance)

Run 'dropwatch -h', 'dropwatch dump -h' or 'dropwatch init -h' for flags.
`

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "dump":
			os.Args = os.Args[1:]
			os.Exit(runDump())
		case "init":
			os.Args = os.Args[1:]
			os.Exit(runInit())
		case "help", "--help":
			fmt.Print(usage)
			return
		}
	}
	os.Exit(runLive())
}
