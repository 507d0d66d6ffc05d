package main

import (
	"fmt"
	"os"
	"strings"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	daemonAddr = "http://127.0.0.1:7433"
	pidFile    = "champd.pid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit()
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "doctor":
		err = cmdDoctor()
	case "config":
		err = cmdConfig()
	case "provider":
		err = cmdProvider(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	case "run":
		err = cmdRun(os.Args[2:])
	case "mcp":
		err = cmdMCP()
	case "relay":
		err = cmdRelay()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("champ %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`champ - Learn TypeScript and Python one step at a time

Usage:
  champ <command> [arguments]

Setup Commands:
  init            Initialize champ (first-time setup)
  doctor          Check system requirements
  config          Show current configuration
  provider        Manage LLM providers

Daemon Commands:
  start           Start the champ daemon
  stop            Stop the champ daemon
  status          Show daemon status
  logs            View daemon logs

Learning Commands:
  stats           Show XP, level and streak
  stats practice  Show practice mastery by topic
  stats sprints   Show sprint module progress
  run <file>      Run a file in the sandbox (--tests <file> to check it)

Integration Commands:
  mcp             Start MCP server on stdio
  relay           Drain the RabbitMQ sync queue into Postgres and Redis

Other:
  help            Show this help message
  version         Show version information

Examples:
  champ start                      # Start daemon
  champ provider set-key claude    # Configure Claude API key
  champ run total.ts --tests t.ts  # Check a solution
  champ mcp                        # Start MCP server for your editor`)
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := min(max(int(value*float64(width)), 0), width)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
