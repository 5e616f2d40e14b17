package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose    = "verbose"
	FlagConfig     = "config"
	FlagLogFile    = "log-file"
	FlagStateFile  = "state-file"
	FlagSocketPath = "socket-path"
	FlagSlotFile   = "slot-file"

	// Workflow command flags
	FlagTUI         = "tui"
	FlagHeadless    = "headless"
	FlagFocused     = "focused"
	FlagBackend     = "backend"
	FlagFinger      = "finger"
	FlagMetrics     = "metrics-enabled"
	FlagMetricsAddr = "metrics-addr"

	// Enroll command flags
	FlagPinentry = "use-pinentry"

	// Events command flags
	FlagFollow = "follow"
	FlagCount  = "count"

	// Output format flags
	FlagJSON = "json"
)
