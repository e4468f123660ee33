package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (unreadable or invalid config)
	ExitDataError   = 3 // Data error (unreadable input files, invalid DOI)
	ExitNotFound    = 4 // DOI unknown to every registry
	ExitLookupError = 5 // Registry unavailable or returned garbage
	ExitPartial     = 6 // Some files in a batch failed
)
