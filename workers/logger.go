package workers

import "realestate_ai/models"

// LogFunc persists a worker log line to the scrape_logs table.
type LogFunc func(level models.LogLevel, component, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, component, message string) {}
