package types

import (
	"time"
)

// Config holds one export run's configuration
type Config struct {
	SiteURL     string
	CookieFile  string
	OutputDir   string
	Timeout     time.Duration
	SettleDelay time.Duration
	Overwrite   bool
	CheckRobots bool
	MaxPages    int
}

// Cookie mirrors one entry of a browser-exported cookie JSON file
type Cookie struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path"`
	Secure         bool    `json:"secure"`
	HTTPOnly       bool    `json:"httpOnly"`
	ExpirationDate float64 `json:"expirationDate,omitempty"`
}

// ExportStatus is the terminal state of one page's export
type ExportStatus string

const (
	StatusExported ExportStatus = "exported"
	StatusSkipped  ExportStatus = "skipped"
	StatusFailed   ExportStatus = "failed"
)

// ExportRecord describes the committed outcome for one visited page
type ExportRecord struct {
	URL        string       `json:"url"`
	Filename   string       `json:"filename,omitempty"`
	Title      string       `json:"title,omitempty"`
	Bytes      int64        `json:"bytes,omitempty"`
	Status     ExportStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
	DurationMS int64        `json:"duration_ms"`
	ExportedAt time.Time    `json:"exported_at"`
}

// Failure pairs a URL with the reason it was not exported
type Failure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Results contains final run statistics
type Results struct {
	Discovered    int
	Exported      int
	Skipped       int
	Failed        int
	Authenticated bool
	Failures      []Failure
}
