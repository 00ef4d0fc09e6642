package models

import (
	"time"
)

// Alert is raised for every certificate issued by an unexpected CA
type Alert struct {
	MessageType string             `json:"message_type"`
	RunID       string             `json:"run_id"`
	Seen        float64            `json:"seen"`
	Certificate *CertificateRecord `json:"certificate"`
}

// DomainsOnly represents a simplified alert with just the names on the certificate
type DomainsOnly struct {
	MessageType string          `json:"message_type"`
	Data        DomainsOnlyData `json:"data"`
}

// DomainsOnlyData contains just the domain information
type DomainsOnlyData struct {
	RunID   string   `json:"run_id"`
	Issuer  string   `json:"issuer"`
	Domains []string `json:"domains"`
	Seen    float64  `json:"seen"`
}

// RunReport summarizes one periodic check
type RunReport struct {
	RunID           string        `json:"run_id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	Patterns        []string      `json:"patterns"`
	Error           string        `json:"error,omitempty"`
	AllCerts        int           `json:"all_certs"`
	UnexpectedCA    int           `json:"unexpected_ca"`
	DistinctIssuers int           `json:"distinct_issuers"`
	NewAlerts       int           `json:"new_alerts"`
}

// StreamType represents the type of alert stream
type StreamType int

const (
	StreamFull StreamType = iota
	StreamDomainsOnly
)

// Client represents a connected WebSocket client
type Client struct {
	ID          string
	StreamType  StreamType
	Connection  interface{}
	SendChan    chan []byte
	IP          string
	UserAgent   string
	ConnectedAt time.Time
}

// Stats represents server statistics
type Stats struct {
	Runs             int64      `json:"runs"`
	FailedRuns       int64      `json:"failed_runs"`
	AlertsRaised     int64      `json:"alerts_raised"`
	ConnectedClients int        `json:"connected_clients"`
	LastRun          *RunReport `json:"last_run,omitempty"`
}
