package status

import (
	"context"
	"time"
)

// Snapshot is a point-in-time status payload. The bridge treats it as an
// opaque value to serialize and transmit; sourcing the data is the snapshot
// producer's concern.
type Snapshot struct {
	AgentState  string        `json:"agent_state"`
	TokenUsage  *TokenUsage   `json:"token_usage,omitempty"`
	Jobs        []JobHealth   `json:"jobs,omitempty"`
	MemoryStats *MemoryStats  `json:"memory_stats,omitempty"`
	Sessions    []SessionInfo `json:"sessions,omitempty"`
	CollectedAt time.Time     `json:"collected_at"`
}

// TokenUsage reports model token and context window consumption.
type TokenUsage struct {
	ContextTokens int `json:"context_tokens"`
	ContextLimit  int `json:"context_limit"`
	TotalTokens   int `json:"total_tokens"`
}

// JobHealth reports the health of one scheduled job.
type JobHealth struct {
	Name    string    `json:"name"`
	Healthy bool      `json:"healthy"`
	LastRun time.Time `json:"last_run"`
}

// MemoryStats reports memory-store statistics.
type MemoryStats struct {
	Entries   int   `json:"entries"`
	SizeBytes int64 `json:"size_bytes"`
}

// SessionInfo describes one active chat session.
type SessionInfo struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"sender_id,omitempty"`
	MessageCount int       `json:"message_count"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Producer yields a snapshot. It is an external collaborator; a failure is
// caught per tick and never terminates a loop.
type Producer func(ctx context.Context) (*Snapshot, error)

// PushFunc forwards a snapshot to the dashboard.
type PushFunc func(snapshot *Snapshot)
