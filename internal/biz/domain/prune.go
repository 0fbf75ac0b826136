package domain

import "time"

// PruneOptions parameterizes the two-phase context pruning pass
type PruneOptions struct {
	// Expiration is the cutoff; anything last touched before it is stale
	Expiration time.Time
	// TriggerThreshold protects contexts triggered at least this many times
	TriggerThreshold int
	// HeavyTriggerCount marks contexts whose answers get trimmed regardless of clear time
	HeavyTriggerCount int
	Now               time.Time
}

// PruneResult reports what a pruning pass removed
type PruneResult struct {
	ContextsDeleted int64
	AnswersDeleted  int64
	ContextsCleared int64
}
