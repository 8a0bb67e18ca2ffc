package stats

// Provider defines the interface for components that expose statistics.
type Provider interface {
	GetStats() map[string]interface{}
	GetStatsFiltered(prefix string) map[string]interface{}
}

// Collector defines methods for collecting persist-domain statistics.
type Collector interface {
	Provider

	// TrackOperation records a single operation.
	TrackOperation(op OperationType)

	// TrackOperationWithLatency records an operation with its latency.
	TrackOperationWithLatency(op OperationType, latencyNs uint64)

	// TrackError increments the counter for the specified error type.
	TrackError(errorType string)

	// TrackBytes adds the specified number of bytes to the read or write
	// counter.
	TrackBytes(isWrite bool, bytes uint64)

	// TrackErase adds bytes to the erase counter for blockIndex.
	TrackErase(blockIndex uint32, bytes uint64)
}

// Ensure AtomicCollector implements the Collector interface.
var _ Collector = (*AtomicCollector)(nil)
