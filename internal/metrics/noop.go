package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

// ConnectionOpened is a no-op.
func (n *NoopCollector) ConnectionOpened() {}

// ConnectionClosed is a no-op.
func (n *NoopCollector) ConnectionClosed() {}

// AuthAttempt is a no-op.
func (n *NoopCollector) AuthAttempt(kind string, success bool) {}

// RequestProcessed is a no-op.
func (n *NoopCollector) RequestProcessed(header string) {}

// MessageDelivered is a no-op.
func (n *NoopCollector) MessageDelivered(sizeBytes int64) {}

// MessageLost is a no-op.
func (n *NoopCollector) MessageLost() {}
