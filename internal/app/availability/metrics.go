package availability

import domainavailability "rentfleet/internal/domain/availability"

// Metrics receives engine outcomes. Implementations must be safe for concurrent use.
type Metrics interface {
	BlockCreated(listingType domainavailability.ListingType)
	ConflictDetected(kind domainavailability.Kind)
	BulkCompleted(succeeded, failed int)
	NotificationSent(ok bool)
}

type nopMetrics struct{}

func (nopMetrics) BlockCreated(domainavailability.ListingType) {}
func (nopMetrics) ConflictDetected(domainavailability.Kind)    {}
func (nopMetrics) BulkCompleted(int, int)                      {}
func (nopMetrics) NotificationSent(bool)                       {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
