package constants

// RunState is the lifecycle of one extraction run. Stored verbatim in extract_job.status.
type RunState string

const (
	RunIdle       RunState = "IDLE"
	RunProcessing RunState = "PROCESSING"
	RunSucceeded  RunState = "SUCCEEDED"
	RunFailed     RunState = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// StopType classifies a route event on a rate confirmation.
type StopType string

const (
	StopPickup   StopType = "PICKUP"
	StopDelivery StopType = "DELIVERY"
	StopOther    StopType = "STOP"
)

// CanonicalStopType maps loose labels ("pick up", "consignee", "drop") onto the three stop types.
func CanonicalStopType(s string) StopType {
	switch normalizeWord(s) {
	case "PICKUP", "PICK UP", "PU", "SHIPPER", "ORIGIN", "LOAD":
		return StopPickup
	case "DELIVERY", "DELIVER", "DEL", "DROP", "CONSIGNEE", "RECEIVER", "DESTINATION", "UNLOAD", "SO":
		return StopDelivery
	}
	return StopOther
}
