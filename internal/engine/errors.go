package engine

import "fmt"

// DetectorExecutionError wraps a panic raised inside one detector
// invocation. It is fatal for that invocation only; the scan keeps the
// findings every other invocation produced.
type DetectorExecutionError struct {
	Detector string
	Contract string
	Cause    any
}

func (e *DetectorExecutionError) Error() string {
	return fmt.Sprintf("detector %s failed on %s: %v", e.Detector, e.Contract, e.Cause)
}

// PartialScanError records that the deadline expired before every
// scheduled (contract, detector) pair ran. Findings from the completed
// pairs are still reported.
type PartialScanError struct {
	Completed int
	Scheduled int
}

func (e *PartialScanError) Error() string {
	return fmt.Sprintf("deadline expired after %d of %d detector runs", e.Completed, e.Scheduled)
}
