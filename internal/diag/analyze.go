package diag

import "github.com/nraines/tracewatch/pkg/pathmodel"

// AnalyzeIteration runs the address-classification NAT heuristic over
// every filled hop of it and returns the hints found, in hop order.
func AnalyzeIteration(it *pathmodel.Iteration) []NATHint {
	if it == nil {
		return nil
	}
	var hints []NATHint
	for h := 1; h <= len(it.Hops); h++ {
		p := it.At(h)
		if p == nil {
			continue
		}
		if hint, ok := HintFromAddress(h, p.Source); ok {
			hints = append(hints, hint)
		}
	}
	return hints
}
