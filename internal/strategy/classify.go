package strategy

import "github.com/ecomarket/purchase-pipeline/internal/purchase"

// band is one slice of the [0,1) outcome-classification range a
// retrying strategy draws from when its gate is open. Bands are
// evaluated in order and must cover up to 1.0; the first whose
// cumulative upper bound exceeds the draw wins. A zero-value kind means
// "success". The exact shares per strategy reproduce the original's
// per-mode percentages; the spec (§4.3) only requires all four kinds —
// connection, timeout, service_generic, success — appear with non-zero
// probability when the gate is open.
type band struct {
	upper float64
	kind  purchase.ReasonKind
	msg   string
}

func classify(draw float64, bands []band) (ok bool, kind purchase.ReasonKind, msg string) {
	for _, b := range bands {
		if draw < b.upper {
			if b.kind == "" {
				return true, "", ""
			}
			return false, b.kind, b.msg
		}
	}
	last := bands[len(bands)-1]
	return false, last.kind, last.msg
}
