package domain

// Editable reports whether direct field edits and single-record deletes are
// allowed on r.
//
// Non-flight kinds are always editable. A flight is editable only when it
// was entered by hand, or when it came from a PDF upload or a legacy row
// and carries no reservation code. Automated imports with a code are treated
// as authoritative and can only be moved through whole-group operations.
func (r Reservation) Editable() bool {
	if r.Kind != KindFlight {
		return true
	}
	switch r.Source {
	case SourceManual:
		return true
	case SourcePDFUpload, SourceUnset:
		return r.Code == ""
	default:
		return false
	}
}
