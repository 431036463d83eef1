package exclusion

import "time"

// Reason codes attached to records the engine cannot reconcile.
const (
	ReasonUnsupportedStructure  = "UNSUPPORTED_STRUCTURE"
	ReasonAllocationAmbiguous   = "ALLOCATION_AMBIGUOUS"
	ReasonCreditNoteUnallocated = "CREDIT_NOTE_UNALLOCATED"
)

// Exclusion is a record the engine set aside instead of reconciling.
// Every exclusion names the record, the reason and a human explanation.
type Exclusion struct {
	RecordType  string    `json:"record_type"`
	RecordID    string    `json:"record_id"`
	ReasonCode  string    `json:"reason_code"`
	Description string    `json:"description"`
	ExcludedAt  time.Time `json:"excluded_at"`
}
