package session

import (
	"sort"
	"time"

	"github.com/jrsteele09/go-session-host/catalog"
	"github.com/jrsteele09/go-session-host/internal/utils"
)

// ClientID is the transport's handle for a connected client.
type ClientID uint64

// HostClientID is the host's own connection. It holds the reserved slot and is never in the roster.
const HostClientID ClientID = 0

// ClientRecord is the per-client state kept for an admitted client.
type ClientRecord struct {
	ClientID    ClientID
	CharacterID *catalog.CharacterID // nil until the client picks a character
	ConnectedAt time.Time
}

// Character returns the selected character and whether one was selected.
func (r ClientRecord) Character() (catalog.CharacterID, bool) {
	return utils.Value(r.CharacterID), r.CharacterID != nil
}

func (r ClientRecord) clone() ClientRecord {
	if r.CharacterID != nil {
		r.CharacterID = utils.Ptr(*r.CharacterID)
	}
	return r
}

// RejectReason explains a rejected admission.
type RejectReason string

const (
	RejectNone       RejectReason = ""
	RejectWrongPhase RejectReason = "wrong_phase"
	RejectCapacity   RejectReason = "capacity"
	RejectDuplicate  RejectReason = "duplicate"
)

// Verdict is the outcome of an admission request. The caller completes or
// refuses the underlying connection accordingly.
type Verdict struct {
	Accepted bool
	Reason   RejectReason
}

func accept() Verdict {
	return Verdict{Accepted: true}
}

func reject(reason RejectReason) Verdict {
	return Verdict{Reason: reason}
}

func (v Verdict) String() string {
	if v.Accepted {
		return "accepted"
	}
	return "rejected: " + string(v.Reason)
}

// roster maps client ids to records. The host never appears in it.
type roster map[ClientID]*ClientRecord

func (r roster) snapshot() []ClientRecord {
	records := make([]ClientRecord, 0, len(r))
	for _, rec := range r {
		records = append(records, rec.clone())
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ClientID < records[j].ClientID })
	return records
}
