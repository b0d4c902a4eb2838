package domain

import "time"

type StreamKind string

const (
	StreamNearby StreamKind = "nearby"
	StreamText   StreamKind = "text"
)

type StreamStage string

const (
	StagePrimary  StreamStage = "primary"
	StageFallback StreamStage = "fallback"
)

// Stream is one logical upstream search source together with its
// pagination/exhaustion state. Nearby streams are single-shot; text
// streams page through provider tokens with a mandated reuse delay.
type Stream struct {
	ID            string      `json:"id"`
	Kind          StreamKind  `json:"kind"`
	Stage         StreamStage `json:"stage"`
	IncludedTypes []string    `json:"includedTypes,omitempty"`
	TextQuery     string      `json:"textQuery,omitempty"`

	Exhausted     bool   `json:"exhausted"`
	Fetched       bool   `json:"fetched,omitempty"`
	NextPageToken string `json:"nextPageToken,omitempty"`
	TokenReadyAt  int64  `json:"tokenReadyAtMs,omitempty"`
	Armed         bool   `json:"armed,omitempty"`
}

// Eligible reports whether the stream may be pumped at the given instant.
// Fallback streams additionally require arming.
func (s Stream) Eligible(now time.Time) bool {
	if s.Exhausted {
		return false
	}
	if s.Stage == StageFallback && !s.Armed {
		return false
	}
	if s.Kind == StreamText && s.NextPageToken != "" && now.UnixMilli() < s.TokenReadyAt {
		return false
	}
	return true
}

// Totals are the running counters of one search's provider traffic and
// filter outcomes. Rejected is keyed by rejection reason.
type Totals struct {
	ProviderCalls int            `json:"providerCalls"`
	ResultsSeen   int            `json:"resultsSeen"`
	Added         int            `json:"added"`
	Duplicates    int            `json:"duplicates"`
	Rejected      map[string]int `json:"rejected,omitempty"`
}

func (t *Totals) Reject(reason string) {
	if t.Rejected == nil {
		t.Rejected = make(map[string]int)
	}
	t.Rejected[reason]++
}

const MaxAuditEntries = 12

type AuditEntry struct {
	Kind          string    `json:"kind"`
	At            time.Time `json:"at"`
	PendingBefore int       `json:"pendingBefore"`
	PendingAfter  int       `json:"pendingAfter"`
	ServedIDs     []string  `json:"servedIds,omitempty"`
	RemainingHead []string  `json:"remainingHead,omitempty"`
	PageNo        int       `json:"pageNo"`
	Version       int       `json:"version"`
}

// SearchState is the unit of mutable, persisted engine state: one per
// cursor id. It is owned by whichever request currently holds it and
// passed by value through the store between requests.
type SearchState struct {
	CursorID    string          `json:"cursorId"`
	Query       Query           `json:"query"`
	QueryHash   string          `json:"queryHash"`
	EngineHash  string          `json:"engineHash"`
	Streams     []Stream        `json:"streams"`
	Pending     []CuratedPlace  `json:"pending"`
	SeenIDs     map[string]bool `json:"seenIds"`
	Totals      Totals          `json:"totals"`
	CursorIndex int             `json:"cursorIndex"`
	PageNo      int             `json:"pageNo"`
	Version     int             `json:"version"`
	Audit       []AuditEntry    `json:"audit,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// MarkSeen records a provider place id; it returns false when the id was
// already admitted earlier in the search's lifetime.
func (st *SearchState) MarkSeen(id string) bool {
	if st.SeenIDs == nil {
		st.SeenIDs = make(map[string]bool)
	}
	if st.SeenIDs[id] {
		return false
	}
	st.SeenIDs[id] = true
	return true
}

// Exhausted reports whether every stream has been drained.
func (st *SearchState) Exhausted() bool {
	for _, stream := range st.Streams {
		if !stream.Exhausted {
			return false
		}
	}
	return true
}

// Drained reports whether nothing is left to serve or fetch.
func (st *SearchState) Drained() bool {
	return len(st.Pending) == 0 && st.Exhausted()
}

// AppendAudit pushes an entry onto the bounded audit ring, discarding the
// oldest entries beyond MaxAuditEntries.
func (st *SearchState) AppendAudit(entry AuditEntry) {
	st.Audit = append(st.Audit, entry)
	if overflow := len(st.Audit) - MaxAuditEntries; overflow > 0 {
		st.Audit = append([]AuditEntry(nil), st.Audit[overflow:]...)
	}
}

// SearchMeta is the paging envelope returned with every page.
type SearchMeta struct {
	Cursor    *string `json:"cursor"`
	PerPage   int     `json:"perPage"`
	HasMore   bool    `json:"hasMore"`
	QueryHash string  `json:"queryHash"`
	PageNo    int     `json:"pageNo"`
	Version   int     `json:"version"`
	Totals    Totals  `json:"totals"`
}

type SearchResponse struct {
	CuratedPlaces []CuratedPlace `json:"curatedPlaces"`
	Meta          SearchMeta     `json:"meta"`
}
