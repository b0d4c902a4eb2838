package cursor

import (
	"time"

	"placefinder/discoveryservice/internal/domain"
)

const remainingHeadSize = 3

// ServePage splices the next page off the pending list and advances the
// state's page/version counters, recording an audit entry. The caller
// decides afterwards whether the state is persisted or deleted.
func ServePage(state *domain.SearchState, perPage int, now time.Time) []domain.CuratedPlace {
	pendingBefore := len(state.Pending)
	count := perPage
	if count > pendingBefore {
		count = pendingBefore
	}

	page := append([]domain.CuratedPlace(nil), state.Pending[:count]...)
	state.Pending = append([]domain.CuratedPlace(nil), state.Pending[count:]...)
	state.PageNo++
	state.Version++
	state.UpdatedAt = now

	servedIDs := make([]string, len(page))
	for i, place := range page {
		servedIDs[i] = place.PlaceID
	}
	head := make([]string, 0, remainingHeadSize)
	for i := 0; i < len(state.Pending) && i < remainingHeadSize; i++ {
		head = append(head, state.Pending[i].PlaceID)
	}
	state.AppendAudit(domain.AuditEntry{
		Kind:          "serve",
		At:            now,
		PendingBefore: pendingBefore,
		PendingAfter:  len(state.Pending),
		ServedIDs:     servedIDs,
		RemainingHead: head,
		PageNo:        state.PageNo,
		Version:       state.Version,
	})
	return page
}
