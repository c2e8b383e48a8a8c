package run

// Reconcile merges persisted history runs with in-flight streaming runs for
// the same session.
//
// History runs are iterated in their given order, which is preserved; the
// result is never re-sorted. For each history run, a streaming run with the
// same run ID substitutes the history entry only when the streaming copy has
// settled into StatusCompleted or StatusError: the settled streaming copy is
// strictly fresher and may carry richer in-memory detail (for example,
// step-executor sub-runs not yet reflected in the paginated history payload).
// A streaming run still in a non-terminal state never overrides history.
// This keeps a slow-to-settle live entry from clobbering an already-finalized
// historical record when the history fetch races stream completion.
//
// Cancelled streaming copies never substitute either: cancellation mutes the
// run and clears its streaming state, so the persisted record is the only
// view worth keeping.
//
// Membership is owned by history: runs present only in streaming (started
// after the last history fetch) are not injected here; surfacing brand-new
// runs is the caller's concern until the next history refresh.
//
// Empty history returns an empty result regardless of streaming content;
// empty streaming returns history unchanged.
func Reconcile(history, streaming []Run) []Run {
	if len(history) == 0 {
		return []Run{}
	}
	if len(streaming) == 0 {
		return history
	}
	byID := make(map[string]Run, len(streaming))
	for _, r := range streaming {
		byID[r.RunID] = r
	}
	out := make([]Run, len(history))
	for i, h := range history {
		if s, ok := byID[h.RunID]; ok && (s.Status == StatusCompleted || s.Status == StatusError) {
			out[i] = s
			continue
		}
		out[i] = h
	}
	return out
}
