package progress

// Func receives overall progress updates in the range [0,1]. Callbacks run
// on the export worker goroutine; a slow callback slows the export.
type Func func(fraction float64)

// NotifyFunc bridges service events to a plain callback. It returns the
// subscriber ID (for Unsubscribe) and starts a goroutine that forwards the
// overall fraction of every event for the given owner.
func (s *Service) NotifyFunc(ownerKey string, fn Func) string {
	id, ch := s.Subscribe(16)
	go func() {
		for event := range ch {
			if event.Operation == nil || event.Operation.OwnerKey != ownerKey {
				continue
			}
			fn(event.Operation.Progress)
		}
	}()
	return id
}
