package batch

// AwaitAll blocks until every dispatched task has terminated. It may run
// before, during or after collection: the result channel is buffered to the
// number of targets, so producers never wait on the consumer.
//
// The returned error is non-nil only when a task terminated abnormally.
func AwaitAll(h *Handles) error {
	<-h.done
	h.state.advance(StateAwaitingCompletion)
	h.settle()
	return h.err
}
