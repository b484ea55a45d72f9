package fold

// Observer receives progress notifications for folds. The Extractor reports
// scan and clip progress; whoever persists the batch reports completion.
// Implementations must be safe for concurrent use; folds run in parallel.
type Observer interface {
	// FoldStarted is called once the fold has been scanned.
	FoldStarted(fold, clips int)
	// ClipDone is called after each clip, processed or skipped.
	ClipDone(fold int)
	// FoldFinished is called when the fold reaches DONE or FAILED.
	FoldFinished(fold int, err error)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) FoldStarted(int, int)    {}
func (NopObserver) ClipDone(int)            {}
func (NopObserver) FoldFinished(int, error) {}
