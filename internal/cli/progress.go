package cli

import (
	"fmt"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/maauso/urbanmel/internal/fold"
)

var _ fold.Observer = (*barObserver)(nil)

// barObserver renders one progress bar per fold.
type barObserver struct {
	p    *mpb.Progress
	mu   sync.Mutex
	bars map[int]*mpb.Bar
}

func newBarObserver(p *mpb.Progress) *barObserver {
	return &barObserver{p: p, bars: make(map[int]*mpb.Bar)}
}

func (o *barObserver) FoldStarted(k, clips int) {
	bar := o.p.AddBar(int64(clips),
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("fold%-3d", k)),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
		),
	)

	o.mu.Lock()
	o.bars[k] = bar
	o.mu.Unlock()
}

func (o *barObserver) ClipDone(k int) {
	if bar := o.bar(k); bar != nil {
		bar.Increment()
	}
}

func (o *barObserver) FoldFinished(k int, err error) {
	bar := o.bar(k)
	if bar == nil {
		return
	}
	if err != nil {
		bar.Abort(false)
		return
	}
	// Completes empty folds too, which would otherwise block Wait.
	bar.SetTotal(-1, true)
}

func (o *barObserver) bar(k int) *mpb.Bar {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bars[k]
}
