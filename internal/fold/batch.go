package fold

import (
	"github.com/maauso/urbanmel/internal/features"
)

// Batch is the extraction result of one fold. Tensors, Labels and Paths are
// index aligned and in scan order.
type Batch struct {
	Fold    int
	Bands   int
	Frames  int
	Tensors []features.Tensor
	Labels  []int
	Paths   []string
}

// Len returns the number of processed clips.
func (b *Batch) Len() int {
	return len(b.Tensors)
}

// clipResult is the outcome of one clip: either a tensor and label, or a
// skip reason with its cause.
type clipResult struct {
	tensor features.Tensor
	label  int
	skip   SkipReason
	cause  error
}
