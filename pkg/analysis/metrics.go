package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"fieldseg/pkg/classmap"
)

// smoothing keeps ratios defined for classes absent from both maps
const smoothing = 1e-6

// ClassMetrics are the per-class segmentation quality scores
type ClassMetrics struct {
	Class     string
	IoU       float64
	Precision float64
	Recall    float64
	F1        float64
}

// Confusion accumulates per-class pixel counts over many tiles
type Confusion struct {
	k      int
	tp     []float64
	fp     []float64
	fn     []float64
	pixels int
}

// NewConfusion creates an accumulator for k classes
func NewConfusion(k int) *Confusion {
	return &Confusion{
		k:  k,
		tp: make([]float64, k),
		fp: make([]float64, k),
		fn: make([]float64, k),
	}
}

// Add accumulates one predicted / ground-truth pair of equal size
func (c *Confusion) Add(pred, truth classmap.ClassMap) error {
	if pred.Width != truth.Width || pred.Height != truth.Height {
		return fmt.Errorf("prediction %dx%d does not match ground truth %dx%d",
			pred.Width, pred.Height, truth.Width, truth.Height)
	}
	for i := range pred.IDs {
		p, t := int(pred.IDs[i]), int(truth.IDs[i])
		if p >= c.k || t >= c.k {
			return fmt.Errorf("%w: pixel %d has class %d/%d for %d classes", classmap.ErrUnknownClass, i, p, t, c.k)
		}
		if p == t {
			c.tp[p]++
			continue
		}
		c.fp[p]++
		c.fn[t]++
	}
	c.pixels += len(pred.IDs)
	return nil
}

// Pixels returns how many pixels have been accumulated
func (c *Confusion) Pixels() int {
	return c.pixels
}

// Metrics returns IoU, precision, recall and F1 for every class, named from
// table
func (c *Confusion) Metrics(table *classmap.Table) []ClassMetrics {
	out := make([]ClassMetrics, c.k)
	for id := 0; id < c.k; id++ {
		tp, fp, fn := c.tp[id], c.fp[id], c.fn[id]

		precision := (tp + smoothing) / (tp + fp + smoothing)
		recall := (tp + smoothing) / (tp + fn + smoothing)

		name, err := table.Name(id)
		if err != nil {
			name = fmt.Sprintf("class_%d", id)
		}
		out[id] = ClassMetrics{
			Class:     name,
			IoU:       (tp + smoothing) / (tp + fp + fn + smoothing),
			Precision: precision,
			Recall:    recall,
			F1:        2 * (precision * recall) / (precision + recall + smoothing),
		}
	}
	return out
}

// Evaluate compares a single prediction against its ground truth
func Evaluate(pred, truth classmap.ClassMap, table *classmap.Table) ([]ClassMetrics, error) {
	c := NewConfusion(table.Len())
	if err := c.Add(pred, truth); err != nil {
		return nil, err
	}
	return c.Metrics(table), nil
}

// Summary condenses per-class metrics into mean IoU and its spread
type Summary struct {
	MeanIoU   float64
	StdDevIoU float64
	MeanF1    float64
}

// Summarize computes the mean and standard deviation of per-class scores
func Summarize(metrics []ClassMetrics) Summary {
	if len(metrics) == 0 {
		return Summary{}
	}
	ious := make([]float64, len(metrics))
	f1s := make([]float64, len(metrics))
	for i, m := range metrics {
		ious[i] = m.IoU
		f1s[i] = m.F1
	}

	s := Summary{
		MeanIoU: stat.Mean(ious, nil),
		MeanF1:  stat.Mean(f1s, nil),
	}
	if len(ious) > 1 {
		s.StdDevIoU = stat.StdDev(ious, nil)
	}
	return s
}
