package metricstream

// AggregateFunc reduces the values of a vector to a single value. nil entries are inputs
// without a value yet.
type AggregateFunc func(values []*float64) float64

// Aggregate turns a vector stream into a sample stream.
type Aggregate struct {
	fn   AggregateFunc
	next Handler[float64]
}

func NewAggregate(fn AggregateFunc, next Handler[float64]) *Aggregate {
	return &Aggregate{fn: fn, next: next}
}

func (a *Aggregate) HandleDatapoint(dp Vector) {
	a.next.HandleDatapoint(Sample{Ts: dp.Ts, Value: a.fn(dp.Value), Live: dp.Live})
}

func (a *Aggregate) HandleLive() {
	a.next.HandleLive()
}

// Max is the largest of the present values, or 0 if there are none.
func Max(values []*float64) float64 {
	var result float64
	found := false
	for _, v := range values {
		if v == nil {
			continue
		}
		if !found || *v > result {
			result = *v
			found = true
		}
	}
	return result
}
