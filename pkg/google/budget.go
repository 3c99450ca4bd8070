package google

import "time"

// Budget is a soft wall-clock ceiling for a paged fetch. The hosting platform
// kills long invocations, so loops check Exceeded between pages and exit early
// with partial results; watermark-based resumption picks up the remainder.
type Budget struct {
	deadline time.Time
}

func NewBudget(d time.Duration) *Budget {
	return &Budget{deadline: time.Now().Add(d)}
}

// Exceeded reports whether the budget has run out. A nil budget never expires.
func (b *Budget) Exceeded() bool {
	if b == nil {
		return false
	}
	return time.Now().After(b.deadline)
}

func (b *Budget) Remaining() time.Duration {
	if b == nil {
		return time.Duration(1<<62 - 1)
	}
	return time.Until(b.deadline)
}
