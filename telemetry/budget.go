package telemetry

// BudgetState is the lifecycle of a timeline budget.
type BudgetState uint8

const (
	BudgetUnlimited BudgetState = iota
	BudgetActive
	BudgetExhausted
)

func (s BudgetState) String() string {
	switch s {
	case BudgetUnlimited:
		return "unlimited"
	case BudgetActive:
		return "active"
	case BudgetExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Budget caps how many checks may run against the timeline. Once the count
// reaches the cap the budget is exhausted for good.
type Budget struct {
	state BudgetState
	cap   int
	count int
}

// UnlimitedBudget never exhausts. It still counts units taken.
func UnlimitedBudget() *Budget {
	return &Budget{state: BudgetUnlimited}
}

// NewBudget returns a budget of n units. n <= 0 starts exhausted.
func NewBudget(n int) *Budget {
	b := &Budget{state: BudgetActive, cap: max(0, n)}
	if b.cap == 0 {
		b.state = BudgetExhausted
	}
	return b
}

// BudgetFrom maps an optional limit onto a budget; nil is unlimited.
func BudgetFrom(limit *int) *Budget {
	if limit == nil {
		return UnlimitedBudget()
	}
	return NewBudget(*limit)
}

// Take consumes one unit and reports whether it was available.
func (b *Budget) Take() bool {
	switch b.state {
	case BudgetExhausted:
		return false
	case BudgetUnlimited:
		b.count++
		return true
	}
	b.count++
	if b.count >= b.cap {
		b.state = BudgetExhausted
		budgetExhaustedTotal.Inc()
	}
	return true
}

// State returns the current lifecycle state.
func (b *Budget) State() BudgetState { return b.state }

// Exhausted reports whether no further units can be taken.
func (b *Budget) Exhausted() bool { return b.state == BudgetExhausted }

// Limited reports whether the budget has a finite cap.
func (b *Budget) Limited() bool { return b.state != BudgetUnlimited }

// Count returns units taken so far.
func (b *Budget) Count() int { return b.count }

// Cap returns the limit, or -1 when unlimited.
func (b *Budget) Cap() int {
	if b.state == BudgetUnlimited {
		return -1
	}
	return b.cap
}
