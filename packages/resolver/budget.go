package resolver

// Budget caps how many candidates of one page may reach active navigation.
// It is not safe for concurrent use; each page gets its own.
type Budget struct {
	remaining int
}

// NewBudget returns a budget of n navigations. n <= 0 disables navigation.
func NewBudget(n int) *Budget {
	if n < 0 {
		n = 0
	}
	return &Budget{remaining: n}
}

// Take consumes one navigation, reporting false once the cap is reached.
func (b *Budget) Take() bool {
	if b == nil || b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

func (b *Budget) Remaining() int {
	if b == nil {
		return 0
	}
	return b.remaining
}
