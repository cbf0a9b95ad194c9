package usage

// BudgetReader exposes the configured limits and the tokens consumed in the
// current day and month. A limit of 0 means unlimited.
type BudgetReader interface {
	DailyLimit() int64
	DailyUsed() int64
	MonthlyLimit() int64
	MonthlyUsed() int64
}
