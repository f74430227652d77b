package core

import "github.com/shopspring/decimal"

// Statistics is the aggregate over the transactions of one period.
type Statistics struct {
	TotalIncome  float64
	TotalExpense float64
	Net          float64
	Transactions []Transaction
}

// NewStatistics sums txs by type. Sums are exact decimals, so 0.1+0.2 stays 0.3.
// Transactions of any other type are listed but not counted.
func NewStatistics(txs []Transaction) Statistics {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range txs {
		switch t.Type {
		case Income:
			income = income.Add(decimal.NewFromFloat(t.Amount))
		case Expense:
			expense = expense.Add(decimal.NewFromFloat(t.Amount))
		}
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return Statistics{
		TotalIncome:  income.InexactFloat64(),
		TotalExpense: expense.InexactFloat64(),
		Net:          income.Sub(expense).InexactFloat64(),
		Transactions: txs,
	}
}
