package http

import "quickaccounting/internal/core"

type transactionDTO struct {
	ID          string  `json:"id"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
}

type statisticsDTO struct {
	TotalIncome  float64          `json:"total_income"`
	TotalExpense float64          `json:"total_expense"`
	Net          float64          `json:"net"`
	Transactions []transactionDTO `json:"transactions"`
}

type categoriesDTO struct {
	ExpenseCategories []string `json:"expense_categories"`
	IncomeCategories  []string `json:"income_categories"`
}

type healthDTO struct {
	Status string `json:"status"`
}

func newStatisticsDTO(s core.Statistics) statisticsDTO {
	txs := make([]transactionDTO, 0, len(s.Transactions))
	for _, t := range s.Transactions {
		txs = append(txs, transactionDTO{
			ID:          t.ID,
			Amount:      t.Amount,
			Type:        string(t.Type),
			Category:    t.Category,
			Description: t.Description,
			Date:        t.Date,
		})
	}
	return statisticsDTO{
		TotalIncome:  s.TotalIncome,
		TotalExpense: s.TotalExpense,
		Net:          s.Net,
		Transactions: txs,
	}
}
