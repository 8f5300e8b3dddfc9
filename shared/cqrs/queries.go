package cqrs

// GetTransactionQuery fetches a single transaction seen from one of the caller's accounts.
type GetTransactionQuery struct {
	TransactionID string
	AccountID     string
	UserID        string
}

// ListAccountTransactionsQuery fetches the newest transactions touching an account.
type ListAccountTransactionsQuery struct {
	AccountID string
	UserID    string
	Limit     int
}

// ListUserTransactionsQuery fetches the newest transactions across all of a user's accounts.
type ListUserTransactionsQuery struct {
	UserID string
	Limit  int
}
