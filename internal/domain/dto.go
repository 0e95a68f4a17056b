package domain

type OrderStatusType string

const (
	OrderStatusNew       OrderStatusType = "NEW"
	OrderStatusFinished  OrderStatusType = "FINISHED"
	OrderStatusCancelled OrderStatusType = "CANCELLED"
)

// Terminal сообщает, достиг ли заказ конечного статуса. Переход из конечного статуса запрещен.
func (s OrderStatusType) Terminal() bool {
	return s == OrderStatusFinished || s == OrderStatusCancelled
}

type PaymentStatusType string

const (
	PaymentStatusSucceeded PaymentStatusType = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatusType = "FAILED"
)

// Причины отказа платежа. Тексты являются частью контракта события payment.result.
const (
	ReasonAccountNotFound   = "Account not found"
	ReasonInsufficientFunds = "Insufficient funds"
)
