package reconcile

type Status string

const (
	StatusIgnored   Status = "ignored"
	StatusUpdated   Status = "updated"
	StatusProcessed Status = "processed"
)

const (
	MessageAddressNotFound      = "Address not found"
	MessageNoPayment            = "No payment to this address"
	MessageConfirmationsUpdated = "Transaction confirmations updated"
	MessageTransactionRecorded  = "Transaction recorded"
)

// Outcome is the result of one successful ingestion. Rejections are returned as errors.
type Outcome struct {
	Status        Status `json:"status"`
	Message       string `json:"message"`
	TransactionID *int64 `json:"transaction_id,omitempty"`
	InvoiceID     *int64 `json:"invoice_id,omitempty"`
}

func Ignored(message string) *Outcome {
	return &Outcome{Status: StatusIgnored, Message: message}
}

func Updated(transactionID int64) *Outcome {
	return &Outcome{Status: StatusUpdated, Message: MessageConfirmationsUpdated, TransactionID: &transactionID}
}

func Processed(transactionID int64, settledInvoiceID *int64) *Outcome {
	return &Outcome{
		Status:        StatusProcessed,
		Message:       MessageTransactionRecorded,
		TransactionID: &transactionID,
		InvoiceID:     settledInvoiceID,
	}
}
