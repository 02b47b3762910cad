package mercadopago

import "encoding/json"

// Payment statuses as reported by the processor. Only a subset drives
// internal status transitions; everything else still mirrors financial fields.
const (
	StatusApproved  = "approved"
	StatusRefunded  = "refunded"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
)

type FeeDetail struct {
	Type     string  `json:"type"`
	FeePayer string  `json:"fee_payer"`
	Amount   float64 `json:"amount"`
}

type TransactionDetails struct {
	NetReceivedAmount float64 `json:"net_received_amount"`
	TotalPaidAmount   float64 `json:"total_paid_amount"`
}

// Payment is the processor-sourced transaction record, read-only to this
// service. Raw keeps the original body for audit persistence.
type Payment struct {
	ID                 json.Number        `json:"id"`
	Status             string             `json:"status"`
	StatusDetail       string             `json:"status_detail"`
	ExternalReference  string             `json:"external_reference"`
	TransactionAmount  float64            `json:"transaction_amount"`
	FeeDetails         []FeeDetail        `json:"fee_details"`
	TransactionDetails TransactionDetails `json:"transaction_details"`
	MoneyReleaseDate   string             `json:"money_release_date"`
	PaymentMethodID    string             `json:"payment_method_id"`
	PaymentTypeID      string             `json:"payment_type_id"`
	Installments       int                `json:"installments"`
	DateCreated        string             `json:"date_created"`
	DateApproved       string             `json:"date_approved"`

	Raw json.RawMessage `json:"-"`
}

// FeeTotal sums all fee line items. The processor reports marketplace and
// financing fees as separate entries.
func (p Payment) FeeTotal() float64 {
	total := 0.0
	for _, fee := range p.FeeDetails {
		total += fee.Amount
	}
	return total
}

type searchPaging struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type searchResponse struct {
	Paging  searchPaging      `json:"paging"`
	Results []json.RawMessage `json:"results"`
}
