package models

// PaymentIntentStatus represents the lifecycle of one payment intent.
type PaymentIntentStatus string

const (
	IntentCreated   PaymentIntentStatus = "created"
	IntentConfirmed PaymentIntentStatus = "confirmed"
	IntentFailed    PaymentIntentStatus = "failed"
)

// ProcessorSucceeded is the only processor confirmation status treated
// as payment success.
const ProcessorSucceeded = "succeeded"

// PaymentIntent is a processor-issued authorization handle scoped to one
// amount and consumed by exactly one confirmation attempt. It lives for
// a single checkout attempt and is never reused.
type PaymentIntent struct {
	ClientSecret string              `json:"client_secret"`
	Amount       Cents               `json:"amount"`
	Status       PaymentIntentStatus `json:"status"`
}

// PaymentMethod carries the card details handed to the processor for
// confirmation. The core never inspects them.
type PaymentMethod struct {
	CardNumber string `json:"card_number"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVC        string `json:"cvc"`
}

// CreatePaymentIntentRequest is the payload of POST /customer/create-payment-intent.
type CreatePaymentIntentRequest struct {
	Amount Cents `json:"amount"`
}

// CreatePaymentIntentResponse is the backend's reply.
type CreatePaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}
