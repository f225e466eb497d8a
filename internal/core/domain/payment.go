package domain

import "encoding/json"

// PaymentRequest is what checkout asks the gateway for.
type PaymentRequest struct {
	OrderID     string
	RequestID   string
	Amount      int64
	OrderInfo   string
	RedirectURL string
}

// PaymentResponse is the gateway's answer to a creation request.
// Request and Raw keep the exact bytes exchanged for the audit trail.
type PaymentResponse struct {
	PayURL     string
	ResultCode int
	Message    string
	Request    json.RawMessage
	Raw        json.RawMessage
}

// PaymentCallback is the inbound IPN body. Field names match the gateway's wire format.
type PaymentCallback struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}
