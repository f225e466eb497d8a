package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rl1809/course-checkout/internal/core/domain"
	"github.com/rl1809/course-checkout/internal/core/signature"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultMaxResponseBytes = 1 << 20
)

type MoMoConfig struct {
	Endpoint         string
	PartnerCode      string
	PartnerName      string
	StoreID          string
	AccessKey        string
	SecretKey        string
	IPNURL           string
	Lang             string
	RequestType      string
	Timeout          time.Duration
	MaxResponseBytes int64
}

type createRequest struct {
	PartnerCode  string `json:"partnerCode"`
	PartnerName  string `json:"partnerName"`
	StoreID      string `json:"storeId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderID      string `json:"orderId"`
	OrderInfo    string `json:"orderInfo"`
	RedirectURL  string `json:"redirectUrl"`
	IPNURL       string `json:"ipnUrl"`
	Lang         string `json:"lang"`
	RequestType  string `json:"requestType"`
	AutoCapture  bool   `json:"autoCapture"`
	ExtraData    string `json:"extraData"`
	OrderGroupID string `json:"orderGroupId"`
	Signature    string `json:"signature"`
}

type createResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	ResponseTime int64  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   int    `json:"resultCode"`
	PayURL       string `json:"payUrl"`
	Deeplink     string `json:"deeplink"`
	QRCodeURL    string `json:"qrCodeUrl"`
}

// MoMoClient creates payments on the MoMo v2 gateway.
type MoMoClient struct {
	cfg    MoMoConfig
	client *http.Client
}

func NewMoMoClient(cfg MoMoConfig) *MoMoClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	return &MoMoClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *MoMoClient) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResponse, error) {
	body := createRequest{
		PartnerCode: c.cfg.PartnerCode,
		PartnerName: c.cfg.PartnerName,
		StoreID:     c.cfg.StoreID,
		RequestID:   req.RequestID,
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		OrderInfo:   req.OrderInfo,
		RedirectURL: req.RedirectURL,
		IPNURL:      c.cfg.IPNURL,
		Lang:        c.cfg.Lang,
		RequestType: c.cfg.RequestType,
		AutoCapture: true,
	}
	body.Signature = signature.Sign(c.cfg.SecretKey, signature.CreatePaymentFields(signature.CreatePayment{
		AccessKey:   c.cfg.AccessKey,
		Amount:      body.Amount,
		ExtraData:   body.ExtraData,
		IPNURL:      body.IPNURL,
		OrderID:     body.OrderID,
		OrderInfo:   body.OrderInfo,
		PartnerCode: body.PartnerCode,
		RedirectURL: body.RedirectURL,
		RequestID:   body.RequestID,
		RequestType: body.RequestType,
	}))

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrGatewayUnavailable, err)
	}
	if int64(len(raw)) > c.cfg.MaxResponseBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", domain.ErrGatewayUnavailable, c.cfg.MaxResponseBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var parsed createResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", domain.ErrGatewayUnavailable, err)
	}
	if parsed.ResultCode != domain.ResultCodeSuccess || parsed.PayURL == "" {
		return nil, fmt.Errorf("%w: gateway rejected order %s with code %d: %s",
			domain.ErrGatewayUnavailable, req.OrderID, parsed.ResultCode, parsed.Message)
	}

	return &domain.PaymentResponse{
		PayURL:     parsed.PayURL,
		ResultCode: parsed.ResultCode,
		Message:    parsed.Message,
		Request:    payload,
		Raw:        raw,
	}, nil
}
