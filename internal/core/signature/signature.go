// Package signature computes and verifies the gateway's HMAC-SHA256 signatures.
//
// The gateway signs "key=value" pairs joined by "&" in an order fixed by its
// protocol. The creation request and the IPN callback use different field
// lists; reordering either one breaks verification silently.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/rl1809/course-checkout/internal/core/domain"
)

type Field struct {
	Key   string
	Value string
}

type Fields []Field

// Raw renders the canonical string that is fed to the HMAC.
func (f Fields) Raw() string {
	var b strings.Builder
	for i, field := range f {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(field.Key)
		b.WriteByte('=')
		b.WriteString(field.Value)
	}
	return b.String()
}

func Sign(secretKey string, fields Fields) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(fields.Raw()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it in constant time.
func Verify(secretKey, received string, fields Fields) bool {
	expected := Sign(secretKey, fields)
	return hmac.Equal([]byte(expected), []byte(received))
}

// CreatePayment holds the values signed on the outbound creation request.
type CreatePayment struct {
	AccessKey   string
	Amount      int64
	ExtraData   string
	IPNURL      string
	OrderID     string
	OrderInfo   string
	PartnerCode string
	RedirectURL string
	RequestID   string
	RequestType string
}

func CreatePaymentFields(p CreatePayment) Fields {
	return Fields{
		{"accessKey", p.AccessKey},
		{"amount", strconv.FormatInt(p.Amount, 10)},
		{"extraData", p.ExtraData},
		{"ipnUrl", p.IPNURL},
		{"orderId", p.OrderID},
		{"orderInfo", p.OrderInfo},
		{"partnerCode", p.PartnerCode},
		{"redirectUrl", p.RedirectURL},
		{"requestId", p.RequestID},
		{"requestType", p.RequestType},
	}
}

// CallbackFields lists every IPN field except the signature itself.
func CallbackFields(accessKey string, cb domain.PaymentCallback) Fields {
	return Fields{
		{"accessKey", accessKey},
		{"amount", strconv.FormatInt(cb.Amount, 10)},
		{"extraData", cb.ExtraData},
		{"message", cb.Message},
		{"orderId", cb.OrderID},
		{"orderInfo", cb.OrderInfo},
		{"orderType", cb.OrderType},
		{"partnerCode", cb.PartnerCode},
		{"payType", cb.PayType},
		{"requestId", cb.RequestID},
		{"responseTime", strconv.FormatInt(cb.ResponseTime, 10)},
		{"resultCode", strconv.Itoa(cb.ResultCode)},
		{"transId", strconv.FormatInt(cb.TransID, 10)},
	}
}

// SignCallback is used by the dev tooling to forge a valid IPN.
func SignCallback(accessKey, secretKey string, cb domain.PaymentCallback) string {
	return Sign(secretKey, CallbackFields(accessKey, cb))
}

func VerifyCallback(accessKey, secretKey string, cb domain.PaymentCallback) bool {
	return Verify(secretKey, cb.Signature, CallbackFields(accessKey, cb))
}
