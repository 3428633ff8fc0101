package vnpay

import (
	"crypto/hmac"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrSignatureMismatch = errors.New("vnpay signature mismatch")
	ErrMalformedCallback = errors.New("malformed vnpay callback")
)

// Callback is a verified return or IPN query.
type Callback struct {
	OrderID           string
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	AmountMinor       int64
	BankCode          string
	PayDate           string
}

// Success reports a paid transaction. vnp_TransactionStatus is absent on
// some return redirects, so only a present value is checked.
func (cb Callback) Success() bool {
	if cb.ResponseCode != ResponseSuccess {
		return false
	}
	return cb.TransactionStatus == "" || cb.TransactionStatus == ResponseSuccess
}

func (c *Client) VerifyCallback(q url.Values) (Callback, error) {
	got := strings.ToLower(q.Get(paramSecureHash))
	if got == "" {
		return Callback{}, ErrSignatureMismatch
	}
	want := Sign(q, c.cfg.HashSecret)
	if !hmac.Equal([]byte(got), []byte(want)) {
		return Callback{}, ErrSignatureMismatch
	}

	cb := Callback{
		OrderID:           q.Get("vnp_TxnRef"),
		ResponseCode:      q.Get("vnp_ResponseCode"),
		TransactionStatus: q.Get("vnp_TransactionStatus"),
		TransactionNo:     q.Get("vnp_TransactionNo"),
		BankCode:          q.Get("vnp_BankCode"),
		PayDate:           q.Get("vnp_PayDate"),
	}
	if cb.OrderID == "" || cb.ResponseCode == "" || q.Get("vnp_TmnCode") != c.cfg.TmnCode {
		return Callback{}, ErrMalformedCallback
	}
	amount, err := strconv.ParseInt(q.Get("vnp_Amount"), 10, 64)
	if err != nil {
		return Callback{}, ErrMalformedCallback
	}
	cb.AmountMinor = amount
	return cb, nil
}
