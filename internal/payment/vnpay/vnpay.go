// Package vnpay builds signed VNPay payment URLs and verifies the signed
// query strings VNPay sends back on the return redirect and the IPN call.
package vnpay

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	Version         = "2.1.0"
	CommandPay      = "pay"
	CurrencyVND     = "VND"
	OrderTypeOther  = "other"
	DefaultLocale   = "vn"
	DefaultExpire   = 15 * time.Minute
	ResponseSuccess = "00"

	dateLayout = "20060102150405"
	timezone   = "Asia/Ho_Chi_Minh"
)

var ErrInvalidRequest = errors.New("invalid payment request")

type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	Expire     time.Duration
}

type Client struct {
	cfg Config
	loc *time.Location
	now func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.TmnCode == "" || cfg.HashSecret == "" {
		return nil, errors.New("vnpay: tmn code and hash secret are required")
	}
	if _, err := url.Parse(cfg.PayURL); err != nil || cfg.PayURL == "" {
		return nil, fmt.Errorf("vnpay: invalid pay url %q", cfg.PayURL)
	}
	if cfg.Expire <= 0 {
		cfg.Expire = DefaultExpire
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		// hosts without tzdata; Vietnam has no DST
		loc = time.FixedZone("ICT", 7*60*60)
	}
	return &Client{cfg: cfg, loc: loc, now: time.Now}, nil
}

// PaymentRequest describes one payment attempt. OrderID becomes vnp_TxnRef
// and is the only correlation token VNPay echoes back.
type PaymentRequest struct {
	OrderID   string
	Amount    decimal.Decimal
	OrderInfo string
	ClientIP  string
	BankCode  string
	Locale    string
}

func (c *Client) PaymentURL(req PaymentRequest) (string, error) {
	if req.OrderID == "" {
		return "", fmt.Errorf("%w: missing order id", ErrInvalidRequest)
	}
	if !req.Amount.IsPositive() {
		return "", fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}

	created := c.now().In(c.loc)
	info := StripDiacritics(req.OrderInfo)
	if info == "" {
		info = "Thanh toan don hang " + req.OrderID
	}

	v := url.Values{}
	v.Set("vnp_Version", Version)
	v.Set("vnp_Command", CommandPay)
	v.Set("vnp_TmnCode", c.cfg.TmnCode)
	v.Set("vnp_Amount", strconv.FormatInt(MinorUnits(req.Amount), 10))
	v.Set("vnp_CreateDate", created.Format(dateLayout))
	v.Set("vnp_CurrCode", CurrencyVND)
	v.Set("vnp_IpAddr", normalizeIP(req.ClientIP))
	v.Set("vnp_Locale", normalizeLocale(req.Locale))
	v.Set("vnp_OrderInfo", info)
	v.Set("vnp_OrderType", OrderTypeOther)
	v.Set("vnp_ReturnUrl", c.cfg.ReturnURL)
	v.Set("vnp_TxnRef", req.OrderID)
	v.Set("vnp_ExpireDate", created.Add(c.cfg.Expire).Format(dateLayout))
	if req.BankCode != "" {
		v.Set("vnp_BankCode", req.BankCode)
	}

	canonical := Canonicalize(v)
	return c.cfg.PayURL + "?" + canonical + "&vnp_SecureHash=" + hmacHex(canonical, c.cfg.HashSecret), nil
}

// MinorUnits converts a VND amount to the x100 integer VNPay expects.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// StripDiacritics folds Vietnamese text to plain ASCII letters.
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.NewReplacer("đ", "d", "Đ", "D").Replace(out)
	return strings.TrimSpace(out)
}

func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	parsed := net.ParseIP(ip)
	switch {
	case parsed == nil:
		return "127.0.0.1"
	case parsed.IsLoopback():
		return "127.0.0.1"
	case parsed.To4() != nil:
		return parsed.To4().String()
	default:
		return ip
	}
}

func normalizeLocale(l string) string {
	if strings.EqualFold(l, "en") {
		return "en"
	}
	return DefaultLocale
}
