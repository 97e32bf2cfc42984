// Package payment は決済代行サービスでの支払いインテント作成を扱う。
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/nao1215/scholarhub/pkg/logger"
)

var (
	// ErrUpstream は決済代行サービスの呼び出しに失敗したことを表す。
	ErrUpstream = errors.New("決済サービスの呼び出しに失敗しました")
	// ErrNotConfigured は決済代行サービスの秘密鍵が設定されていないことを表す。
	ErrNotConfigured = errors.New("決済サービスが設定されていません")
	// ErrInvalidAmount は金額が支払い可能な範囲にないことを表す。
	ErrInvalidAmount = errors.New("金額が不正です")
)

// Processor は支払いインテントを作成し、クライアントシークレットを返す。
type Processor interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string) (string, error)
}

// MinorUnits は金額を最小通貨単位（セント等）に四捨五入して変換する。
func MinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return int64(math.Round(amount * 100)), nil
}

// Stripe はStripe PaymentIntentsを使ったProcessor。
type Stripe struct {
	api *client.API
}

// NewStripe は秘密鍵を使うStripeクライアントを生成する。
func NewStripe(secretKey string) *Stripe {
	return &Stripe{api: client.New(secretKey, nil)}
}

// CreateIntent はカード払いの支払いインテントを作成する。
func (s *Stripe) CreateIntent(ctx context.Context, amountMinor int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amountMinor),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		logger.Errorf("支払いインテントの作成に失敗: amount=%d, currency=%s: %v", amountMinor, currency, err)
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return pi.ClientSecret, nil
}

// Disabled は秘密鍵が未設定の場合のProcessor。常にErrNotConfiguredを返す。
type Disabled struct{}

// CreateIntent はErrNotConfiguredを返す。
func (Disabled) CreateIntent(context.Context, int64, string) (string, error) {
	return "", ErrNotConfigured
}

// New は秘密鍵が設定されていればStripeを、無ければDisabledを返す。
func New(secretKey string) Processor {
	if secretKey == "" {
		logger.Warningf("STRIPE_SECRET_KEYが未設定のため決済は無効です")
		return Disabled{}
	}
	return NewStripe(secretKey)
}
