package yookassa

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/filmbilling/internal/config"
	"github.com/smallbiznis/filmbilling/internal/gateway/domain"
	"github.com/smallbiznis/filmbilling/internal/gateway/signature"
	"github.com/smallbiznis/filmbilling/pkg/httpclient"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	currency          = "RUB"
	idempotenceHeader = "Idempotence-Key"
)

type Params struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Signer *signature.Signer
	Retry  *config.RetryPolicyHolder `optional:"true"`
}

type Client struct {
	http   *httpclient.Client
	signer *signature.Signer
	log    *zap.Logger
}

func New(p Params) domain.Gateway {
	log := p.Log.Named("yookassa.client")
	return &Client{
		http: httpclient.New(httpclient.Options{
			Name:    "yookassa",
			BaseURL: p.Cfg.Gateway.BaseURL,
			Timeout: time.Duration(p.Cfg.Gateway.TimeoutSec) * time.Second,
			BasicAuth: &httpclient.BasicAuth{
				Username: p.Cfg.Gateway.ShopID,
				Password: p.Cfg.Gateway.SecretKey,
			},
			Backoff: p.Retry.Backoff,
		}, log),
		signer: p.Signer,
		log:    log,
	}
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmationRequest struct {
	Type      string `json:"type"`
	ReturnURL string `json:"return_url"`
}

type paymentRequest struct {
	Capture      bool                `json:"capture"`
	Amount       amount              `json:"amount"`
	Confirmation confirmationRequest `json:"confirmation"`
}

type refundRequest struct {
	Amount    amount `json:"amount"`
	PaymentID string `json:"payment_id"`
}

type paymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Paid         bool   `json:"paid"`
	Confirmation *struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

type refundResponse struct {
	ID                  string `json:"id"`
	Status              string `json:"status"`
	CancellationDetails *struct {
		Reason string `json:"reason"`
	} `json:"cancellation_details"`
}

func (c *Client) Pay(ctx context.Context, value decimal.Decimal, transactionID snowflake.ID, idempotencyKey string) (domain.Payment, error) {
	var resp paymentResponse
	err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/v3/payments",
		Body: paymentRequest{
			Capture: true,
			Amount:  amount{Value: value.StringFixed(2), Currency: currency},
			Confirmation: confirmationRequest{
				Type:      "redirect",
				ReturnURL: c.signer.ReturnURL(transactionID),
			},
		},
		Headers: map[string]string{idempotenceHeader: idempotencyKey},
	}, &resp)
	if err != nil {
		c.log.Warn("create payment failed", zap.String("transaction_id", transactionID.String()), zap.Error(err))
		return domain.Payment{}, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if strings.TrimSpace(resp.ID) == "" {
		return domain.Payment{}, fmt.Errorf("%w: payment without id", domain.ErrUnavailable)
	}

	payment := domain.Payment{ID: resp.ID, Status: domain.Status(resp.Status), Paid: resp.Paid}
	if resp.Confirmation != nil {
		payment.ConfirmationURL = resp.Confirmation.ConfirmationURL
	}
	return payment, nil
}

func (c *Client) GetPayment(ctx context.Context, extID string) (domain.Payment, error) {
	var resp paymentResponse
	err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   "/v3/payments/" + url.PathEscape(extID),
	}, &resp)
	if err != nil {
		c.log.Warn("get payment failed", zap.String("ext_id", extID), zap.Error(err))
		return domain.Payment{}, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if resp.ID != extID {
		c.log.Warn("gateway answered for another payment", zap.String("ext_id", extID), zap.String("got_id", resp.ID))
		return domain.Payment{}, fmt.Errorf("%w: payment id mismatch", domain.ErrUnavailable)
	}
	return domain.Payment{ID: resp.ID, Status: domain.Status(resp.Status), Paid: resp.Paid}, nil
}

func (c *Client) Refund(ctx context.Context, value decimal.Decimal, paymentExtID string, idempotencyKey string) (domain.Refund, error) {
	var resp refundResponse
	err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/v3/refunds",
		Body: refundRequest{
			Amount:    amount{Value: value.StringFixed(2), Currency: currency},
			PaymentID: paymentExtID,
		},
		Headers: map[string]string{idempotenceHeader: idempotencyKey},
	}, &resp)
	if err != nil {
		c.log.Warn("create refund failed", zap.String("payment_ext_id", paymentExtID), zap.Error(err))
		return domain.Refund{}, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	refund := domain.Refund{ID: resp.ID, Status: domain.Status(resp.Status)}
	if resp.CancellationDetails != nil {
		refund.CancellationReason = resp.CancellationDetails.Reason
	}
	return refund, nil
}
