// Package credcheck performs a cheap live call against a provider to confirm
// that uploaded credentials actually work before they are committed.
package credcheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"go.uber.org/zap"
)

var ErrBadCredentials = errors.New("provider rejected the supplied credentials")

type Checker struct {
	Logger *zap.Logger

	// UseSandbox routes paypal verification at the sandbox API base
	UseSandbox bool
}

// Verify dispatches on service name. Providers without a verifier pass
// through unchecked, the gateway is the final arbiter for those.
func (c *Checker) Verify(ctx context.Context, serviceName string, creds map[string]string) error {
	switch serviceName {
	case "paypal":
		return c.verifyPaypal(ctx, creds)
	case "stripe":
		return c.verifyStripe(ctx, creds)
	default:
		return nil
	}
}

func (c *Checker) verifyPaypal(ctx context.Context, creds map[string]string) error {
	apiBase := paypal.APIBaseLive

	if c.UseSandbox {
		apiBase = paypal.APIBaseSandBox
	}

	pc, err := paypal.NewClient(creds["PAYPAL_CLIENT_ID"], creds["PAYPAL_CLIENT_SECRET"], apiBase)

	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadCredentials, err)
	}

	_, err = pc.GetAccessToken(ctx)

	if err != nil {
		c.Logger.Warn("Paypal token exchange failed", zap.Error(err))
		return fmt.Errorf("%w: paypal token exchange failed", ErrBadCredentials)
	}

	return nil
}

func (c *Checker) verifyStripe(ctx context.Context, creds map[string]string) error {
	sc := &client.API{}
	sc.Init(creds["STRIPE_SECRET_KEY"], nil)

	_, err := sc.Balance.Get(&stripe.BalanceParams{
		Params: stripe.Params{Context: ctx},
	})

	if err != nil {
		c.Logger.Warn("Stripe balance probe failed", zap.Error(err))
		return fmt.Errorf("%w: stripe rejected the secret key", ErrBadCredentials)
	}

	return nil
}
