package envparser

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// CredentialsFor extracts the variables a provider owns from a staged
// variable set, for building a commit record.
func CredentialsFor(serviceName string, vars *orderedmap.OrderedMap[string, string]) map[string]string {
	prefixes := Prefixes(serviceName)

	creds := map[string]string{}

	for pair := vars.Oldest(); pair != nil; pair = pair.Next() {
		for _, prefix := range prefixes {
			if strings.HasPrefix(strings.ToUpper(pair.Key), prefix) {
				creds[pair.Key] = pair.Value
				break
			}
		}
	}

	return creds
}

// Required credential variables per provider, checked before commit
var requiredCredentials = map[string][]string{
	"razorpay": {"RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET"},
	"paypal":   {"PAYPAL_CLIENT_ID", "PAYPAL_CLIENT_SECRET"},
	"stripe":   {"STRIPE_SECRET_KEY"},
	"twilio":   {"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN"},
	"aws_s3":   {"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_S3_BUCKET"},
}

// ValidateCredentials checks that all required variables for a provider are
// present and non-empty. Returns a per-variable error map, empty on success.
func ValidateCredentials(serviceName string, creds map[string]string) map[string]string {
	errs := map[string]string{}

	for _, key := range requiredCredentials[serviceName] {
		if creds[key] == "" {
			errs[key] = "Required"
		}
	}

	return errs
}

// Typed view of the opaque metadata map a DetectedService carries
type Metadata struct {
	SubscriptionPlans  []SubscriptionPlan  `mapstructure:"subscription_plans"`
	PaymentLinkConfigs []PaymentLinkConfig `mapstructure:"payment_link_configs"`
	PayoutAccounts     []PayoutAccount     `mapstructure:"payout_accounts"`
	WebhookURLs        []string            `mapstructure:"webhook_urls"`
}

// DecodeMetadata maps a loose metadata map (as carried over the wire) back
// into its typed form
func DecodeMetadata(m map[string]any) (*Metadata, error) {
	var md Metadata

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &md,
		TagName: "mapstructure",
	})

	if err != nil {
		return nil, err
	}

	if err := dec.Decode(m); err != nil {
		return nil, err
	}

	return &md, nil
}
