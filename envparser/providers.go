package envparser

import (
	"regexp"

	"onerouter/types"
)

// A capability tag granted by the presence of certain keys. All Required keys
// must be present for the tag to apply; any single Optional pattern match is
// enough on its own.
type featureRule struct {
	Name     string
	Required []string
	Optional []*regexp.Regexp
}

type provider struct {
	Name   string
	Status types.ServiceStatus

	// Credential variable patterns. A provider counts as detected when at
	// least one of these matches.
	Credentials []*regexp.Regexp

	Features []featureRule

	// Env var prefixes this provider owns, used for metadata extraction and
	// for pulling credentials out of a staged session at commit time.
	Prefixes []string
}

func rx(pattern string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + pattern)
}

// The static provider table. Output ordering of detected services follows
// this table, not discovery order, so parses are deterministic.
var providerTable = []provider{
	{
		Name:   "razorpay",
		Status: types.ServiceStatusSupported,
		Credentials: []*regexp.Regexp{
			rx(`^RAZORPAY_KEY_ID$`),
			rx(`^RAZORPAY_KEY_SECRET$`),
			rx(`^RAZORPAY_WEBHOOK_SECRET$`),
		},
		Features: []featureRule{
			{Name: "Payments", Required: []string{"RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET"}},
			{Name: "Refunds", Required: []string{"RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET"}},
			{Name: "Webhooks", Required: []string{"RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET"}},
			{Name: "Subscriptions", Optional: []*regexp.Regexp{
				rx(`^RAZORPAY_SUBSCRIPTION_PLAN_.*$`),
				rx(`^RAZORPAY_PLAN_.*$`),
				rx(`^SUBSCRIPTION_PLAN_.*$`),
			}},
			{Name: "PaymentLinks", Optional: []*regexp.Regexp{
				rx(`^RAZORPAY_PAYMENT_LINK_.*$`),
				rx(`^PAYMENT_LINK_.*$`),
			}},
			{Name: "Payouts", Optional: []*regexp.Regexp{
				rx(`^RAZORPAY_PAYOUT_ACCOUNT$`),
				rx(`^RAZORPAY_ACCOUNT_NUMBER$`),
			}},
		},
		Prefixes: []string{"RAZORPAY_", "SUBSCRIPTION_PLAN_", "PAYMENT_LINK_"},
	},
	{
		Name:   "paypal",
		Status: types.ServiceStatusSupported,
		Credentials: []*regexp.Regexp{
			rx(`^PAYPAL_CLIENT_ID$`),
			rx(`^PAYPAL_CLIENT_SECRET$`),
			rx(`^PAYPAL_MODE$`),
		},
		Features: []featureRule{
			{Name: "Payments", Required: []string{"PAYPAL_CLIENT_ID", "PAYPAL_CLIENT_SECRET"}},
			{Name: "Subscriptions", Optional: []*regexp.Regexp{
				rx(`^PAYPAL_SUBSCRIPTION_PLAN_.*$`),
				rx(`^PAYPAL_PLAN_.*$`),
				rx(`^PAYPAL_BILLING_PLAN_.*$`),
			}},
		},
		Prefixes: []string{"PAYPAL_", "SUBSCRIPTION_PLAN_", "PAYMENT_LINK_"},
	},
	{
		Name:   "stripe",
		Status: types.ServiceStatusSupported,
		Credentials: []*regexp.Regexp{
			rx(`^STRIPE_SECRET_KEY$`),
			rx(`^STRIPE_PUBLISHABLE_KEY$`),
			rx(`^STRIPE_WEBHOOK_SECRET$`),
		},
		Features: []featureRule{
			{Name: "Payments", Required: []string{"STRIPE_SECRET_KEY"}},
			{Name: "Webhooks", Required: []string{"STRIPE_WEBHOOK_SECRET"}},
			{Name: "Subscriptions", Optional: []*regexp.Regexp{
				rx(`^STRIPE_PRICE_.*$`),
				rx(`^STRIPE_PLAN_.*$`),
			}},
		},
		Prefixes: []string{"STRIPE_"},
	},
	{
		Name:   "twilio",
		Status: types.ServiceStatusUnsupported,
		Credentials: []*regexp.Regexp{
			rx(`^TWILIO_ACCOUNT_SID$`),
			rx(`^TWILIO_AUTH_TOKEN$`),
			rx(`^TWILIO_PHONE_NUMBER$`),
		},
		Features: []featureRule{
			{Name: "SMS", Required: []string{"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN"}},
			{Name: "Calls", Required: []string{"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN"}},
			{Name: "Verification", Required: []string{"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN"}},
		},
		Prefixes: []string{"TWILIO_"},
	},
	{
		Name:   "aws_s3",
		Status: types.ServiceStatusUnsupported,
		Credentials: []*regexp.Regexp{
			rx(`^AWS_ACCESS_KEY_ID$`),
			rx(`^AWS_SECRET_ACCESS_KEY$`),
			rx(`^AWS_REGION$`),
			rx(`^AWS_S3_BUCKET$`),
		},
		Features: []featureRule{
			{Name: "Storage", Required: []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_S3_BUCKET"}},
			{Name: "FileUpload", Required: []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_S3_BUCKET"}},
			{Name: "CDN", Required: []string{"AWS_S3_BUCKET", "AWS_REGION"}},
		},
		Prefixes: []string{"AWS_"},
	},
	{
		Name:   "sendgrid",
		Status: types.ServiceStatusUnsupported,
		Credentials: []*regexp.Regexp{
			rx(`^SENDGRID_API_KEY$`),
		},
		Features: []featureRule{
			{Name: "Email", Required: []string{"SENDGRID_API_KEY"}},
		},
		Prefixes: []string{"SENDGRID_"},
	},
}

// Prefixes returns the env var prefixes owned by a provider, falling back to
// NAME_ for providers not in the table.
func Prefixes(serviceName string) []string {
	for _, p := range providerTable {
		if p.Name == serviceName {
			return p.Prefixes
		}
	}

	return []string{toUpperSnake(serviceName) + "_"}
}

// Supported returns whether the provider can actually be committed through
// the gateway.
func Supported(serviceName string) bool {
	for _, p := range providerTable {
		if p.Name == serviceName {
			return p.Status == types.ServiceStatusSupported
		}
	}

	return false
}
