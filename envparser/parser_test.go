package envparser

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"onerouter/types"
)

func TestParseRazorpay(t *testing.T) {
	content := []byte("RAZORPAY_KEY_ID=abc\nRAZORPAY_KEY_SECRET=xyz\n")

	res, err := Parse("creds.env", content)

	if err != nil {
		t.Fatal(err)
	}

	if len(res.Detected) != 1 {
		t.Fatalf("expected 1 detected service, got %d", len(res.Detected))
	}

	svc := res.Detected[0]

	if svc.Name != "razorpay" || svc.Status != types.ServiceStatusSupported {
		t.Fatalf("unexpected descriptor: %+v", svc)
	}

	if !reflect.DeepEqual(svc.Keys, []string{"RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET"}) {
		t.Fatalf("unexpected keys: %v", svc.Keys)
	}

	if !reflect.DeepEqual(svc.Features, []string{"Payments", "Refunds", "Webhooks"}) {
		t.Fatalf("unexpected features: %v", svc.Features)
	}
}

func TestParseTwilioUnsupported(t *testing.T) {
	res, err := Parse("creds.env", []byte("TWILIO_ACCOUNT_SID=x\n"))

	if err != nil {
		t.Fatal(err)
	}

	if len(res.Detected) != 1 {
		t.Fatalf("expected 1 detected service, got %d", len(res.Detected))
	}

	svc := res.Detected[0]

	if svc.Name != "twilio" || svc.Status != types.ServiceStatusUnsupported {
		t.Fatalf("unexpected descriptor: %+v", svc)
	}

	// A single SID is not enough for any capability
	if len(svc.Features) != 0 {
		t.Fatalf("unexpected features: %v", svc.Features)
	}
}

func TestParseDeterministic(t *testing.T) {
	content := []byte("PAYPAL_CLIENT_SECRET=s\nRAZORPAY_KEY_ID=a\nPAYPAL_CLIENT_ID=c\nRAZORPAY_KEY_SECRET=b\n")

	first, err := Parse("creds.env", content)

	if err != nil {
		t.Fatal(err)
	}

	second, err := Parse("creds.env", content)

	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Detected, second.Detected) {
		t.Fatalf("parse is not deterministic: %+v vs %+v", first.Detected, second.Detected)
	}

	// Ordering follows the provider table, not discovery order
	if first.Detected[0].Name != "razorpay" || first.Detected[1].Name != "paypal" {
		t.Fatalf("unexpected order: %+v", first.Detected)
	}
}

func TestParseGrammar(t *testing.T) {
	content := []byte("# comment\n\nRAZORPAY_KEY_ID=abc\nthis line has no separator\nRAZORPAY_KEY_SECRET='xyz'\n")

	res, err := Parse("creds.env", content)

	if err != nil {
		t.Fatal(err)
	}

	// Malformed lines are skipped, not fatal, but still reported
	if res.Vars.Len() != 2 {
		t.Fatalf("expected 2 vars, got %d", res.Vars.Len())
	}

	if res.SyntaxErrors["line_4"] == "" {
		t.Fatalf("expected advisory error for line 4, got %v", res.SyntaxErrors)
	}
}

func TestParseDuplicatesCollapse(t *testing.T) {
	content := []byte("RAZORPAY_KEY_ID=\"first\"\nRAZORPAY_KEY_SECRET='xyz'\nRAZORPAY_KEY_ID=second\n")

	res, err := Parse("creds.env", content)

	if err != nil {
		t.Fatal(err)
	}

	v, _ := res.Vars.Get("RAZORPAY_KEY_ID")

	if v != "second" {
		t.Fatalf("expected last-write-wins, got %q", v)
	}

	// The duplicate collapses to its last occurrence, after KEY_SECRET
	keys := res.Detected[0].Keys

	if !reflect.DeepEqual(keys, []string{"RAZORPAY_KEY_SECRET", "RAZORPAY_KEY_ID"}) {
		t.Fatalf("unexpected key order: %v", keys)
	}

	s, _ := res.Vars.Get("RAZORPAY_KEY_SECRET")

	if s != "xyz" {
		t.Fatalf("expected quotes stripped, got %q", s)
	}
}

func TestParseRejectsBadExtension(t *testing.T) {
	_, err := Parse("creds.pdf", []byte("RAZORPAY_KEY_ID=a"))

	var verr *ValidationError

	if !errors.As(err, &verr) || verr.Rule != RuleExtension {
		t.Fatalf("expected extension validation error, got %v", err)
	}
}

func TestParseRejectsOversized(t *testing.T) {
	_, err := Parse("creds.env", bytes.Repeat([]byte("a"), MaxFileSize+1))

	var verr *ValidationError

	if !errors.As(err, &verr) || verr.Rule != RuleSize {
		t.Fatalf("expected size validation error, got %v", err)
	}
}

func TestParseNoServicesDetected(t *testing.T) {
	_, err := Parse("creds.env", []byte("SOME_RANDOM_VAR=1\nANOTHER=2\n"))

	if !errors.Is(err, ErrNoServicesDetected) {
		t.Fatalf("expected ErrNoServicesDetected, got %v", err)
	}
}

func TestValidateSyntax(t *testing.T) {
	errs := ValidateSyntax("GOOD_KEY=1\nno separator here\n9BAD=x\nQ=\"unclosed\n")

	if errs["line_2"] == "" || errs["line_3"] == "" || errs["line_4"] == "" {
		t.Fatalf("expected errors on lines 2-4, got %v", errs)
	}

	if _, ok := errs["line_1"]; ok {
		t.Fatal("line 1 should be valid")
	}
}

func TestSubscriptionPlanMetadata(t *testing.T) {
	content := []byte("RAZORPAY_KEY_ID=a\nRAZORPAY_KEY_SECRET=b\nRAZORPAY_SUBSCRIPTION_PLAN_BASIC_MONTHLY=plan_123\n")

	res, err := Parse("creds.env", content)

	if err != nil {
		t.Fatal(err)
	}

	svc := res.Detected[0]

	md, err := DecodeMetadata(svc.Metadata)

	if err != nil {
		t.Fatal(err)
	}

	if len(md.SubscriptionPlans) != 1 {
		t.Fatalf("expected 1 subscription plan, got %+v", md)
	}

	plan := md.SubscriptionPlans[0]

	if plan.PlanID != "plan_123" || plan.Name != "Basic Monthly Plan" {
		t.Fatalf("unexpected plan: %+v", plan)
	}

	// Plan vars also switch the Subscriptions capability on
	found := false

	for _, f := range svc.Features {
		if f == "Subscriptions" {
			found = true
		}
	}

	if !found {
		t.Fatalf("expected Subscriptions feature, got %v", svc.Features)
	}
}

func TestValidateCredentials(t *testing.T) {
	errs := ValidateCredentials("razorpay", map[string]string{"RAZORPAY_KEY_ID": "a"})

	if errs["RAZORPAY_KEY_SECRET"] != "Required" {
		t.Fatalf("expected missing secret error, got %v", errs)
	}

	errs = ValidateCredentials("paypal", map[string]string{
		"PAYPAL_CLIENT_ID":     "a",
		"PAYPAL_CLIENT_SECRET": "b",
	})

	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}
