// Turns raw env-file text into typed, feature-tagged service descriptors.
// Pure classification, no I/O: the same bytes always produce the same
// ordered detection list.
package envparser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"onerouter/types"

	mapset "github.com/deckarep/golang-set/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fixed byte ceiling for uploaded env files
const MaxFileSize = 1 << 20

// Validation rule identifiers surfaced in ValidationError
const (
	RuleExtension = "extension"
	RuleSize      = "size"
)

// A bad upload: wrong extension, oversized file or unparseable content.
// The Rule field identifies which validation tripped so the caller can render
// an actionable message instead of a generic failure.
type ValidationError struct {
	Rule    string
	Message string
	Context map[string]string
}

func (v *ValidationError) Error() string {
	return "invalid env file (" + v.Rule + "): " + v.Message
}

// Returned when a file parses cleanly but matches no provider at all
var ErrNoServicesDetected = errors.New("no recognized service credentials were detected in the file")

type Result struct {
	// Parsed variables in file order, duplicates collapsed to their last
	// occurrence
	Vars *orderedmap.OrderedMap[string, string]

	// Detected services ordered by the static provider table
	Detected []types.DetectedService

	// Advisory per-line grammar problems; never fatal on their own
	SyntaxErrors map[string]string
}

var (
	validKeyRegex      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	subscriptionPlanRx = rx(`.*SUBSCRIPTION.*PLAN.*`)
	paymentLinkRx      = rx(`.*PAYMENT.*LINK.*`)
	payoutAccountRx    = rx(`.*PAYOUT.*ACCOUNT.*`)
	webhookURLRx       = rx(`.*WEBHOOK.*URL.*`)

	titleCaser = cases.Title(language.English)
)

// Parse validates the upload, parses the env grammar and classifies the
// variables against the provider table.
func Parse(filename string, content []byte) (*Result, error) {
	if !strings.HasSuffix(filename, ".env") && !strings.HasSuffix(filename, ".txt") {
		return nil, &ValidationError{
			Rule:    RuleExtension,
			Message: "only .env or .txt files are allowed",
			Context: map[string]string{"filename": filename},
		}
	}

	if len(content) > MaxFileSize {
		return nil, &ValidationError{
			Rule:    RuleSize,
			Message: "file too large, maximum size is " + strconv.Itoa(MaxFileSize) + " bytes",
			Context: map[string]string{"size": strconv.Itoa(len(content))},
		}
	}

	vars := parseContent(string(content))

	detected := classify(vars)

	if len(detected) == 0 {
		return nil, ErrNoServicesDetected
	}

	return &Result{
		Vars: vars,
		// Malformed lines are skipped, not fatal; the per-line detail is
		// still surfaced so the review UI can flag them
		SyntaxErrors: ValidateSyntax(string(content)),
		Detected:     detected,
	}, nil
}

// ValidateSyntax reports per-line grammar errors without classifying anything
func ValidateSyntax(content string) map[string]string {
	errs := map[string]string{}

	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")

		if !found {
			errs["line_"+strconv.Itoa(i+1)] = "missing '=' separator"
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if !validKeyRegex.MatchString(key) {
			errs["line_"+strconv.Itoa(i+1)] = "invalid key format: " + key
			continue
		}

		if (strings.HasPrefix(value, `"`) && !strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, `'`) && !strings.HasSuffix(value, `'`)) {
			errs["line_"+strconv.Itoa(i+1)] = "unclosed quote"
		}
	}

	return errs
}

func parseContent(content string) *orderedmap.OrderedMap[string, string] {
	vars := orderedmap.New[string, string]()

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")

		if !found {
			// Malformed lines are skipped, not fatal
			continue
		}

		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))

		// Duplicates collapse to their last occurrence, so reinsert at the end
		if _, ok := vars.Get(key); ok {
			vars.Delete(key)
		}

		vars.Set(key, value)
	}

	return vars
}

// stripQuotes removes a single layer of matching surrounding quotes
func stripQuotes(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}

	return v
}

func classify(vars *orderedmap.OrderedMap[string, string]) []types.DetectedService {
	var detected []types.DetectedService

	for _, p := range providerTable {
		svc, ok := detectProvider(p, vars)

		if ok {
			detected = append(detected, svc)
		}
	}

	return detected
}

func detectProvider(p provider, vars *orderedmap.OrderedMap[string, string]) (types.DetectedService, bool) {
	matched := mapset.NewThreadUnsafeSet[string]()

	// Keys are collected in file order so the descriptor mirrors the upload
	var keys []string

	for pair := vars.Oldest(); pair != nil; pair = pair.Next() {
		if matchesProvider(p, pair.Key) && !matched.Contains(pair.Key) {
			matched.Add(pair.Key)
			keys = append(keys, pair.Key)
		}
	}

	if !anyCredentialMatch(p, vars) {
		return types.DetectedService{}, false
	}

	return types.DetectedService{
		Name:     p.Name,
		Status:   p.Status,
		Keys:     keys,
		Features: detectFeatures(p, vars),
		Metadata: extractMetadata(p, vars),
	}, true
}

func matchesProvider(p provider, key string) bool {
	for _, c := range p.Credentials {
		if c.MatchString(key) {
			return true
		}
	}

	for _, f := range p.Features {
		for _, req := range f.Required {
			if strings.EqualFold(req, key) {
				return true
			}
		}

		for _, opt := range f.Optional {
			if opt.MatchString(key) {
				return true
			}
		}
	}

	return false
}

func anyCredentialMatch(p provider, vars *orderedmap.OrderedMap[string, string]) bool {
	for _, c := range p.Credentials {
		for pair := vars.Oldest(); pair != nil; pair = pair.Next() {
			if c.MatchString(pair.Key) {
				return true
			}
		}
	}

	return false
}

// detectFeatures computes capability tags in rule order: all Required keys
// present, or at least one Optional pattern matched
func detectFeatures(p provider, vars *orderedmap.OrderedMap[string, string]) []string {
	present := mapset.NewThreadUnsafeSet[string]()

	for pair := vars.Oldest(); pair != nil; pair = pair.Next() {
		present.Add(strings.ToUpper(pair.Key))
	}

	var features []string

	for _, rule := range p.Features {
		on := len(rule.Required) > 0

		for _, req := range rule.Required {
			if !present.Contains(strings.ToUpper(req)) {
				on = false
				break
			}
		}

		if !on {
			for _, opt := range rule.Optional {
				for pair := vars.Oldest(); pair != nil; pair = pair.Next() {
					if opt.MatchString(pair.Key) {
						on = true
						break
					}
				}

				if on {
					break
				}
			}
		}

		if on {
			features = append(features, rule.Name)
		}
	}

	return features
}

type SubscriptionPlan struct {
	EnvKey string `json:"env_key" mapstructure:"env_key"`
	PlanID string `json:"plan_id" mapstructure:"plan_id"`
	Name   string `json:"name" mapstructure:"name"`
}

type PaymentLinkConfig struct {
	EnvKey string `json:"env_key" mapstructure:"env_key"`
	Value  string `json:"value" mapstructure:"value"`
}

type PayoutAccount struct {
	EnvKey        string `json:"env_key" mapstructure:"env_key"`
	AccountNumber string `json:"account_number" mapstructure:"account_number"`
}

// extractMetadata pulls plan ids, payment link configs, payout accounts and
// webhook URLs out of the variables a provider owns. The result is carried
// through to commit unchanged.
func extractMetadata(p provider, vars *orderedmap.OrderedMap[string, string]) map[string]any {
	var (
		plans    []SubscriptionPlan
		links    []PaymentLinkConfig
		payouts  []PayoutAccount
		webhooks []string
	)

	for pair := vars.Oldest(); pair != nil; pair = pair.Next() {
		if !ownedByProvider(p, pair.Key) {
			continue
		}

		switch {
		case subscriptionPlanRx.MatchString(pair.Key):
			plans = append(plans, SubscriptionPlan{
				EnvKey: pair.Key,
				PlanID: pair.Value,
				Name:   prettifyPlanName(pair.Key),
			})
		case paymentLinkRx.MatchString(pair.Key):
			links = append(links, PaymentLinkConfig{
				EnvKey: pair.Key,
				Value:  pair.Value,
			})
		case payoutAccountRx.MatchString(pair.Key):
			payouts = append(payouts, PayoutAccount{
				EnvKey:        pair.Key,
				AccountNumber: pair.Value,
			})
		case webhookURLRx.MatchString(pair.Key):
			webhooks = append(webhooks, pair.Value)
		}
	}

	metadata := map[string]any{}

	if len(plans) > 0 {
		metadata["subscription_plans"] = plans
	}

	if len(links) > 0 {
		metadata["payment_link_configs"] = links
	}

	if len(payouts) > 0 {
		metadata["payout_accounts"] = payouts
	}

	if len(webhooks) > 0 {
		metadata["webhook_urls"] = webhooks
	}

	return metadata
}

func ownedByProvider(p provider, key string) bool {
	upper := strings.ToUpper(key)

	for _, prefix := range p.Prefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}

	return false
}

// prettifyPlanName converts RAZORPAY_SUBSCRIPTION_PLAN_BASIC to "Basic Plan"
func prettifyPlanName(envKey string) string {
	parts := strings.Split(envKey, "_")

	for i, part := range parts {
		if strings.EqualFold(part, "PLAN") {
			rest := parts[i+1:]

			if len(rest) == 0 {
				return "Default Plan"
			}

			for j, word := range rest {
				rest[j] = titleCaser.String(strings.ToLower(word))
			}

			return fmt.Sprintf("%s Plan", strings.Join(rest, " "))
		}
	}

	return envKey
}

func toUpperSnake(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
}
