// Package launchconfig loads and validates token launch parameters.
// Deployment itself happens elsewhere; this only rejects bad payloads early.
package launchconfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Allowed enumerated values.
//
//nolint:gochecknoglobals // fixed tables
var (
	FeeTiers        = []string{"1%", "2%", "3%"}
	StakingRewards  = []string{"100%", "90%", "80%", "70%", "60%", "50%", "40%"}
	TreasuryFunding = []string{"10%", "20%", "30%", "40%", "50%", "60%", "70%", "80%", "90%"}
	PairedTokens    = []string{"ETH", "BNB", "USDC", "USDT", "USD1"}
	LockupPeriods   = []string{"30 days", "90 days", "180 days"}
	VestingPeriods  = []string{"instant", "30 days", "180 days"}
	VaultPercents   = []string{"5%", "10%", "15%", "20%", "25%", "30%"}
	RewardTokens    = []string{"Both", "Paired", "Token"}

	addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	hundred        = decimal.NewFromInt(100)
)

// Launch is a token launch payload.
type Launch struct {
	Name            string    `yaml:"name"`
	Symbol          string    `yaml:"symbol"`
	Image           string    `yaml:"image"`
	Metadata        *Metadata `yaml:"metadata,omitempty"`
	PairedToken     string    `yaml:"paired_token"`
	Fees            Fees      `yaml:"fees"`
	StakingReward   string    `yaml:"staking_reward"`
	TreasuryFunding string    `yaml:"treasury_funding"`
	DevBuy          string    `yaml:"dev_buy,omitempty"`
	Rewards         []Reward  `yaml:"rewards,omitempty"`
	Vault           *Vault    `yaml:"vault,omitempty"`
	Airdrop         []Airdrop `yaml:"airdrop,omitempty"`
}

// Metadata is the token's social metadata.
type Metadata struct {
	Description  string `yaml:"description"`
	XLink        string `yaml:"x_link"`
	WebsiteLink  string `yaml:"website_link"`
	TelegramLink string `yaml:"telegram_link"`
}

// Fees selects the pool fee model.
type Fees struct {
	Type    string `yaml:"type"`
	FeeTier string `yaml:"fee_tier"`
}

// Reward routes a share of trading fees to a recipient.
type Reward struct {
	Admin      string  `yaml:"admin"`
	Recipient  string  `yaml:"recipient"`
	Percentage float64 `yaml:"percentage"`
	Token      string  `yaml:"token"`
}

// Vault locks a share of supply for a recipient.
type Vault struct {
	Percentage    string `yaml:"percentage"`
	Recipient     string `yaml:"recipient"`
	LockupPeriod  string `yaml:"lockup_period"`
	VestingPeriod string `yaml:"vesting_period"`
}

// Airdrop allocates a share of supply to a recipient.
type Airdrop struct {
	Recipient  string  `yaml:"recipient"`
	Percentage float64 `yaml:"percentage"`
}

// ValidationError lists every problem found in a launch payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid launch config: %s", strings.Join(e.Problems, "; "))
}

// Load reads, parses and validates a YAML launch file. Warnings are returned
// alongside a valid config.
func Load(path string) (launch *Launch, warnings []string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read launch config: %w", err)
	}

	launch, err = Parse(data)
	if err != nil {
		return nil, nil, err
	}

	warnings, err = launch.Validate()
	if err != nil {
		return launch, warnings, err
	}

	return launch, warnings, nil
}

// Parse decodes YAML, rejecting unknown fields.
func Parse(data []byte) (*Launch, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var l Launch
	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("parse launch config: %w", err)
	}

	return &l, nil
}

// Validate checks every field against the allowed values. The error, if
// any, is a *ValidationError.
func (l *Launch) Validate() (warnings []string, err error) {
	var problems []string
	fail := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(l.Name) == "" {
		fail("name: required")
	}
	if strings.TrimSpace(l.Symbol) == "" {
		fail("symbol: required")
	}
	if strings.TrimSpace(l.Image) == "" {
		fail("image: required")
	}

	if !oneOf(l.PairedToken, PairedTokens) {
		fail("paired_token: %q not in %v", l.PairedToken, PairedTokens)
	}
	if l.Fees.Type != "static" {
		warnings = append(warnings, fmt.Sprintf("fees.type: %q is untested, only \"static\" is", l.Fees.Type))
	}
	if !oneOf(l.Fees.FeeTier, FeeTiers) {
		fail("fees.fee_tier: %q not in %v", l.Fees.FeeTier, FeeTiers)
	}
	if !oneOf(l.StakingReward, StakingRewards) {
		fail("staking_reward: %q not in %v", l.StakingReward, StakingRewards)
	}
	if !oneOf(l.TreasuryFunding, TreasuryFunding) {
		fail("treasury_funding: %q not in %v", l.TreasuryFunding, TreasuryFunding)
	}

	if l.DevBuy != "" {
		d, parseErr := decimal.NewFromString(l.DevBuy)
		if parseErr != nil || d.IsNegative() {
			fail("dev_buy: %q must be a non-negative number", l.DevBuy)
		}
	}

	if len(l.Rewards) > 0 {
		total := decimal.Zero
		for i, r := range l.Rewards {
			if !IsAddress(r.Admin) {
				fail("rewards[%d].admin: invalid address", i)
			}
			if !IsAddress(r.Recipient) {
				fail("rewards[%d].recipient: invalid address", i)
			}
			if r.Percentage < 0 || r.Percentage > 100 {
				fail("rewards[%d].percentage: must be 0-100", i)
			}
			if !oneOf(r.Token, RewardTokens) {
				fail("rewards[%d].token: %q not in %v", i, r.Token, RewardTokens)
			}
			total = total.Add(decimal.NewFromFloat(r.Percentage))
		}

		if staking, ok := percent(l.StakingReward); ok && !staking.Add(total).Equal(hundred) {
			fail("staking_reward (%s%%) + rewards (%s%%) must equal 100%%", staking, total)
		}
	}

	if l.Vault != nil {
		if !oneOf(l.Vault.Percentage, VaultPercents) {
			fail("vault.percentage: %q not in %v", l.Vault.Percentage, VaultPercents)
		}
		if !IsAddress(l.Vault.Recipient) {
			fail("vault.recipient: invalid address")
		}
		if !oneOf(l.Vault.LockupPeriod, LockupPeriods) {
			fail("vault.lockup_period: %q not in %v", l.Vault.LockupPeriod, LockupPeriods)
		}
		if !oneOf(l.Vault.VestingPeriod, VestingPeriods) {
			fail("vault.vesting_period: %q not in %v", l.Vault.VestingPeriod, VestingPeriods)
		}
	}

	seen := make(map[string]struct{}, len(l.Airdrop))
	duplicates := 0
	for i, a := range l.Airdrop {
		if !IsAddress(a.Recipient) {
			fail("airdrop[%d].recipient: %q invalid address", i, a.Recipient)
		}
		if a.Percentage < 0 {
			fail("airdrop[%d].percentage: must not be negative", i)
		}
		key := strings.ToLower(a.Recipient)
		if _, dup := seen[key]; dup {
			duplicates++
		}
		seen[key] = struct{}{}
	}
	if duplicates > 0 {
		warnings = append(warnings, fmt.Sprintf("airdrop: %d duplicate address(es)", duplicates))
	}

	if len(problems) > 0 {
		return warnings, &ValidationError{Problems: problems}
	}
	return warnings, nil
}

// AirdropTotal sums airdrop percentages.
func (l *Launch) AirdropTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range l.Airdrop {
		total = total.Add(decimal.NewFromFloat(a.Percentage))
	}
	return total
}

// Summary renders a short human-readable overview.
func (l *Launch) Summary() []string {
	admin := 0.0
	if len(l.Rewards) > 0 {
		admin = l.Rewards[0].Percentage
	}
	vault := "none"
	if l.Vault != nil {
		vault = fmt.Sprintf("%s (%s lock, %s vest)", l.Vault.Percentage, l.Vault.LockupPeriod, l.Vault.VestingPeriod)
	}
	devBuy := l.DevBuy
	if devBuy == "" {
		devBuy = "none"
	}

	return []string{
		fmt.Sprintf("Token: %s (%s)", l.Name, l.Symbol),
		fmt.Sprintf("Pair: %s/%s", l.Symbol, l.PairedToken),
		fmt.Sprintf("Fee: %s %s", l.Fees.FeeTier, l.Fees.Type),
		fmt.Sprintf("Staking: %s", l.StakingReward),
		fmt.Sprintf("Admin rewards: %g%%", admin),
		fmt.Sprintf("Treasury: %s", l.TreasuryFunding),
		fmt.Sprintf("Vault: %s", vault),
		fmt.Sprintf("Airdrop: %d addresses, %s%% total", len(l.Airdrop), l.AirdropTotal().StringFixed(4)),
		fmt.Sprintf("Dev buy: %s BNB", devBuy),
	}
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// percent parses "80%" into 80.
func percent(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "%"))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// AsValidationError unwraps a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
