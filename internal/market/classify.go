// Package market classifies instrument codes and models trading sessions.
package market

import (
	"strings"

	"github.com/folioapp/folio/internal/models"
)

// kosdaqMembers is the known KOSDAQ membership set. Six-digit codes not
// listed here classify as KOSPI. The set covers the KOSDAQ names the
// tracker has seen; NewClassifier can extend it from config.
var kosdaqMembers = []string{
	"028300", // HLB
	"035900", // JYP Entertainment
	"041510", // SM Entertainment
	"066970", // L&F
	"086520", // EcoPro
	"091700", // Partron
	"112040", // Wemade
	"196170", // Alteogen
	"247540", // EcoPro BM
	"263750", // Pearl Abyss
	"293490", // Kakao Games
	"357780", // Soulbrain
}

// Classifier maps raw instrument codes to market classes. Classification
// is a pure function of the code string and declared currency; it never
// touches the network.
type Classifier struct {
	kosdaq map[string]struct{}
}

// NewClassifier creates a classifier with the built-in KOSDAQ membership
// set plus any extra codes (typically from config).
func NewClassifier(extraKosdaq ...string) *Classifier {
	c := &Classifier{kosdaq: make(map[string]struct{}, len(kosdaqMembers)+len(extraKosdaq))}
	for _, code := range kosdaqMembers {
		c.kosdaq[code] = struct{}{}
	}
	for _, code := range extraKosdaq {
		c.kosdaq[code] = struct{}{}
	}
	return c
}

// Classify returns the market class for a code and declared currency.
// Total: unmatched patterns fall through to the foreign-equity default,
// which carries the most permissive source chain.
func (c *Classifier) Classify(code, currency string) models.MarketClass {
	code = strings.TrimSpace(code)

	switch {
	case len(code) == 6 && isDigits(code):
		if _, ok := c.kosdaq[code]; ok {
			return models.MarketKRKosdaq
		}
		return models.MarketKRKospi
	case len(code) == 9 && strings.HasPrefix(code, "M0") && isDigits(code[2:]):
		return models.MarketMetalFutures
	case len(code) >= 1 && len(code) <= 5 && isUpperLetters(code) && strings.EqualFold(currency, "USD"):
		return models.MarketUSEquity
	default:
		return models.MarketUSEquity
	}
}

// Symbol builds a classified Symbol from a raw code and currency.
func (c *Classifier) Symbol(code, currency string) models.Symbol {
	return models.Symbol{
		Code:     strings.TrimSpace(code),
		Currency: strings.ToUpper(currency),
		Class:    c.Classify(code, currency),
	}
}

// SourceChain returns the ordered providers to try for a market class.
// The resolver walks the chain strictly in order and stops at the first
// success. Naver does not cover metal futures, so that class goes
// straight to Daum.
func SourceChain(class models.MarketClass) []models.SourceName {
	switch class {
	case models.MarketKRKospi, models.MarketKRKosdaq:
		return []models.SourceName{models.SourceNaver, models.SourceDaum}
	case models.MarketMetalFutures:
		return []models.SourceName{models.SourceDaum}
	default:
		return []models.SourceName{models.SourceYahoo}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isUpperLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
