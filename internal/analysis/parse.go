package analysis

import (
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var contractRe = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)

// relevanceKeywords drive the heuristic fallback when a backend does
// not answer with the requested JSON shape.
var relevanceKeywords = []string{
	"token", "contract", "address", "buy", "sell", "hold",
	"launch", "pool", "liquidity", "chart", "break", "pump",
	"presale", "airdrop", "mint",
}

// parseResponse turns raw model output into a Result. Well-formed JSON
// is taken at face value (clamped into valid ranges); anything else
// falls back to keyword heuristics over the original message, the same
// degradation path the backends' prompts try to avoid.
func parseResponse(content, originalMessage, source string) Result {
	now := time.Now().Unix()
	body := stripCodeFence(content)

	if parsed := gjson.Parse(body); parsed.Get("is_relevant").Exists() {
		return Result{
			IsRelevant:      parsed.Get("is_relevant").Bool(),
			TokenName:       parsed.Get("token_name").String(),
			ContractAddress: parsed.Get("contract_address").String(),
			Recommendation:  normalizeRecommendation(parsed.Get("recommendation").String()),
			Reason:          strings.TrimSpace(parsed.Get("reason").String()),
			Confidence:      clampFloat(parsed.Get("confidence").Float(), 0, 1),
			Urgency:         clampInt(int(parsed.Get("urgency").Int()), 0, 10),
			Source:          source,
			AnalyzedAt:      now,
		}
	}

	relevant := looksTokenRelated(originalMessage)
	res := Result{
		IsRelevant: relevant,
		Source:     source,
		AnalyzedAt: now,
	}
	if relevant {
		res.TokenName = extractTokenName(originalMessage)
		res.ContractAddress = extractContractAddress(originalMessage)
		res.Recommendation = recommendationFromText(content)
		res.Reason = strings.TrimSpace(content)
		res.Confidence = 0.5
		res.Urgency = 5
	}
	return res
}

// stripCodeFence unwraps ```json ... ``` fences some models insist on.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 && !strings.Contains(s[:nl], "{") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func looksTokenRelated(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range relevanceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return contractRe.MatchString(message)
}

// extractTokenName guesses a ticker: a short all-caps word.
func extractTokenName(message string) string {
	for _, word := range strings.Fields(message) {
		word = strings.TrimPrefix(word, "$")
		if len(word) < 2 || len(word) > 10 {
			continue
		}
		allCaps := true
		for _, r := range word {
			if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
				allCaps = false
				break
			}
		}
		if allCaps {
			return word
		}
	}
	return ""
}

func extractContractAddress(message string) string {
	return contractRe.FindString(message)
}

func recommendationFromText(content string) string {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "buy"):
		return RecommendBuy
	case strings.Contains(lower, "sell"):
		return RecommendSell
	case strings.Contains(lower, "hold"):
		return RecommendHold
	}
	return ""
}

func normalizeRecommendation(rec string) string {
	switch strings.ToLower(strings.TrimSpace(rec)) {
	case RecommendBuy, "买入":
		return RecommendBuy
	case RecommendSell, "卖出":
		return RecommendSell
	case RecommendHold, "持有":
		return RecommendHold
	}
	return ""
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
