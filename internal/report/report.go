// Package report aggregates a batch's analysis results into a single
// formatted summary for delivery.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dr4g00n/TG-monitor/internal/analysis"
)

// Summary is the per-cycle report. Built once per flush, immutable,
// discarded after delivery.
type Summary struct {
	ID            string
	GeneratedAt   time.Time
	BatchSize     int
	Results       []analysis.Result
	FormattedText string
}

// TokenOverview groups results that mention the same token.
type TokenOverview struct {
	Name           string
	Contract       string
	Mentions       int
	Recommendation string
	AvgConfidence  float64
	FirstSeen      int64
	LastSeen       int64
}

// Build assembles the summary for one cycle. Results keep their
// analysis order; formatting sorts its own copy. An empty result set
// still yields a report so callers can decide whether to deliver it.
func Build(batchSize int, results []analysis.Result) Summary {
	s := Summary{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now(),
		BatchSize:   batchSize,
		Results:     results,
	}
	s.FormattedText = format(s)
	return s
}

// Empty reports whether the cycle produced no relevant results.
func (s Summary) Empty() bool {
	return len(s.Results) == 0
}

func format(s Summary) string {
	var sb strings.Builder
	sb.WriteString("📈 *Token Monitor Report*\n\n")

	if s.Empty() {
		sb.WriteString("No relevant messages found this cycle.\n")
		sb.WriteString(fmt.Sprintf("\n⏰ Generated: %s", s.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("📊 %d of %d messages relevant\n\n", len(s.Results), s.BatchSize))

	if overviews := GroupTokens(s.Results); len(overviews) > 0 {
		sb.WriteString("*Tokens mentioned*\n")
		for _, t := range overviews {
			sb.WriteString(fmt.Sprintf("• %s — %dx, %s, avg confidence %.0f%%\n",
				t.Name, t.Mentions, displayRecommendation(t.Recommendation), t.AvgConfidence*100))
		}
		sb.WriteString("\n")
	}

	// Most urgent findings first; analysis order breaks ties.
	ordered := make([]analysis.Result, len(s.Results))
	copy(ordered, s.Results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Urgency > ordered[j].Urgency
	})

	for i, res := range ordered {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, formatResult(res)))
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("⏰ Generated: %s", s.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
	return sb.String()
}

func formatResult(res analysis.Result) string {
	var sb strings.Builder

	if res.TokenName != "" {
		sb.WriteString(fmt.Sprintf("*Token*: %s\n", res.TokenName))
	}
	if res.ContractAddress != "" {
		sb.WriteString(fmt.Sprintf("*Contract*: `%s`\n", res.ContractAddress))
	}
	sb.WriteString(fmt.Sprintf("*Action*: %s\n", displayRecommendation(res.Recommendation)))
	if res.Reason != "" {
		sb.WriteString(fmt.Sprintf("*Reason*: %s\n", strings.TrimSpace(res.Reason)))
	}
	sb.WriteString(fmt.Sprintf("*Confidence*: %.1f%% | *Urgency*: %d/10", res.Confidence*100, res.Urgency))
	return sb.String()
}

func displayRecommendation(rec string) string {
	switch rec {
	case analysis.RecommendBuy:
		return "🟢 buy"
	case analysis.RecommendSell:
		return "🔴 sell"
	case analysis.RecommendHold:
		return "🟡 hold"
	}
	return "⚪ watch"
}

// GroupTokens folds results into per-token overviews, most mentioned
// first. Results without a token name are left out.
func GroupTokens(results []analysis.Result) []TokenOverview {
	byName := make(map[string]*TokenOverview)
	order := make([]string, 0)
	recommendations := make(map[string]map[string]int)

	for _, res := range results {
		if res.TokenName == "" {
			continue
		}
		t, ok := byName[res.TokenName]
		if !ok {
			t = &TokenOverview{
				Name:      res.TokenName,
				Contract:  res.ContractAddress,
				FirstSeen: res.AnalyzedAt,
				LastSeen:  res.AnalyzedAt,
			}
			byName[res.TokenName] = t
			order = append(order, res.TokenName)
			recommendations[res.TokenName] = make(map[string]int)
		}
		t.Mentions++
		t.AvgConfidence += res.Confidence
		if res.AnalyzedAt < t.FirstSeen {
			t.FirstSeen = res.AnalyzedAt
		}
		if res.AnalyzedAt > t.LastSeen {
			t.LastSeen = res.AnalyzedAt
		}
		if t.Contract == "" {
			t.Contract = res.ContractAddress
		}
		if res.Recommendation != "" {
			recommendations[res.TokenName][res.Recommendation]++
		}
	}

	out := make([]TokenOverview, 0, len(byName))
	for _, name := range order {
		t := byName[name]
		t.AvgConfidence /= float64(t.Mentions)
		t.Recommendation = mostCommon(recommendations[name])
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Mentions > out[j].Mentions
	})
	return out
}

func mostCommon(counts map[string]int) string {
	best, bestCount := "", 0
	for rec, n := range counts {
		if n > bestCount || (n == bestCount && rec < best) {
			best, bestCount = rec, n
		}
	}
	return best
}
