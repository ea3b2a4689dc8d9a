package analysis

import "strings"

// systemPrompt instructs every backend to answer with the same JSON
// shape, so one parser covers all providers.
const systemPrompt = `You are a professional crypto trading-signal analyst.

Your task is to analyze a chat message and decide whether it discusses
meme token trading information.

If it does, extract the details and answer with JSON only:
{
  "is_relevant": true,
  "token_name": "token name if present",
  "contract_address": "contract address (ETH/BSC format: 0x...)",
  "recommendation": "buy" | "sell" | "hold",
  "reason": "short rationale",
  "confidence": 0.85,
  "urgency": 7
}

If it does not, answer:
{"is_relevant": false}

Notes:
- confidence is a float between 0.0 and 1.0
- urgency is an integer between 1 and 10 (1 = not urgent, 10 = act now)
- answer with JSON only, no surrounding text`

// buildPrompt substitutes the message into the configured template.
// The template uses "{}" as the placeholder; a template without one
// gets the message appended.
func buildPrompt(template, message string) string {
	if strings.Contains(template, "{}") {
		return strings.Replace(template, "{}", message, 1)
	}
	return template + "\n\n" + message
}
