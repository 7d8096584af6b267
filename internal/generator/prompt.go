package generator

import (
	"fmt"
	"strings"

	"oddspress/internal/market"
)

// System prompts set the editorial voice. Analysis articles read like a
// finance blog covering an open market; results articles are post-mortems.

const analysisSystemPrompt = `You are a sharp financial writer creating engaging articles about prediction markets. Your writing style is:

- Fact-forward and informative, like a Bloomberg or Axios article but with personality
- Lead with the numbers and data, then layer in analysis and occasional opinion
- Opinions should feel earned: back them up with reasoning, don't just assert
- Skeptical and analytical. Question whether the market has it right. Poke holes.
- Varied sentence structure. Mix punchy short sentences with longer explanatory ones.
- Use phrases like "The market may be underpricing...", "What's interesting here...", "The risk that isn't priced in..."
- Sprinkle in first-person sparingly: "I'd argue...", "My read on this...", "Hard to ignore..."
- NO podcast energy. No "dude", "man", "wild", "think about it". This is written, not spoken.
- Absolutely NO AI-sounding phrases like "it's important to note", "in conclusion", "furthermore", "delve into", "navigating"
- Never use bullet points or numbered lists in the article body
- Write like a smart analyst who writes well, not a robot or a podcaster

The article should feel like something you'd read on a quality finance blog: informed, opinionated, readable.`

const resultsSystemPrompt = `You are a sharp financial writer creating post-mortem articles about prediction markets that have just resolved. Your writing style is:

- Lead with the outcome: what happened, who won, who lost
- Analyze whether the market got it right or wrong, and why
- Examine what signals people missed or correctly identified
- Be honest about uncertainty and hindsight bias
- Use phrases like "The market had this at X%; turns out that was...", "What the crowd missed...", "In hindsight..."
- Sprinkle in first-person sparingly: "I'd have been wrong too...", "Looking back..."
- NO podcast energy. This is written analysis, not spoken commentary.
- Absolutely NO AI-sounding phrases like "it's important to note", "in conclusion", "furthermore", "delve into"
- Never use bullet points or numbered lists

The article should feel like a satisfying wrap-up: readers want to know what happened and what to learn from it.`

func buildAnalysisPrompt(m market.Enriched) string {
	var sb strings.Builder

	sb.WriteString("Write an article about this prediction market. The article should be 400-650 words.\n\n")
	sb.WriteString("Market Details:\n")
	sb.WriteString(fmt.Sprintf("- Title: %s\n", titleOrUnknown(m.Title)))
	sb.WriteString(fmt.Sprintf("- Current Probability: %.0f%% chance of YES\n", m.Probability))
	sb.WriteString(fmt.Sprintf("- Recent Price Movement: %s\n", m.PriceMovement()))
	sb.WriteString(fmt.Sprintf("- Volume: %d contracts traded\n", m.Volume))
	sb.WriteString(fmt.Sprintf("- 24h Volume: %d contracts\n", m.Volume24h))
	sb.WriteString(fmt.Sprintf("- Open Interest: %d\n", m.OpenInterest))
	sb.WriteString(fmt.Sprintf("- Market Closes: %s\n", m.CloseTimeReadable))
	if m.HasDaysUntilClose {
		sb.WriteString(fmt.Sprintf("- Days Until Close: %d\n", m.DaysUntilClose))
	} else {
		sb.WriteString("- Days Until Close: Unknown\n")
	}
	sb.WriteString(fmt.Sprintf("- Subtitle/Description: %s\n", m.SubtitleOrTitle()))

	sb.WriteString(`
Requirements for the article:
1. Create a catchy, compelling title (intriguing but credible, not trashy clickbait)
2. Cover these topics woven naturally into the narrative (NOT as a checklist):
   - Current odds/probability and what they signal
   - Whether the market pricing seems right, too high, or too low, and why
   - Key upcoming events or catalysts that could move the market
   - Risks or factors the market might be underweighting
   - Relevant recent news, data, or trends
   - Your analytical take on the situation
3. Length: 400-650 words
4. Tone: informed, analytical, readable. Lead with facts, sprinkle opinions. Written for readers, not listeners.
5. Sound like a human analyst who writes well, not robotic, not a podcaster

Return your response in this exact JSON format:
{
    "title": "Your catchy title here",
    "teaser": "A 1-2 sentence hook that makes people want to read more",
    "content": "The full article body here (400-650 words)"
}

Only return valid JSON, nothing else.`)

	return sb.String()
}

func buildResultsPrompt(m market.Enriched, outcome string, finalProb, originalProb float64) string {
	var sb strings.Builder

	sb.WriteString("Write a results article about this prediction market that just resolved. The article should be 350-500 words.\n\n")
	sb.WriteString("Market Details:\n")
	sb.WriteString(fmt.Sprintf("- Title: %s\n", titleOrUnknown(m.Title)))
	sb.WriteString(fmt.Sprintf("- Final Outcome: %s (the market resolved to %s)\n", outcome, outcome))
	sb.WriteString(fmt.Sprintf("- Final Probability Before Resolution: %.0f%%\n", finalProb))
	sb.WriteString(fmt.Sprintf("- Original Analysis Probability (when we first covered it): %.0f%%\n", originalProb))
	sb.WriteString(fmt.Sprintf("- Total Volume: %d contracts traded\n", m.Volume))
	sb.WriteString(fmt.Sprintf("- Market Closed: %s\n", m.CloseTimeReadable))
	sb.WriteString(fmt.Sprintf("- Subtitle/Description: %s\n", m.SubtitleOrTitle()))

	sb.WriteString(`
Requirements for the article:
1. Create a compelling title that signals the outcome (e.g., "The Fed Held Rates, And the Market Saw It Coming")
2. Cover these topics naturally:
   - The outcome and what it means
   - Whether the market pricing was accurate or off
   - What factors drove the result
   - What signals people got right or wrong
   - Lessons for similar future markets
3. Length: 350-500 words
4. Tone: analytical wrap-up, honest about what was predictable vs. surprising

Return your response in this exact JSON format:
{
    "title": "Your results headline here",
    "teaser": "A 1-2 sentence summary of the outcome and key takeaway",
    "content": "The full article body here (350-500 words)"
}

Only return valid JSON, nothing else.`)

	return sb.String()
}

func titleOrUnknown(title string) string {
	if title == "" {
		return "Unknown Market"
	}
	return title
}
