package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"lead-engine/internal/observability"
	"strings"
)

var ErrUnparsableVerdict = errors.New("unparsable qualification verdict")

// Completer abstracts the chat completion client.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

type AIProcessor struct {
	completer Completer
	logger    *observability.Logger
}

func New(completer Completer, logger *observability.Logger) *AIProcessor {
	return &AIProcessor{completer: completer, logger: logger}
}

// PersonalizationData carries outreach hints produced during qualification.
type PersonalizationData struct {
	RecommendedApproach string   `json:"recommended_approach"`
	KeyTalkingPoints    []string `json:"key_talking_points"`
	UrgencyLevel        string   `json:"urgency_level"`
}

// QualificationVerdict is the validated result of an LLM lead analysis.
type QualificationVerdict struct {
	IsQualified     bool
	IntentScore     float64
	QualityGrade    string
	Interests       []string
	PainPoints      []string
	Summary         string
	Personalization PersonalizationData
}

const qualifySystemPrompt = "You are an expert at analyzing potential leads for online communities and membership businesses. Provide accurate, actionable insights."

const qualifyPromptTemplate = `Analyze this social media post as a potential lead for a paid community/membership business in the %q niche.

Post content:
%s

The business targets people interested in: %s

Respond in JSON with these fields:
{
    "is_qualified": bool,
    "intent_score": float (0.0 to 1.0, where 1.0 is highest buying intent),
    "quality_grade": string ("A", "B", "C", or "D"),
    "interests": [list of relevant interests/topics],
    "pain_points": [list of potential pain points this person might have],
    "summary": "brief summary of why this is a good/bad lead",
    "personalization_data": {
        "recommended_approach": "how to approach this lead",
        "key_talking_points": [list of topics to mention],
        "urgency_level": "low/medium/high"
    }
}

Base your analysis on language patterns indicating interest in learning or communities, expressed frustrations or needs, and engagement level.`

// QualifyLead asks the LLM whether a candidate post is a qualified lead.
// The response is untrusted text; a verdict that cannot be parsed or is
// missing required fields yields ErrUnparsableVerdict so the caller can
// drop the candidate without failing the batch.
func (p *AIProcessor) QualifyLead(ctx context.Context, content, niche string, keywords []string) (QualificationVerdict, error) {
	prompt := fmt.Sprintf(qualifyPromptTemplate, niche, content, strings.Join(keywords, ", "))
	raw, err := p.completer.Complete(ctx, qualifySystemPrompt, prompt, 0.3, 800)
	if err != nil {
		return QualificationVerdict{}, fmt.Errorf("qualification call failed: %w", err)
	}
	return parseVerdict(raw)
}

const analyzeSystemPrompt = qualifySystemPrompt

const analyzePromptTemplate = `Analyze this potential lead for a paid community/membership business:

%s

Respond in JSON with these fields:
{
    "intent_score": float (0.0 to 1.0, where 1.0 is highest intent),
    "quality_grade": string ("A", "B", "C", or "D"),
    "interests": [list of relevant interests/topics],
    "pain_points": [list of potential pain points this person might have],
    "summary": "brief summary of why this is a good/bad lead",
    "personalization_data": {
        "recommended_approach": "how to approach this lead",
        "key_talking_points": [list of topics to mention],
        "urgency_level": "low/medium/high"
    }
}`

// AnalyzeLead enriches a manually entered lead. Unlike QualifyLead it
// never rejects: on any failure it returns a conservative default so lead
// creation still succeeds.
func (p *AIProcessor) AnalyzeLead(ctx context.Context, name, username, source, profileURL string) QualificationVerdict {
	var parts []string
	if name != "" {
		parts = append(parts, "Name: "+name)
	}
	if username != "" {
		parts = append(parts, "Username: "+username)
	}
	if source != "" {
		parts = append(parts, "Source: "+source)
	}
	if profileURL != "" {
		parts = append(parts, "Profile: "+profileURL)
	}
	leadContext := "Limited information available"
	if len(parts) > 0 {
		leadContext = strings.Join(parts, "\n")
	}

	raw, err := p.completer.Complete(ctx, analyzeSystemPrompt, fmt.Sprintf(analyzePromptTemplate, leadContext), 0.3, 800)
	if err == nil {
		verdict, perr := parseVerdict(raw)
		if perr == nil {
			return verdict
		}
		err = perr
	}
	p.logger.InfoWithError(ctx, "lead analysis failed, using defaults", err)
	return QualificationVerdict{
		IsQualified:  true,
		IntentScore:  0.5,
		QualityGrade: "C",
		Interests:    []string{},
		PainPoints:   []string{},
		Summary:      "Analysis failed - manual review needed",
		Personalization: PersonalizationData{
			RecommendedApproach: "Generic outreach",
			KeyTalkingPoints:    []string{},
			UrgencyLevel:        "low",
		},
	}
}

const personalizeSystemPrompt = "You are an expert copywriter specializing in personalized outreach for online communities."

const personalizePromptTemplate = `Personalize this outreach message template for a specific lead:

Template: %s

Lead Information:
- Name: %s
- Username: %s
- Interests: %s
- Pain Points: %s
- Recommended Approach: %s

Requirements:
1. Keep the core message and call-to-action from the template
2. Add personal touches based on the lead's interests and pain points
3. Use a friendly, non-salesy tone
4. Keep it concise (under 200 words)
5. Include specific value propositions that match their interests

Return only the personalized message, no explanations.`

// LeadProfile carries the lead fields used for message personalization.
type LeadProfile struct {
	Name                string
	Username            string
	Interests           []string
	PainPoints          []string
	RecommendedApproach string
}

// PersonalizeMessage rewrites a campaign template for one lead. On failure
// it falls back to the raw template so the send still goes out.
func (p *AIProcessor) PersonalizeMessage(ctx context.Context, template string, lead LeadProfile) string {
	name := lead.Name
	if name == "" {
		name = "there"
	}
	prompt := fmt.Sprintf(personalizePromptTemplate,
		template, name, lead.Username,
		strings.Join(lead.Interests, ", "),
		strings.Join(lead.PainPoints, ", "),
		lead.RecommendedApproach)

	personalized, err := p.completer.Complete(ctx, personalizeSystemPrompt, prompt, 0.7, 300)
	if err != nil {
		p.logger.InfoWithError(ctx, "message personalization failed, using template", err)
		return strings.ReplaceAll(template, "[NAME]", name)
	}
	return strings.TrimSpace(personalized)
}

const retentionSystemPrompt = "You are an expert at crafting empathetic retention messages for online communities."

const retentionPromptTemplate = `Generate a personalized retention message for a member who hasn't been active in the community:

Member Information:
- Name: %s
- Days Inactive: %d
- Tier: %s
- Message Type: %s

Community: %s

Requirements:
1. Friendly and understanding tone
2. Acknowledge their absence without being pushy
3. Highlight value they might be missing
4. Include a clear, low-pressure call to action
5. Keep it under 150 words

Message types:
- reminder: Gentle reminder about community value
- coupon: Include mention of special offer (don't specify amount)
- personal_check_in: More personal, ask how they're doing

Return only the message content, no subject line.`

// RetentionMessage generates copy for an at-risk member. On failure it
// falls back to a canned message.
func (p *AIProcessor) RetentionMessage(ctx context.Context, memberName string, daysInactive int, tier, messageType, communityName string) string {
	name := memberName
	if name == "" {
		name = "there"
	}
	if tier == "" {
		tier = "member"
	}
	if communityName == "" {
		communityName = "our community"
	}

	prompt := fmt.Sprintf(retentionPromptTemplate, name, daysInactive, tier, messageType, communityName)
	msg, err := p.completer.Complete(ctx, retentionSystemPrompt, prompt, 0.8, 250)
	if err != nil {
		p.logger.InfoWithError(ctx, "retention message generation failed, using default", err)
		return fmt.Sprintf("Hi %s! We've missed you in %s. There's been some great content shared recently that I think you'd find valuable. Hope to see you back soon!", name, communityName)
	}
	return strings.TrimSpace(msg)
}

// extractJSON returns the first balanced {...} span in s. LLM responses
// often wrap the JSON in prose or code fences.
func extractJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", ErrUnparsableVerdict
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], nil
				}
			}
		}
	}
	return "", ErrUnparsableVerdict
}

func parseVerdict(raw string) (QualificationVerdict, error) {
	span, err := extractJSON(raw)
	if err != nil {
		return QualificationVerdict{}, err
	}

	var parsed struct {
		IsQualified     *bool               `json:"is_qualified"`
		IntentScore     *float64            `json:"intent_score"`
		QualityGrade    string              `json:"quality_grade"`
		Interests       []string            `json:"interests"`
		PainPoints      []string            `json:"pain_points"`
		Summary         string              `json:"summary"`
		Personalization PersonalizationData `json:"personalization_data"`
	}
	if err := json.Unmarshal([]byte(span), &parsed); err != nil {
		return QualificationVerdict{}, fmt.Errorf("%w: %v", ErrUnparsableVerdict, err)
	}
	if parsed.IntentScore == nil {
		return QualificationVerdict{}, fmt.Errorf("%w: missing intent_score", ErrUnparsableVerdict)
	}

	verdict := QualificationVerdict{
		IntentScore:     clamp01(*parsed.IntentScore),
		QualityGrade:    normalizeGrade(parsed.QualityGrade),
		Interests:       parsed.Interests,
		PainPoints:      parsed.PainPoints,
		Summary:         parsed.Summary,
		Personalization: parsed.Personalization,
	}
	if verdict.Interests == nil {
		verdict.Interests = []string{}
	}
	if verdict.PainPoints == nil {
		verdict.PainPoints = []string{}
	}
	if verdict.Summary == "" {
		verdict.Summary = "Analysis completed"
	}
	// is_qualified defaults to true when absent: the analyze prompt has no
	// such field, the qualify prompt always includes it.
	verdict.IsQualified = parsed.IsQualified == nil || *parsed.IsQualified
	return verdict, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func normalizeGrade(grade string) string {
	switch strings.ToUpper(strings.TrimSpace(grade)) {
	case "A":
		return "A"
	case "B":
		return "B"
	case "C":
		return "C"
	case "D":
		return "D"
	default:
		return "C"
	}
}
