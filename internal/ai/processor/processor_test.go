package processor

import (
	"context"
	"errors"
	"testing"

	"lead-engine/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
	lastUser string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	f.calls++
	f.lastUser = user
	return f.response, f.err
}

func newTestAIProcessor(c Completer) *AIProcessor {
	return New(c, observability.NewLogger())
}

func TestQualifyLead_ParsesWrappedJSON(t *testing.T) {
	completer := &fakeCompleter{response: `Here is my analysis:

` + "```json" + `
{
    "is_qualified": true,
    "intent_score": 0.85,
    "quality_grade": "a",
    "interests": ["day trading", "options"],
    "pain_points": ["losing money"],
    "summary": "Actively seeking a trading community",
    "personalization_data": {
        "recommended_approach": "Lead with education",
        "key_talking_points": ["risk management"],
        "urgency_level": "high"
    }
}
` + "```" + `

Let me know if you need more detail.`}
	p := newTestAIProcessor(completer)

	verdict, err := p.QualifyLead(context.Background(), "some post", "trading", []string{"day trading"})

	require.NoError(t, err)
	assert.True(t, verdict.IsQualified)
	assert.Equal(t, 0.85, verdict.IntentScore)
	assert.Equal(t, "A", verdict.QualityGrade)
	assert.Equal(t, []string{"day trading", "options"}, verdict.Interests)
	assert.Equal(t, "high", verdict.Personalization.UrgencyLevel)
}

func TestQualifyLead_MissingIntentScoreIsUnparsable(t *testing.T) {
	completer := &fakeCompleter{response: `{"is_qualified": true, "quality_grade": "B"}`}
	p := newTestAIProcessor(completer)

	_, err := p.QualifyLead(context.Background(), "post", "trading", nil)

	require.ErrorIs(t, err, ErrUnparsableVerdict)
}

func TestQualifyLead_NoJSONInResponse(t *testing.T) {
	completer := &fakeCompleter{response: "I cannot analyze this post."}
	p := newTestAIProcessor(completer)

	_, err := p.QualifyLead(context.Background(), "post", "trading", nil)

	require.ErrorIs(t, err, ErrUnparsableVerdict)
}

func TestQualifyLead_CompleterErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited")
	p := newTestAIProcessor(&fakeCompleter{err: boom})

	_, err := p.QualifyLead(context.Background(), "post", "trading", nil)

	require.ErrorIs(t, err, boom)
}

func TestQualifyLead_ClampsAndNormalizes(t *testing.T) {
	completer := &fakeCompleter{response: `{"is_qualified": true, "intent_score": 1.7, "quality_grade": "excellent"}`}
	p := newTestAIProcessor(completer)

	verdict, err := p.QualifyLead(context.Background(), "post", "trading", nil)

	require.NoError(t, err)
	assert.Equal(t, 1.0, verdict.IntentScore)
	assert.Equal(t, "C", verdict.QualityGrade)
	assert.NotNil(t, verdict.Interests)
	assert.NotNil(t, verdict.PainPoints)
	assert.Equal(t, "Analysis completed", verdict.Summary)
}

func TestQualifyLead_NegativeScoreClampedToZero(t *testing.T) {
	completer := &fakeCompleter{response: `{"is_qualified": false, "intent_score": -0.4}`}
	p := newTestAIProcessor(completer)

	verdict, err := p.QualifyLead(context.Background(), "post", "trading", nil)

	require.NoError(t, err)
	assert.False(t, verdict.IsQualified)
	assert.Equal(t, 0.0, verdict.IntentScore)
}

func TestAnalyzeLead_DefaultsOnFailure(t *testing.T) {
	p := newTestAIProcessor(&fakeCompleter{err: errors.New("upstream down")})

	verdict := p.AnalyzeLead(context.Background(), "Jordan", "jordan_t", "manual", "")

	assert.True(t, verdict.IsQualified)
	assert.Equal(t, 0.5, verdict.IntentScore)
	assert.Equal(t, "C", verdict.QualityGrade)
	assert.Equal(t, "Analysis failed - manual review needed", verdict.Summary)
	assert.Equal(t, "low", verdict.Personalization.UrgencyLevel)
}

func TestAnalyzeLead_MissingIsQualifiedDefaultsTrue(t *testing.T) {
	completer := &fakeCompleter{response: `{"intent_score": 0.6, "quality_grade": "B", "summary": "promising"}`}
	p := newTestAIProcessor(completer)

	verdict := p.AnalyzeLead(context.Background(), "Jordan", "", "reddit", "")

	assert.True(t, verdict.IsQualified)
	assert.Equal(t, 0.6, verdict.IntentScore)
	assert.Equal(t, "B", verdict.QualityGrade)
}

func TestPersonalizeMessage_FallsBackToTemplate(t *testing.T) {
	p := newTestAIProcessor(&fakeCompleter{err: errors.New("timeout")})

	got := p.PersonalizeMessage(context.Background(), "Hey [NAME], join us!", LeadProfile{Name: "Sam"})

	assert.Equal(t, "Hey Sam, join us!", got)
}

func TestPersonalizeMessage_EmptyNameUsesThere(t *testing.T) {
	p := newTestAIProcessor(&fakeCompleter{err: errors.New("timeout")})

	got := p.PersonalizeMessage(context.Background(), "Hey [NAME]!", LeadProfile{})

	assert.Equal(t, "Hey there!", got)
}

func TestPersonalizeMessage_TrimsResponse(t *testing.T) {
	completer := &fakeCompleter{response: "\n  Hey Sam, saw your post about options trading.  \n"}
	p := newTestAIProcessor(completer)

	got := p.PersonalizeMessage(context.Background(), "template", LeadProfile{Name: "Sam"})

	assert.Equal(t, "Hey Sam, saw your post about options trading.", got)
}

func TestRetentionMessage_FallbackMentionsNameAndCommunity(t *testing.T) {
	p := newTestAIProcessor(&fakeCompleter{err: errors.New("timeout")})

	got := p.RetentionMessage(context.Background(), "Alex", 14, "premium", "reminder", "Trade Lab")

	assert.Contains(t, got, "Alex")
	assert.Contains(t, got, "Trade Lab")
}

func TestRetentionMessage_EmptyFieldsGetDefaults(t *testing.T) {
	completer := &fakeCompleter{response: "We miss you!"}
	p := newTestAIProcessor(completer)

	got := p.RetentionMessage(context.Background(), "", 7, "", "reminder", "")

	assert.Equal(t, "We miss you!", got)
	assert.Contains(t, completer.lastUser, "there")
	assert.Contains(t, completer.lastUser, "our community")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		fails bool
	}{
		{name: "bare object", input: `{"a": 1}`, want: `{"a": 1}`},
		{name: "nested braces", input: `text {"a": {"b": 2}} trailing`, want: `{"a": {"b": 2}}`},
		{name: "brace inside string", input: `{"a": "}{"}`, want: `{"a": "}{"}`},
		{name: "escaped quote inside string", input: `{"a": "say \"}\" loud"}`, want: `{"a": "say \"}\" loud"}`},
		{name: "no object", input: "nothing here", fails: true},
		{name: "unterminated", input: `{"a": 1`, fails: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.input)
			if tt.fails {
				require.ErrorIs(t, err, ErrUnparsableVerdict)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
