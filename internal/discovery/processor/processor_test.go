package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	aiprocessor "lead-engine/internal/ai/processor"
	"lead-engine/internal/clients/reddit"
	"lead-engine/internal/clients/twitter"
	"lead-engine/internal/observability"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReddit struct {
	posts      []reddit.Post
	err        error
	configured bool
	calls      int
}

func (f *fakeReddit) Configured() bool { return f.configured }

func (f *fakeReddit) Search(ctx context.Context, keywords, subreddits []string, limit int) ([]reddit.Post, error) {
	f.calls++
	return f.posts, f.err
}

type fakeTwitter struct {
	tweets     []twitter.Tweet
	err        error
	configured bool
	calls      int
}

func (f *fakeTwitter) Configured() bool { return f.configured }

func (f *fakeTwitter) Search(ctx context.Context, keywords []string, maxResults int) ([]twitter.Tweet, error) {
	f.calls++
	return f.tweets, f.err
}

type fakeQualifier struct {
	verdicts map[string]aiprocessor.QualificationVerdict
	errs     map[string]error
	calls    []string
}

func (f *fakeQualifier) QualifyLead(ctx context.Context, content, niche string, keywords []string) (aiprocessor.QualificationVerdict, error) {
	f.calls = append(f.calls, content)
	for marker, err := range f.errs {
		if strings.Contains(content, marker) {
			return aiprocessor.QualificationVerdict{}, err
		}
	}
	for marker, verdict := range f.verdicts {
		if strings.Contains(content, marker) {
			return verdict, nil
		}
	}
	return aiprocessor.QualificationVerdict{IsQualified: true, IntentScore: 0.7, QualityGrade: "B"}, nil
}

type fakeLeadChecker struct {
	existing map[string]bool
	err      error
}

func (f *fakeLeadChecker) LeadExists(ctx context.Context, userID uuid.UUID, externalID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.existing[externalID], nil
}

func post(id, author, title, selftext string) reddit.Post {
	return reddit.Post{
		ID:          id,
		Author:      author,
		Title:       title,
		SelfText:    selftext,
		Subreddit:   "Daytrading",
		Permalink:   "https://reddit.com/r/Daytrading/" + id,
		Score:       10,
		NumComments: 4,
		UpvoteRatio: 0.9,
	}
}

func longText(marker string) string {
	return marker + ": " + strings.Repeat("struggling with day trading and losing money ", 3)
}

func newTestProcessor(r RedditSearcher, tw TwitterSearcher, q Qualifier, l LeadChecker) *DiscoveryProcessor {
	return New(r, tw, q, l, observability.NewLogger())
}

func TestDiscover_EmptyKeywordsFailsBeforeAnyCall(t *testing.T) {
	redditClient := &fakeReddit{configured: true}
	twitterClient := &fakeTwitter{configured: true}
	qualifier := &fakeQualifier{}
	p := newTestProcessor(redditClient, twitterClient, qualifier, &fakeLeadChecker{})

	_, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Subreddits: []string{"Daytrading"},
	})

	require.ErrorIs(t, err, ErrInvalidCriteria)
	assert.Zero(t, redditClient.calls)
	assert.Zero(t, twitterClient.calls)
	assert.Empty(t, qualifier.calls)
}

func TestDiscover_TooManySubreddits(t *testing.T) {
	subreddits := make([]string, maxSubreddits+1)
	for i := range subreddits {
		subreddits[i] = fmt.Sprintf("sub%d", i)
	}
	p := newTestProcessor(&fakeReddit{configured: true}, &fakeTwitter{}, &fakeQualifier{}, &fakeLeadChecker{})

	_, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Keywords:   []string{"day trading help"},
		Subreddits: subreddits,
	})

	require.ErrorIs(t, err, ErrInvalidCriteria)
}

func TestDiscover_DeletedAuthorFilteredBeforeQualification(t *testing.T) {
	redditClient := &fakeReddit{configured: true, posts: []reddit.Post{
		post("a1", "trader_joe", "Need help", longText("first")),
		post("a2", "[deleted]", "Gone", longText("second")),
		post("a3", "market_mary", "Advice wanted", longText("third")),
	}}
	qualifier := &fakeQualifier{}
	p := newTestProcessor(redditClient, &fakeTwitter{}, qualifier, &fakeLeadChecker{})

	results, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Niche:      "trading",
		Keywords:   []string{"day trading help"},
		Subreddits: []string{"Daytrading"},
		MaxLeads:   5,
	})

	require.NoError(t, err)
	assert.Len(t, qualifier.calls, 2)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "[deleted]", r.Author)
	}
}

func TestDiscover_ShortContentDropped(t *testing.T) {
	redditClient := &fakeReddit{configured: true, posts: []reddit.Post{
		post("b1", "brief_bob", "help", ""),
		post("b2", "verbose_vera", "Need help", longText("long")),
	}}
	qualifier := &fakeQualifier{}
	p := newTestProcessor(redditClient, &fakeTwitter{}, qualifier, &fakeLeadChecker{})

	results, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Keywords:   []string{"help"},
		Subreddits: []string{"Daytrading"},
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "verbose_vera", results[0].Author)
}

func TestDiscover_BatchDedupeBySourceAndAuthor(t *testing.T) {
	redditClient := &fakeReddit{configured: true, posts: []reddit.Post{
		post("c1", "repeat_rick", "First post", longText("one")),
		post("c2", "repeat_rick", "Second post", longText("two")),
	}}
	p := newTestProcessor(redditClient, &fakeTwitter{}, &fakeQualifier{}, &fakeLeadChecker{})

	results, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Keywords:   []string{"help"},
		Subreddits: []string{"Daytrading"},
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "reddit_c1", results[0].ExternalID)
}

func TestDiscover_ExistingLeadExcluded(t *testing.T) {
	redditClient := &fakeReddit{configured: true, posts: []reddit.Post{
		post("d1", "known_ken", "Old news", longText("known")),
		post("d2", "new_nancy", "Fresh face", longText("fresh")),
	}}
	checker := &fakeLeadChecker{existing: map[string]bool{"reddit_d1": true}}
	p := newTestProcessor(redditClient, &fakeTwitter{}, &fakeQualifier{}, checker)

	results, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Keywords:   []string{"help"},
		Subreddits: []string{"Daytrading"},
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "reddit_d2", results[0].ExternalID)
}

func TestDiscover_MalformedVerdictDroppedWithoutFailingBatch(t *testing.T) {
	redditClient := &fakeReddit{configured: true, posts: []reddit.Post{
		post("e1", "garbled_gary", "Weird", longText("garbled")),
		post("e2", "clean_cathy", "Normal", longText("clean")),
	}}
	qualifier := &fakeQualifier{
		errs: map[string]error{"garbled": aiprocessor.ErrUnparsableVerdict},
	}
	p := newTestProcessor(redditClient, &fakeTwitter{}, qualifier, &fakeLeadChecker{})

	results, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Keywords:   []string{"help"},
		Subreddits: []string{"Daytrading"},
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "reddit_e2", results[0].ExternalID)
}

func TestDiscover_UnqualifiedVerdictDropped(t *testing.T) {
	redditClient := &fakeReddit{configured: true, posts: []reddit.Post{
		post("f1", "spam_sam", "Buy my course", longText("spam")),
	}}
	qualifier := &fakeQualifier{
		verdicts: map[string]aiprocessor.QualificationVerdict{
			"spam": {IsQualified: false, IntentScore: 0.9, QualityGrade: "A"},
		},
	}
	p := newTestProcessor(redditClient, &fakeTwitter{}, qualifier, &fakeLeadChecker{})

	results, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Keywords:   []string{"help"},
		Subreddits: []string{"Daytrading"},
	})

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDiscover_OneSourceFailingStillReturnsOtherSorted(t *testing.T) {
	redditClient := &fakeReddit{configured: true, err: errors.New("simulated timeout")}
	twitterClient := &fakeTwitter{configured: true, tweets: []twitter.Tweet{
		{ID: "t1", AuthorUsername: "low_lou", Text: longText("low")},
		{ID: "t2", AuthorUsername: "high_hank", Text: longText("high")},
	}}
	qualifier := &fakeQualifier{
		verdicts: map[string]aiprocessor.QualificationVerdict{
			"low":  {IsQualified: true, IntentScore: 0.55, QualityGrade: "C"},
			"high": {IsQualified: true, IntentScore: 0.95, QualityGrade: "A"},
		},
	}
	p := newTestProcessor(redditClient, twitterClient, qualifier, &fakeLeadChecker{})

	results, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Keywords:   []string{"help"},
		Subreddits: []string{"Daytrading"},
		MaxLeads:   10,
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "twitter_t2", results[0].ExternalID)
	assert.Equal(t, "twitter_t1", results[1].ExternalID)
}

func TestDiscover_AllSourcesFailingReturnsEmptyNotError(t *testing.T) {
	redditClient := &fakeReddit{configured: true, err: errors.New("down")}
	twitterClient := &fakeTwitter{configured: true, err: errors.New("down")}
	p := newTestProcessor(redditClient, twitterClient, &fakeQualifier{}, &fakeLeadChecker{})

	results, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Keywords:   []string{"help"},
		Subreddits: []string{"Daytrading"},
	})

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDiscover_MinIntentScoreFilter(t *testing.T) {
	redditClient := &fakeReddit{configured: true, posts: []reddit.Post{
		post("g1", "mild_mike", "Some interest", longText("mild")),
		post("g2", "keen_kim", "Very interested", longText("keen")),
	}}
	qualifier := &fakeQualifier{
		verdicts: map[string]aiprocessor.QualificationVerdict{
			"mild": {IsQualified: true, IntentScore: 0.4, QualityGrade: "C"},
			"keen": {IsQualified: true, IntentScore: 0.8, QualityGrade: "A"},
		},
	}
	p := newTestProcessor(redditClient, &fakeTwitter{}, qualifier, &fakeLeadChecker{})

	results, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Keywords:       []string{"help"},
		Subreddits:     []string{"Daytrading"},
		MinIntentScore: 0.6,
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "reddit_g2", results[0].ExternalID)
}

func TestDiscover_MaxLeadsCapAfterRanking(t *testing.T) {
	var posts []reddit.Post
	for i := 0; i < 8; i++ {
		posts = append(posts, post(
			fmt.Sprintf("h%d", i),
			fmt.Sprintf("author%d", i),
			"Looking for a trading community",
			longText(fmt.Sprintf("marker%d", i))))
	}
	redditClient := &fakeReddit{configured: true, posts: posts}
	p := newTestProcessor(redditClient, &fakeTwitter{}, &fakeQualifier{}, &fakeLeadChecker{})

	results, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Keywords:   []string{"day trading help"},
		Subreddits: []string{"Daytrading"},
		MaxLeads:   5,
	})

	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestDiscover_IntentScoresWithinBounds(t *testing.T) {
	redditClient := &fakeReddit{configured: true, posts: []reddit.Post{
		post("i1", "bounded_ben", "Question about trading", longText("bounded")),
	}}
	p := newTestProcessor(redditClient, &fakeTwitter{}, &fakeQualifier{}, &fakeLeadChecker{})

	results, err := p.Discover(context.Background(), uuid.New(), Criteria{
		Keywords:   []string{"help"},
		Subreddits: []string{"Daytrading"},
	})

	require.NoError(t, err)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.IntentScore, 0.0)
		assert.LessOrEqual(t, r.IntentScore, 1.0)
		assert.Contains(t, []string{"A", "B", "C", "D"}, r.QualityGrade)
	}
}

func TestQualityScoreClamped(t *testing.T) {
	assert.Equal(t, 0.0, qualityScore(-100, 0, 0))
	assert.Equal(t, 10.0, qualityScore(10000, 500, 1))
	assert.InDelta(t, 0.02*10+0.05*4+2*0.9, qualityScore(10, 4, 0.9), 1e-9)
}

func TestClassifySentiment(t *testing.T) {
	assert.Equal(t, "negative", classifySentiment("I'm so frustrated and struggling with this"))
	assert.Equal(t, "positive", classifySentiment("love this, it's great and awesome"))
	assert.Equal(t, "neutral", classifySentiment("posting a question about markets"))
}

func TestDefaultCriteria_KnownAndFallbackNiches(t *testing.T) {
	trading := DefaultCriteria("trading")
	assert.Equal(t, "trading", trading.Niche)
	assert.NotEmpty(t, trading.Keywords)
	assert.NotEmpty(t, trading.Subreddits)

	other := DefaultCriteria("underwater basket weaving")
	assert.NotEmpty(t, other.Keywords)
	assert.NotEmpty(t, other.Subreddits)
}
