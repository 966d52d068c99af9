package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	aiprocessor "lead-engine/internal/ai/processor"
	"lead-engine/internal/clients/reddit"
	"lead-engine/internal/clients/twitter"
	"lead-engine/internal/observability"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidCriteria = errors.New("invalid discovery criteria")

const (
	maxSubreddits    = 10
	defaultMaxLeads  = 25
	minContentLength = 50
	perSourceTimeout = 10 * time.Second

	// Heuristic quality-score weights
	engagementWeight = 0.02
	commentWeight    = 0.05
	ratioWeight      = 2.0
)

var negativeKeywords = []string{
	"frustrated", "struggling", "stuck", "confused", "losing",
	"overwhelmed", "help", "can't", "failing", "quit",
}

var positiveKeywords = []string{
	"love", "great", "excited", "awesome", "thanks", "winning",
}

// RedditSearcher is the Reddit adapter surface the pipeline needs.
type RedditSearcher interface {
	Configured() bool
	Search(ctx context.Context, keywords, subreddits []string, limitPerSubreddit int) ([]reddit.Post, error)
}

// TwitterSearcher is the Twitter adapter surface the pipeline needs.
type TwitterSearcher interface {
	Configured() bool
	Search(ctx context.Context, keywords []string, maxResults int) ([]twitter.Tweet, error)
}

// Qualifier turns raw candidate content into a validated verdict.
type Qualifier interface {
	QualifyLead(ctx context.Context, content, niche string, keywords []string) (aiprocessor.QualificationVerdict, error)
}

// LeadChecker reports whether a lead has already been persisted.
type LeadChecker interface {
	LeadExists(ctx context.Context, userID uuid.UUID, externalID string) (bool, error)
}

// Criteria drives one discovery run.
type Criteria struct {
	Niche          string
	Keywords       []string
	Subreddits     []string
	MinIntentScore float64
	MaxLeads       int
}

// Candidate is a discovered, qualified lead candidate. It is an in-memory
// value only; persistence is the caller's job.
type Candidate struct {
	ExternalID   string
	Author       string
	Content      string
	URL          string
	Source       string
	QualityScore float64
	Sentiment    string

	IntentScore     float64
	QualityGrade    string
	Interests       []string
	PainPoints      []string
	Summary         string
	Personalization aiprocessor.PersonalizationData
	PlatformData    map[string]interface{}
}

type DiscoveryProcessor struct {
	reddit    RedditSearcher
	twitter   TwitterSearcher
	qualifier Qualifier
	leads     LeadChecker
	logger    *observability.Logger
}

func New(redditClient RedditSearcher, twitterClient TwitterSearcher, qualifier Qualifier, leads LeadChecker, logger *observability.Logger) *DiscoveryProcessor {
	return &DiscoveryProcessor{
		reddit:    redditClient,
		twitter:   twitterClient,
		qualifier: qualifier,
		leads:     leads,
		logger:    logger,
	}
}

// Discover runs the full pipeline: validate criteria, fan out to every
// configured source, pre-filter, qualify via the LLM, exclude already
// persisted leads, and return the survivors ranked by intent. Source and
// LLM failures are absorbed; only invalid input or a store failure is
// returned as an error.
func (p *DiscoveryProcessor) Discover(ctx context.Context, userID uuid.UUID, criteria Criteria) ([]Candidate, error) {
	if len(criteria.Keywords) == 0 {
		return nil, fmt.Errorf("%w: keywords must not be empty", ErrInvalidCriteria)
	}
	if len(criteria.Subreddits) > maxSubreddits {
		return nil, fmt.Errorf("%w: at most %d subreddits allowed", ErrInvalidCriteria, maxSubreddits)
	}
	maxLeads := criteria.MaxLeads
	if maxLeads <= 0 {
		maxLeads = defaultMaxLeads
	}

	raw := p.fanOut(ctx, criteria)
	candidates := dedupeBatch(raw)
	candidates = p.preFilter(candidates)
	qualified := p.qualify(ctx, candidates, criteria)

	fresh := make([]Candidate, 0, len(qualified))
	for _, c := range qualified {
		exists, err := p.leads.LeadExists(ctx, userID, c.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing leads: %w", err)
		}
		if exists {
			continue
		}
		fresh = append(fresh, c)
	}

	// Stable so candidates with equal intent keep discovery order.
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].IntentScore > fresh[j].IntentScore
	})
	if len(fresh) > maxLeads {
		fresh = fresh[:maxLeads]
	}
	return fresh, nil
}

// fanOut queries every configured source concurrently. Each source is
// bounded by its own timeout and its failure only costs its own results.
func (p *DiscoveryProcessor) fanOut(ctx context.Context, criteria Criteria) []Candidate {
	var mu sync.Mutex
	var candidates []Candidate

	g, _ := errgroup.WithContext(ctx)

	if p.reddit != nil && p.reddit.Configured() && len(criteria.Subreddits) > 0 {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, perSourceTimeout)
			defer cancel()
			posts, err := p.reddit.Search(sctx, criteria.Keywords, criteria.Subreddits, 25)
			if err != nil {
				p.logger.InfoWithError(ctx, "reddit search failed, continuing without it", err)
				return nil
			}
			mu.Lock()
			for _, post := range posts {
				candidates = append(candidates, candidateFromRedditPost(post))
			}
			mu.Unlock()
			return nil
		})
	}

	if p.twitter != nil && p.twitter.Configured() {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, perSourceTimeout)
			defer cancel()
			tweets, err := p.twitter.Search(sctx, criteria.Keywords, 25)
			if err != nil {
				p.logger.InfoWithError(ctx, "twitter search failed, continuing without it", err)
				return nil
			}
			mu.Lock()
			for _, tweet := range tweets {
				candidates = append(candidates, candidateFromTweet(tweet))
			}
			mu.Unlock()
			return nil
		})
	}

	// Goroutines never return errors; Wait only orders the appends.
	_ = g.Wait()
	return candidates
}

func candidateFromRedditPost(post reddit.Post) Candidate {
	content := post.Title
	if post.SelfText != "" {
		content = post.Title + "\n\n" + post.SelfText
	}
	return Candidate{
		ExternalID: "reddit_" + post.ID,
		Author:     post.Author,
		Content:    content,
		URL:        post.Permalink,
		Source:     "reddit",
		QualityScore: qualityScore(
			float64(post.Score), float64(post.NumComments), post.UpvoteRatio),
		PlatformData: map[string]interface{}{
			"subreddit":    post.Subreddit,
			"score":        post.Score,
			"num_comments": post.NumComments,
			"upvote_ratio": post.UpvoteRatio,
		},
	}
}

func candidateFromTweet(tweet twitter.Tweet) Candidate {
	return Candidate{
		ExternalID: "twitter_" + tweet.ID,
		Author:     tweet.AuthorUsername,
		Content:    tweet.Text,
		URL:        "https://twitter.com/i/web/status/" + tweet.ID,
		Source:     "twitter",
		QualityScore: qualityScore(
			float64(tweet.LikeCount), float64(tweet.ReplyCount), 1.0),
		PlatformData: map[string]interface{}{
			"like_count":    tweet.LikeCount,
			"reply_count":   tweet.ReplyCount,
			"retweet_count": tweet.RetweetCount,
		},
	}
}

// dedupeBatch removes within-batch duplicates by (source, author), keeping
// the first occurrence.
func dedupeBatch(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		key := c.Source + "|" + c.Author
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// preFilter drops obviously worthless candidates before spending LLM calls
// and attaches the heuristic quality and sentiment signals.
func (p *DiscoveryProcessor) preFilter(candidates []Candidate) []Candidate {
	out := candidates[:0]
	for _, c := range candidates {
		if skipAuthor(c.Author) {
			continue
		}
		if len(c.Content) < minContentLength {
			continue
		}
		c.Sentiment = classifySentiment(c.Content)
		out = append(out, c)
	}
	return out
}

func skipAuthor(author string) bool {
	switch author {
	case "", "[deleted]", "[removed]", "AutoModerator":
		return true
	}
	return strings.Contains(strings.ToLower(author), "bot")
}

func qualityScore(score, comments, upvoteRatio float64) float64 {
	q := engagementWeight*score + commentWeight*comments + ratioWeight*upvoteRatio
	if q < 0 {
		return 0
	}
	if q > 10 {
		return 10
	}
	return q
}

func classifySentiment(content string) string {
	lower := strings.ToLower(content)
	negative := 0
	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			negative++
		}
	}
	positive := 0
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			positive++
		}
	}
	switch {
	case negative > positive:
		return "negative"
	case positive > negative:
		return "positive"
	default:
		return "neutral"
	}
}

// qualify runs the LLM verdict per candidate. Unparsable or unqualified
// verdicts drop the candidate without failing the batch.
func (p *DiscoveryProcessor) qualify(ctx context.Context, candidates []Candidate, criteria Criteria) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		verdict, err := p.qualifier.QualifyLead(ctx, c.Content, criteria.Niche, criteria.Keywords)
		if err != nil {
			cctx := observability.WithFields(ctx, observability.Field{Key: "candidate", Value: c.ExternalID})
			p.logger.InfoWithError(cctx, "qualification failed, dropping candidate", err)
			continue
		}
		if !verdict.IsQualified {
			continue
		}
		if verdict.IntentScore < criteria.MinIntentScore {
			continue
		}
		c.IntentScore = verdict.IntentScore
		c.QualityGrade = verdict.QualityGrade
		c.Interests = verdict.Interests
		c.PainPoints = verdict.PainPoints
		c.Summary = verdict.Summary
		c.Personalization = verdict.Personalization
		out = append(out, c)
	}
	return out
}

// DefaultCriteria returns a starting criteria template for a niche.
func DefaultCriteria(niche string) Criteria {
	switch strings.ToLower(niche) {
	case "trading":
		return Criteria{
			Niche:          "trading",
			Keywords:       []string{"day trading help", "trading strategy", "losing money trading", "trading community"},
			Subreddits:     []string{"Daytrading", "stocks", "options", "Forex"},
			MinIntentScore: 0.6,
			MaxLeads:       defaultMaxLeads,
		}
	case "saas":
		return Criteria{
			Niche:          "saas",
			Keywords:       []string{"saas growth", "finding customers", "b2b sales help", "startup marketing"},
			Subreddits:     []string{"SaaS", "startups", "Entrepreneur", "indiehackers"},
			MinIntentScore: 0.6,
			MaxLeads:       defaultMaxLeads,
		}
	case "fitness":
		return Criteria{
			Niche:          "fitness",
			Keywords:       []string{"workout plan", "fitness coaching", "weight loss help", "gym motivation"},
			Subreddits:     []string{"Fitness", "loseit", "bodyweightfitness", "gainit"},
			MinIntentScore: 0.6,
			MaxLeads:       defaultMaxLeads,
		}
	case "marketing":
		return Criteria{
			Niche:          "marketing",
			Keywords:       []string{"marketing strategy", "growing audience", "content marketing help", "ads not converting"},
			Subreddits:     []string{"marketing", "DigitalMarketing", "socialmedia", "PPC"},
			MinIntentScore: 0.6,
			MaxLeads:       defaultMaxLeads,
		}
	default:
		return Criteria{
			Niche:          niche,
			Keywords:       []string{"looking for community", "need advice", "recommendations for"},
			Subreddits:     []string{"AskReddit", "Advice"},
			MinIntentScore: 0.6,
			MaxLeads:       defaultMaxLeads,
		}
	}
}
