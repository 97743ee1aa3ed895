// Package history is the durable record of past postings, click events and
// trend aggregates, backed by Redis. It also owns the anti-repetition rules
// that decide whether a product may be posted again.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"dealcaster/internal/model"

	"github.com/redis/go-redis/v9"
)

// Anti-repetition thresholds.
const (
	repostCooldown    = 48 * time.Hour
	poorPerfCooldown  = 72 * time.Hour
	highPerfScore     = 80.0
	highPerfClicks    = 50
	poorPerfScore     = 30.0
	velocityWindow    = time.Hour
	velocityMultiple  = 10.0
	velocityScoreCap  = 100.0
	defaultTrendCap   = 100.0
	statisticsTopSize = 5
	clickImpact       = 1.0 // score impact carried by each click event
)

func postedKey(id string) string   { return "deal:posted:" + id }
func trendingKey(id string) string { return "deal:trending:" + id }
func categoryKey(c string) string  { return "deal:category:" + c }

func eventKey(id, action string) string {
	return fmt.Sprintf("deal:history:%s:%s", id, action)
}

const (
	postedIDsKey    = "deal:posted:ids"
	historyIDsKey   = "deal:history:ids"
	categoryIDsKey  = "deal:category:ids"
	trendingIdxKey  = "deal:trending:index"
	clicksRankKey   = "deal:rank:clicks"
	totalPostsKey   = "deal:stats:posts"
	totalClicksKey  = "deal:stats:clicks"
	eventSeqKey     = "deal:history:seq"
	timestampLayout = time.RFC3339Nano
)

// Store implements the posting history over Redis.
type Store struct {
	rdb           *redis.Client
	historyMaxAge time.Duration
	trendMaxAge   time.Duration
	now           func() time.Time
}

type Option func(*Store)

// WithRetention overrides the pruning horizons.
func WithRetention(history, trending time.Duration) Option {
	return func(s *Store) {
		s.historyMaxAge = history
		s.trendMaxAge = trending
	}
}

// WithClock overrides the store clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{
		rdb:           rdb,
		historyMaxAge: 30 * 24 * time.Hour,
		trendMaxAge:   7 * 24 * time.Hour,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PostingRecord loads the record for a product, or nil when never posted.
func (s *Store) PostingRecord(ctx context.Context, productID string) (*model.PostingRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, postedKey(productID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load posting record: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	rec := &model.PostingRecord{ProductID: productID}
	if v, ok := fields["posted_at"]; ok {
		if t, err := time.Parse(timestampLayout, v); err == nil {
			rec.PostedAt = t
		}
	}
	rec.Clicks, _ = strconv.ParseInt(fields["clicks"], 10, 64)
	rec.ConversionScore, _ = strconv.ParseFloat(fields["conversion_score"], 64)
	rec.EngagementScore, _ = strconv.ParseFloat(fields["engagement_score"], 64)
	if v, ok := fields["last_click_at"]; ok && v != "" {
		if t, err := time.Parse(timestampLayout, v); err == nil {
			rec.LastClickAt = &t
		}
	}
	rec.Category = fields["category"]
	rec.Discount, _ = strconv.ParseFloat(fields["discount"], 64)
	rec.Rating, _ = strconv.ParseFloat(fields["rating"], 64)
	if v, err := strconv.Atoi(fields["volume"]); err == nil {
		rec.Volume = v
	}
	rec.Title = fields["title"]
	rec.AffiliateURL = fields["affiliate_url"]
	return rec, nil
}

// TrendingEntry loads the trend row for a product, or nil when absent.
func (s *Store) TrendingEntry(ctx context.Context, productID string) (*model.TrendingEntry, error) {
	fields, err := s.rdb.HGetAll(ctx, trendingKey(productID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load trending entry: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	e := &model.TrendingEntry{ProductID: productID}
	e.TrendScore, _ = strconv.ParseFloat(fields["trend_score"], 64)
	e.ClickVelocity, _ = strconv.ParseFloat(fields["click_velocity"], 64)
	if t, err := time.Parse(timestampLayout, fields["first_seen"]); err == nil {
		e.FirstSeen = t
	}
	if t, err := time.Parse(timestampLayout, fields["last_seen"]); err == nil {
		e.LastSeen = t
	}
	return e, nil
}

// eventMember encodes one append-only log entry. The sequence keeps members
// unique within a millisecond; the impact rides along so readers get the
// full event back without a second lookup.
func eventMember(ms, seq int64, impact float64) string {
	return fmt.Sprintf("%d-%d-%s", ms, seq, strconv.FormatFloat(impact, 'f', -1, 64))
}

// Events returns the append-only log entries for a product and action since
// the given instant, oldest first.
func (s *Store) Events(ctx context.Context, productID, action string, since time.Time) ([]model.HistoryEvent, error) {
	zs, err := s.rdb.ZRangeByScoreWithScores(ctx, eventKey(productID, action), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	out := make([]model.HistoryEvent, 0, len(zs))
	for _, z := range zs {
		ev := model.HistoryEvent{
			ProductID: productID,
			Action:    action,
			Timestamp: time.UnixMilli(int64(z.Score)),
		}
		if parts := strings.SplitN(z.Member.(string), "-", 3); len(parts) == 3 {
			ev.ScoreImpact, _ = strconv.ParseFloat(parts[2], 64)
		}
		out = append(out, ev)
	}
	return out, nil
}

// ClicksSince counts click events for a product after the given instant.
func (s *Store) ClicksSince(ctx context.Context, productID string, since time.Time) (int64, error) {
	n, err := s.rdb.ZCount(ctx, eventKey(productID, model.ActionClick),
		strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count clicks: %w", err)
	}
	return n, nil
}

// CanPost decides whether a product may be posted now.
//
// Never-posted products always may. Within 48h of the last post only a forced
// post or a high performer (conversion > 80 and clicks > 50) gets through.
// Poor performers (conversion < 30) are additionally held back for 72h.
func (s *Store) CanPost(ctx context.Context, productID string, forcePost bool) (bool, error) {
	rec, err := s.PostingRecord(ctx, productID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return true, nil
	}
	sincePost := s.now().Sub(rec.PostedAt)
	if sincePost < repostCooldown {
		if forcePost || (rec.ConversionScore > highPerfScore && rec.Clicks > highPerfClicks) {
			slog.Info("history: repeating high-performance product.", "id", productID)
			return true, nil
		}
		return false, nil
	}
	if rec.ConversionScore < poorPerfScore && sincePost < poorPerfCooldown {
		return false, nil
	}
	return true, nil
}

// RecordPost upserts the posting record and appends a post event.
func (s *Store) RecordPost(ctx context.Context, p model.Product, score float64) error {
	now := s.now()
	seq, err := s.rdb.Incr(ctx, eventSeqKey).Result()
	if err != nil {
		return fmt.Errorf("record post: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, postedKey(p.ID),
			"posted_at", now.Format(timestampLayout),
			"conversion_score", strconv.FormatFloat(score, 'f', -1, 64),
			"category", p.Category,
			"discount", strconv.FormatFloat(p.Discount, 'f', -1, 64),
			"rating", strconv.FormatFloat(p.Rating, 'f', -1, 64),
			"volume", strconv.Itoa(p.Volume),
			"title", p.Title,
			"affiliate_url", p.AffiliateURL,
		)
		pipe.HSetNX(ctx, postedKey(p.ID), "clicks", "0")
		pipe.HSetNX(ctx, postedKey(p.ID), "engagement_score", "0")
		pipe.SAdd(ctx, postedIDsKey, p.ID)
		pipe.ZAdd(ctx, eventKey(p.ID, model.ActionPost), redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: eventMember(now.UnixMilli(), seq, score),
		})
		pipe.SAdd(ctx, historyIDsKey, p.ID)
		pipe.Incr(ctx, totalPostsKey)
		pipe.ZIncrBy(ctx, clicksRankKey, 0, p.ID)
		if p.Category != "" {
			pipe.HIncrBy(ctx, categoryKey(p.Category), "total_posts", 1)
			pipe.HIncrByFloat(ctx, categoryKey(p.Category), "conversion_sum", score)
			pipe.HSet(ctx, categoryKey(p.Category), "last_updated", now.Format(timestampLayout))
			pipe.SAdd(ctx, categoryIDsKey, p.Category)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record post: %w", err)
	}
	return nil
}

// RecordClick increments the click counter, appends a click event and
// recomputes the product's trend entry from the trailing-hour velocity.
func (s *Store) RecordClick(ctx context.Context, productID string) error {
	now := s.now()
	seq, err := s.rdb.Incr(ctx, eventSeqKey).Result()
	if err != nil {
		return fmt.Errorf("record click: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, postedKey(productID), "clicks", 1)
		pipe.HSet(ctx, postedKey(productID), "last_click_at", now.Format(timestampLayout))
		pipe.ZAdd(ctx, eventKey(productID, model.ActionClick), redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: eventMember(now.UnixMilli(), seq, clickImpact),
		})
		pipe.SAdd(ctx, historyIDsKey, productID)
		pipe.Incr(ctx, totalClicksKey)
		pipe.ZIncrBy(ctx, clicksRankKey, 1, productID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record click: %w", err)
	}
	if cat, err := s.rdb.HGet(ctx, postedKey(productID), "category").Result(); err == nil && cat != "" {
		if err := s.rdb.HIncrBy(ctx, categoryKey(cat), "total_clicks", 1).Err(); err != nil {
			slog.Error("history: category click update failed.", "category", cat, "error", err)
		}
	}
	return s.updateTrending(ctx, productID, now)
}

func (s *Store) updateTrending(ctx context.Context, productID string, now time.Time) error {
	velocity, err := s.ClicksSince(ctx, productID, now.Add(-velocityWindow))
	if err != nil {
		return err
	}
	trendScore := float64(velocity) * velocityMultiple
	if trendScore > velocityScoreCap {
		trendScore = velocityScoreCap
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, trendingKey(productID), "first_seen", now.Format(timestampLayout))
		pipe.HSet(ctx, trendingKey(productID),
			"trend_score", strconv.FormatFloat(trendScore, 'f', -1, 64),
			"click_velocity", strconv.FormatInt(velocity, 10),
			"last_seen", now.Format(timestampLayout),
		)
		pipe.ZAdd(ctx, trendingIdxKey, redis.Z{Score: float64(now.UnixMilli()), Member: productID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("update trending: %w", err)
	}
	return nil
}

// Cleanup prunes trending entries idle past the trending horizon and history
// events older than the history horizon. Runs independently of planning.
func (s *Store) Cleanup(ctx context.Context) error {
	now := s.now()
	trendCutoff := strconv.FormatInt(now.Add(-s.trendMaxAge).UnixMilli(), 10)
	stale, err := s.rdb.ZRangeByScore(ctx, trendingIdxKey, &redis.ZRangeBy{
		Min: "-inf", Max: trendCutoff,
	}).Result()
	if err != nil {
		return fmt.Errorf("cleanup trending index: %w", err)
	}
	for _, id := range stale {
		if err := s.rdb.Del(ctx, trendingKey(id)).Err(); err != nil {
			slog.Error("history: delete trending entry failed.", "id", id, "error", err)
		}
	}
	if len(stale) > 0 {
		if err := s.rdb.ZRemRangeByScore(ctx, trendingIdxKey, "-inf", trendCutoff).Err(); err != nil {
			return fmt.Errorf("cleanup trending index: %w", err)
		}
	}

	histCutoff := strconv.FormatInt(now.Add(-s.historyMaxAge).UnixMilli(), 10)
	ids, err := s.rdb.SMembers(ctx, historyIDsKey).Result()
	if err != nil {
		return fmt.Errorf("cleanup history ids: %w", err)
	}
	for _, id := range ids {
		remaining := int64(0)
		for _, action := range []string{model.ActionPost, model.ActionClick} {
			key := eventKey(id, action)
			if err := s.rdb.ZRemRangeByScore(ctx, key, "-inf", histCutoff).Err(); err != nil {
				slog.Error("history: prune events failed.", "id", id, "action", action, "error", err)
				continue
			}
			n, err := s.rdb.ZCard(ctx, key).Result()
			if err == nil {
				remaining += n
			}
		}
		if remaining == 0 {
			if err := s.rdb.SRem(ctx, historyIDsKey, id).Err(); err != nil {
				slog.Error("history: drop empty history id failed.", "id", id, "error", err)
			}
		}
	}
	slog.Info("history: cleanup completed.", "stale_trending", len(stale), "history_ids", len(ids))
	return nil
}

// Statistics returns a best-effort summary. Store failures degrade the
// affected figure to zero/empty instead of failing the call.
func (s *Store) Statistics(ctx context.Context) model.Statistics {
	var stats model.Statistics
	if n, err := s.rdb.Get(ctx, totalPostsKey).Int64(); err == nil {
		stats.TotalPosts = n
	} else if !errors.Is(err, redis.Nil) {
		slog.Error("history: total posts lookup failed.", "error", err)
	}
	if n, err := s.rdb.Get(ctx, totalClicksKey).Int64(); err == nil {
		stats.TotalClicks = n
	} else if !errors.Is(err, redis.Nil) {
		slog.Error("history: total clicks lookup failed.", "error", err)
	}

	if ids, err := s.rdb.SMembers(ctx, postedIDsKey).Result(); err == nil && len(ids) > 0 {
		var sum float64
		var count int
		for _, id := range ids {
			v, err := s.rdb.HGet(ctx, postedKey(id), "conversion_score").Float64()
			if err != nil {
				continue
			}
			sum += v
			count++
		}
		if count > 0 {
			stats.AvgScore = sum / float64(count)
		}
	} else if err != nil {
		slog.Error("history: posted ids lookup failed.", "error", err)
	}

	top, err := s.rdb.ZRevRangeWithScores(ctx, clicksRankKey, 0, statisticsTopSize-1).Result()
	if err != nil {
		slog.Error("history: clicks leaderboard lookup failed.", "error", err)
		return stats
	}
	for _, z := range top {
		id, _ := z.Member.(string)
		title, err := s.rdb.HGet(ctx, postedKey(id), "title").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			continue
		}
		stats.TopProducts = append(stats.TopProducts, model.TopProduct{
			ProductID: id,
			Title:     title,
			Clicks:    int64(z.Score),
		})
	}
	return stats
}

// CategoryMetrics returns the per-category aggregates, best-effort.
func (s *Store) CategoryMetrics(ctx context.Context) []model.CategoryMetric {
	cats, err := s.rdb.SMembers(ctx, categoryIDsKey).Result()
	if err != nil {
		slog.Error("history: category ids lookup failed.", "error", err)
		return nil
	}
	out := make([]model.CategoryMetric, 0, len(cats))
	for _, c := range cats {
		fields, err := s.rdb.HGetAll(ctx, categoryKey(c)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		m := model.CategoryMetric{Category: c}
		m.TotalPosts, _ = strconv.ParseInt(fields["total_posts"], 10, 64)
		m.TotalClicks, _ = strconv.ParseInt(fields["total_clicks"], 10, 64)
		if sum, err := strconv.ParseFloat(fields["conversion_sum"], 64); err == nil && m.TotalPosts > 0 {
			m.AvgConversion = sum / float64(m.TotalPosts)
		}
		if t, err := time.Parse(timestampLayout, fields["last_updated"]); err == nil {
			m.LastUpdated = t
		}
		out = append(out, m)
	}
	return out
}

// AffiliateURL resolves the stored affiliate link for a posted product.
func (s *Store) AffiliateURL(ctx context.Context, productID string) (string, error) {
	u, err := s.rdb.HGet(ctx, postedKey(productID), "affiliate_url").Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load affiliate url: %w", err)
	}
	return u, nil
}
