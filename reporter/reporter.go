package reporter

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jhaldar/sprout/models"
	"github.com/jhaldar/sprout/queue"
	"github.com/jhaldar/sprout/report"
	"github.com/jhaldar/sprout/storage/cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the slice of the storage backend the reporter needs: the profile
// (subjects, behavior catalog, week start day) and the live day-record
// subscription.
type Store interface {
	FindProfile(ctx context.Context, filter interface{}) (*models.Profile, error)
	SubscribeDayRecords(ctx context.Context, profileID primitive.ObjectID) (<-chan models.Snapshot, error)
}

// Notifier receives reward-tier crossing announcements.
type Notifier interface {
	NotifyTier(msg *queue.TierMessage) error
}

// Config tunes a Reporter. Zero values fall back to month mode, the default
// tier ladder, and the wall clock.
type Config struct {
	// Mode picks the period kept warm in the cache.
	Mode report.Mode
	// Tiers is the reward ladder evaluated against each child's total.
	Tiers []report.Tier
	// NotifyEmail receives tier notifications.
	NotifyEmail string
	// Now supplies the anchor date; tests pin it.
	Now func() time.Time
}

// Reporter consumes day-record snapshots for one profile and keeps derived
// state current: it recomputes every child's report for the configured
// period from scratch on each snapshot, stores the rendered CSV in the
// cache, and announces upward reward-tier crossings. All computation happens
// on the single Run goroutine; each snapshot is a complete, independent
// input, so no two snapshots ever mix into one report.
type Reporter struct {
	store    Store
	cache    cache.CacheInterface
	notifier Notifier
	cfg      Config

	// Highest tier minimum already announced per child, to turn the level
	// signal into an edge signal.
	announced map[string]int
}

// New creates a Reporter over the given collaborators.
func New(store Store, reportCache cache.CacheInterface, notifier Notifier, cfg Config) *Reporter {
	if cfg.Mode == "" {
		cfg.Mode = report.ModeMonth
	}
	if cfg.Tiers == nil {
		cfg.Tiers = report.DefaultTiers()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reporter{
		store:     store,
		cache:     reportCache,
		notifier:  notifier,
		cfg:       cfg,
		announced: map[string]int{},
	}
}

// ReportKey is the cache key for a child's rendered report.
func ReportKey(profileID primitive.ObjectID, childID, periodLabel string) string {
	return fmt.Sprintf("report_%s_%s_%s", profileID.Hex(), childID, periodLabel)
}

// Run subscribes to the profile's day records and processes snapshots until
// the context is cancelled or the subscription closes. If snapshots arrive
// faster than they are processed, the pending one is superseded and only the
// newest is computed (last-snapshot-wins).
func (r *Reporter) Run(ctx context.Context, profileID primitive.ObjectID) error {
	snapshots, err := r.store.SubscribeDayRecords(ctx, profileID)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			// Skip ahead to the newest pending snapshot.
			for {
				select {
				case newer, ok := <-snapshots:
					if !ok {
						r.process(ctx, profileID, snap)
						return nil
					}
					snap = newer
					continue
				default:
				}
				break
			}
			r.process(ctx, profileID, snap)
		}
	}
}

// process recomputes all derived state from one snapshot. Failures on one
// child never leave a partial report behind: each child's cache entry is
// replaced atomically with a complete rendering or not at all.
func (r *Reporter) process(ctx context.Context, profileID primitive.ObjectID, snap models.Snapshot) {
	profile, err := r.store.FindProfile(ctx, bson.M{"_id": profileID})
	if err != nil {
		log.Printf("error loading profile for snapshot %s: %v", snap.ID, err)
		return
	}

	rng, err := report.Resolve(r.cfg.Mode, r.cfg.Now().UTC(), time.Weekday(profile.WeekStartDay))
	if err != nil {
		log.Printf("error resolving period: %v", err)
		return
	}

	enabled := profile.EnabledBehaviors()
	for _, child := range profile.Children {
		rep := report.Build(snap.Records, child.ID, rng)

		rendered, err := report.ExportCSV(rep, child.Name, enabled)
		if err != nil {
			log.Printf("error rendering report for child %s: %v", child.ID, err)
			continue
		}
		if err := r.cache.Set(ctx, ReportKey(profileID, child.ID, rng.Label), rendered); err != nil {
			log.Printf("error caching report for child %s: %v", child.ID, err)
		}

		r.announce(profileID, child, rep)
	}
}

// announce publishes a tier notification when a child's total first reaches
// a tier above anything announced for them before.
func (r *Reporter) announce(profileID primitive.ObjectID, child models.Child, rep report.Report) {
	tier, ok := report.Evaluate(rep.Total, r.cfg.Tiers)
	if !ok || tier.Minimum <= r.announced[child.ID] {
		return
	}

	if r.notifier != nil {
		msg := &queue.TierMessage{
			Id:          fmt.Sprintf("%s_%s_%s_%s", profileID.Hex(), child.ID, tier.ID, rep.Label),
			To:          r.cfg.NotifyEmail,
			ChildName:   child.Name,
			TierLabel:   tier.Label,
			TierMarker:  tier.Marker,
			Total:       rep.Total,
			PeriodLabel: rep.Label,
		}
		if err := r.notifier.NotifyTier(msg); err != nil {
			log.Printf("error publishing tier notification: %v", err)
			return
		}
	}
	r.announced[child.ID] = tier.Minimum
}
