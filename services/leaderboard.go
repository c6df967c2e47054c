package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"campusquest/cache"
	"campusquest/levels"
	"campusquest/logger"
	"campusquest/models"
)

type LeaderboardFilter string

const (
	FilterOverall LeaderboardFilter = "overall"
	FilterCollege LeaderboardFilter = "college"
	FilterMajor   LeaderboardFilter = "major"
	FilterClass   LeaderboardFilter = "class"

	defaultLeaderboardLimit = 100
)

type LeaderboardQuery struct {
	Filter    LeaderboardFilter
	College   string
	Major     string
	ClassYear string
	Limit     int
}

// column returns the profile column and value to filter on. A filter
// without its value falls back to the overall board.
func (q LeaderboardQuery) column() (string, string) {
	switch q.Filter {
	case FilterCollege:
		if v := strings.TrimSpace(q.College); v != "" {
			return "college", v
		}
	case FilterMajor:
		if v := strings.TrimSpace(q.Major); v != "" {
			return "major", v
		}
	case FilterClass:
		if v := strings.TrimSpace(q.ClassYear); v != "" {
			return "class_year", v
		}
	}
	return "", ""
}

func (q LeaderboardQuery) limit() int {
	if q.Limit <= 0 || q.Limit > maxListLimit {
		return defaultLeaderboardLimit
	}
	return q.Limit
}

func (q LeaderboardQuery) cacheKey() string {
	col, val := q.column()
	if col == "" {
		col = "overall"
	}
	return col + ":" + val + ":" + strconv.Itoa(q.limit())
}

type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	UserID    uint   `json:"userId"`
	Name      string `json:"name"`
	XP        int    `json:"xp"`
	Level     int    `json:"level"`
	Major     string `json:"major"`
	College   string `json:"college"`
	ClassYear string `json:"classYear"`
}

type Rank struct {
	Rank  int64 `json:"rank"`
	Total int64 `json:"total"`
}

type UserRankings struct {
	Overall Rank  `json:"overall"`
	College *Rank `json:"college"`
	Major   *Rank `json:"major"`
	Class   *Rank `json:"class"`
}

// Leaderboard ranks profiles by XP, then display name.
type Leaderboard struct {
	db    *gorm.DB
	store cache.Store
	ttl   time.Duration
	group singleflight.Group
	log   *logger.Logger
}

func NewLeaderboard(db *gorm.DB, store cache.Store, ttl time.Duration, log *logger.Logger) *Leaderboard {
	if store == nil {
		store = cache.NewMemory()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Leaderboard{db: db, store: store, ttl: ttl, log: log.With("component", "leaderboard")}
}

// Invalidate drops every cached board. Progression calls it after each
// committed XP change.
func (l *Leaderboard) Invalidate(ctx context.Context) error {
	return l.store.Invalidate(ctx)
}

func (l *Leaderboard) Top(ctx context.Context, q LeaderboardQuery) ([]LeaderboardEntry, error) {
	key := q.cacheKey()

	// The generation is read before the query so that an award committed
	// while the query runs invalidates this result too.
	gen, err := l.store.Generation(ctx)
	if err != nil {
		l.log.Warn("leaderboard cache unavailable", "key", key, "error", err)
		return l.query(ctx, q)
	}

	if raw, ok, err := l.store.Get(ctx, gen, key); err != nil {
		l.log.Warn("leaderboard cache read failed", "key", key, "error", err)
	} else if ok {
		var entries []LeaderboardEntry
		if err := json.Unmarshal(raw, &entries); err == nil {
			return entries, nil
		}
	}

	v, err, _ := l.group.Do(strconv.FormatInt(gen, 10)+":"+key, func() (interface{}, error) {
		entries, err := l.query(ctx, q)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(entries); err == nil {
			if err := l.store.Set(ctx, gen, key, raw, l.ttl); err != nil {
				l.log.Warn("leaderboard cache write failed", "key", key, "error", err)
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]LeaderboardEntry), nil
}

func (l *Leaderboard) query(ctx context.Context, q LeaderboardQuery) ([]LeaderboardEntry, error) {
	db := l.db.WithContext(ctx).Model(&models.UserProfile{})
	if col, val := q.column(); col != "" {
		db = db.Where(col+" = ?", val)
	}
	var profiles []models.UserProfile
	if err := db.Order("xp DESC").Order("display_name ASC").Order("user_id ASC").
		Limit(q.limit()).Find(&profiles).Error; err != nil {
		return nil, mapStoreError("load leaderboard", err)
	}

	entries := make([]LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		entries = append(entries, LeaderboardEntry{
			Rank:      i + 1,
			UserID:    p.UserID,
			Name:      p.DisplayName,
			XP:        p.XP,
			Level:     levels.LevelFor(p.XP),
			Major:     p.Major,
			College:   p.College,
			ClassYear: p.ClassYear,
		})
	}
	return entries, nil
}

// UserRankings places one user on the overall board and on each cohort
// board they belong to. Cohorts the user has not set are nil.
func (l *Leaderboard) UserRankings(ctx context.Context, userID uint) (UserRankings, error) {
	if userID == 0 {
		return UserRankings{}, ValidationError("userId is required")
	}
	db := l.db.WithContext(ctx)

	var me models.UserProfile
	if err := db.Where("user_id = ?", userID).Take(&me).Error; err != nil {
		return UserRankings{}, mapStoreError("load profile", notFoundAs(err, "user"))
	}

	rank := func(col, val string) (Rank, error) {
		scope := func() *gorm.DB {
			q := db.Model(&models.UserProfile{})
			if col != "" {
				q = q.Where(col+" = ?", val)
			}
			return q
		}
		var r Rank
		if err := scope().
			Where("(xp > ? OR (xp = ? AND display_name < ?) OR (xp = ? AND display_name = ? AND user_id < ?))",
				me.XP, me.XP, me.DisplayName, me.XP, me.DisplayName, me.UserID).
			Count(&r.Rank).Error; err != nil {
			return r, mapStoreError("rank user", err)
		}
		r.Rank++
		if err := scope().Count(&r.Total).Error; err != nil {
			return r, mapStoreError("count users", err)
		}
		return r, nil
	}

	var out UserRankings
	var err error
	if out.Overall, err = rank("", ""); err != nil {
		return UserRankings{}, err
	}
	cohorts := []struct {
		col string
		val string
		dst **Rank
	}{
		{"college", me.College, &out.College},
		{"major", me.Major, &out.Major},
		{"class_year", me.ClassYear, &out.Class},
	}
	for _, c := range cohorts {
		if strings.TrimSpace(c.val) == "" {
			continue
		}
		r, err := rank(c.col, c.val)
		if err != nil {
			return UserRankings{}, err
		}
		*c.dst = &r
	}
	return out, nil
}

func notFoundAs(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError(what)
	}
	return err
}
