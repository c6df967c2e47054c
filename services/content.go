package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"campusquest/database"
	"campusquest/models"
)

const (
	defaultChallengeDescription = "No description"
	defaultChallengeCategory    = "Study"
	defaultChallengeReward      = 500
	defaultChallengeTarget      = 10
	defaultChallengeDays        = 14
	maxListLimit                = 100
)

type ChoiceInput struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuestionInput struct {
	Text    string        `json:"text"`
	Choices []ChoiceInput `json:"choices"`
}

type QuizInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	IsPublic    *bool           `json:"isPublic"`
	CreatedBy   *uint           `json:"createdBy"`
	Questions   []QuestionInput `json:"questions"`
}

type CardInput struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type FlashcardSetInput struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	IsPublic    *bool       `json:"isPublic"`
	CreatedBy   *uint       `json:"createdBy"`
	Cards       []CardInput `json:"cards"`
}

type ChallengeInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	XPReward    *int       `json:"xpReward"`
	MaxProgress *int       `json:"maxProgress"`
	EndDate     *time.Time `json:"endDate"`
	CreatedBy   *uint      `json:"createdBy"`
}

type ListOptions struct {
	Category string
	Limit    int
	Offset   int
}

func (o ListOptions) normalized() ListOptions {
	if o.Limit <= 0 || o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	o.Category = strings.TrimSpace(o.Category)
	return o
}

// ChallengeSummary is an active challenge with its participant count.
type ChallengeSummary struct {
	models.Challenge
	CreatedByName string `json:"created_by_name,omitempty"`
	Participants  int64  `json:"participants"`
}

// UserChallenge is one user's normalized standing on a challenge.
type UserChallenge struct {
	models.Challenge
	Progress    int        `json:"progress"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	XPEarned    int        `json:"xp_earned"`
	Joined      bool       `json:"joined"`
	JoinedAt    *time.Time `json:"joined_at"`
	State       string     `json:"state"`
}

// Content manages quizzes, flashcard sets and challenge definitions.
type Content struct {
	db    *gorm.DB
	tx    *database.TxRunner
	clock Clock
	prog  *Progression
}

func NewContent(db *gorm.DB, clock Clock, prog *Progression) *Content {
	if clock == nil {
		clock = NewSystemClock(time.Local)
	}
	return &Content{db: db, tx: database.NewTxRunner(db), clock: clock, prog: prog}
}

// ---- quizzes ----

func (c *Content) CreateQuiz(ctx context.Context, in QuizInput) (*models.Quiz, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ValidationError("title is required")
	}
	if len(in.Questions) == 0 {
		return nil, ValidationError("a quiz needs at least one question")
	}

	quiz := &models.Quiz{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		IsPublic:    in.IsPublic == nil || *in.IsPublic,
		CreatedBy:   in.CreatedBy,
	}
	for i, q := range in.Questions {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			return nil, ValidationError("question text is required")
		}
		if len(q.Choices) < 2 {
			return nil, ValidationError("each question needs at least two choices")
		}
		question := models.QuizQuestion{Position: i, Text: text}
		correct := 0
		for j, ch := range q.Choices {
			if strings.TrimSpace(ch.Text) == "" {
				return nil, ValidationError("choice text is required")
			}
			if ch.IsCorrect {
				correct++
			}
			question.Choices = append(question.Choices, models.QuizChoice{
				Position:  j,
				Text:      strings.TrimSpace(ch.Text),
				IsCorrect: ch.IsCorrect,
			})
		}
		if correct == 0 {
			return nil, ValidationError("each question needs a correct choice")
		}
		quiz.Questions = append(quiz.Questions, question)
	}

	if err := c.db.WithContext(ctx).Create(quiz).Error; err != nil {
		return nil, mapStoreError("create quiz", err)
	}
	return quiz, nil
}

func (c *Content) ListQuizzes(ctx context.Context, opts ListOptions) ([]models.Quiz, error) {
	opts = opts.normalized()
	q := c.db.WithContext(ctx).Where("is_public = ?", true)
	if opts.Category != "" {
		q = q.Where("category = ?", opts.Category)
	}
	var quizzes []models.Quiz
	if err := q.Order("created_at DESC").Order("id DESC").Limit(opts.Limit).Offset(opts.Offset).Find(&quizzes).Error; err != nil {
		return nil, mapStoreError("list quizzes", err)
	}
	return quizzes, nil
}

func (c *Content) GetQuiz(ctx context.Context, id uint) (*models.Quiz, error) {
	var quiz models.Quiz
	err := c.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Questions.Choices", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Take(&quiz, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("quiz")
		}
		return nil, mapStoreError("get quiz", err)
	}
	return &quiz, nil
}

// ---- flashcards ----

func (c *Content) CreateFlashcardSet(ctx context.Context, in FlashcardSetInput) (*models.FlashcardSet, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ValidationError("title is required")
	}
	if len(in.Cards) == 0 {
		return nil, ValidationError("a flashcard set needs at least one card")
	}

	set := &models.FlashcardSet{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		IsPublic:    in.IsPublic == nil || *in.IsPublic,
		CreatedBy:   in.CreatedBy,
	}
	for i, card := range in.Cards {
		term, def := strings.TrimSpace(card.Term), strings.TrimSpace(card.Definition)
		if term == "" || def == "" {
			return nil, ValidationError("each card needs a term and a definition")
		}
		set.Cards = append(set.Cards, models.FlashcardCard{Position: i, Term: term, Definition: def})
	}

	if err := c.db.WithContext(ctx).Create(set).Error; err != nil {
		return nil, mapStoreError("create flashcard set", err)
	}
	return set, nil
}

func (c *Content) ListFlashcardSets(ctx context.Context, opts ListOptions) ([]models.FlashcardSet, error) {
	opts = opts.normalized()
	q := c.db.WithContext(ctx).Where("is_public = ?", true)
	if opts.Category != "" {
		q = q.Where("category = ?", opts.Category)
	}
	var sets []models.FlashcardSet
	if err := q.Order("created_at DESC").Order("id DESC").Limit(opts.Limit).Offset(opts.Offset).Find(&sets).Error; err != nil {
		return nil, mapStoreError("list flashcard sets", err)
	}
	return sets, nil
}

func (c *Content) GetFlashcardSet(ctx context.Context, id uint) (*models.FlashcardSet, error) {
	var set models.FlashcardSet
	err := c.db.WithContext(ctx).
		Preload("Cards", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Take(&set, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("flashcard set")
		}
		return nil, mapStoreError("get flashcard set", err)
	}
	return &set, nil
}

// ---- challenges ----

// CreateChallenge stores a challenge definition, filling defaults for
// omitted fields. The creator, if any, is joined to it in the same
// transaction.
func (c *Content) CreateChallenge(ctx context.Context, in ChallengeInput) (*models.Challenge, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ValidationError("title is required")
	}

	now := c.clock.Now()
	loc := c.clock.Location()

	ch := &models.Challenge{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		XPReward:    defaultChallengeReward,
		MaxProgress: defaultChallengeTarget,
		CreatedBy:   in.CreatedBy,
		EndDate:     StartOfDay(now, loc).AddDate(0, 0, defaultChallengeDays).UTC(),
	}
	if ch.Description == "" {
		ch.Description = defaultChallengeDescription
	}
	if ch.Category == "" {
		ch.Category = defaultChallengeCategory
	}
	if in.XPReward != nil {
		if *in.XPReward < 0 {
			return nil, ValidationError("xpReward must not be negative")
		}
		ch.XPReward = *in.XPReward
	}
	if in.MaxProgress != nil {
		if *in.MaxProgress < 1 {
			return nil, ValidationError("maxProgress must be at least 1")
		}
		ch.MaxProgress = *in.MaxProgress
	}
	if in.EndDate != nil {
		end := StartOfDay(*in.EndDate, loc)
		if end.Before(StartOfDay(now, loc)) {
			return nil, ValidationError("endDate must not be in the past")
		}
		ch.EndDate = end.UTC()
	}

	err := c.tx.InTx(ctx, func(tx *gorm.DB) error {
		if in.CreatedBy != nil {
			var n int64
			if err := tx.Model(&models.UserProfile{}).Where("user_id = ?", *in.CreatedBy).Count(&n).Error; err != nil {
				return mapStoreError("check creator", err)
			}
			if n == 0 {
				return NotFoundError("user")
			}
		}
		if err := tx.Create(ch).Error; err != nil {
			return mapStoreError("create challenge", err)
		}
		if in.CreatedBy == nil {
			return nil
		}
		join := models.ChallengeProgress{ChallengeID: ch.ID, UserID: *in.CreatedBy, JoinedAt: now.UTC()}
		if err := tx.Create(&join).Error; err != nil {
			return mapStoreError("join creator", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// ListActiveChallenges returns challenges whose end date is today or later.
func (c *Content) ListActiveChallenges(ctx context.Context) ([]ChallengeSummary, error) {
	today := StartOfDay(c.clock.Now(), c.clock.Location()).UTC()
	db := c.db.WithContext(ctx)

	var challenges []models.Challenge
	if err := db.Where("end_date >= ?", today).Order("created_at DESC").Order("id DESC").Find(&challenges).Error; err != nil {
		return nil, mapStoreError("list challenges", err)
	}
	if len(challenges) == 0 {
		return []ChallengeSummary{}, nil
	}

	ids := make([]uint, 0, len(challenges))
	creators := make([]uint, 0, len(challenges))
	for _, ch := range challenges {
		ids = append(ids, ch.ID)
		if ch.CreatedBy != nil {
			creators = append(creators, *ch.CreatedBy)
		}
	}

	var counts []struct {
		ChallengeID uint
		N           int64
	}
	if err := db.Model(&models.ChallengeProgress{}).
		Select("challenge_id, COUNT(*) AS n").
		Where("challenge_id IN ?", ids).
		Group("challenge_id").
		Scan(&counts).Error; err != nil {
		return nil, mapStoreError("count participants", err)
	}
	byChallenge := make(map[uint]int64, len(counts))
	for _, row := range counts {
		byChallenge[row.ChallengeID] = row.N
	}

	names := map[uint]string{}
	if len(creators) > 0 {
		var profiles []models.UserProfile
		if err := db.Select("user_id", "display_name").Where("user_id IN ?", creators).Find(&profiles).Error; err != nil {
			return nil, mapStoreError("load creators", err)
		}
		for _, p := range profiles {
			names[p.UserID] = p.DisplayName
		}
	}

	out := make([]ChallengeSummary, 0, len(challenges))
	for _, ch := range challenges {
		s := ChallengeSummary{Challenge: ch, Participants: byChallenge[ch.ID]}
		if ch.CreatedBy != nil {
			s.CreatedByName = names[*ch.CreatedBy]
		}
		out = append(out, s)
	}
	return out, nil
}

// ListUserChallenges returns every active challenge plus any expired one
// the user joined, each with the user's progress. Challenges the user has
// not joined report zero progress. Stale completions are reset before they
// are reported.
func (c *Content) ListUserChallenges(ctx context.Context, userID uint) ([]UserChallenge, error) {
	if userID == 0 {
		return nil, ValidationError("userId is required")
	}
	db := c.db.WithContext(ctx)
	now := c.clock.Now()
	loc := c.clock.Location()
	today := StartOfDay(now, loc).UTC()

	var rows []models.ChallengeProgress
	if err := db.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, mapStoreError("list user challenges", err)
	}
	byChallenge := make(map[uint]models.ChallengeProgress, len(rows))
	joined := make([]uint, 0, len(rows))
	for _, r := range rows {
		byChallenge[r.ChallengeID] = r
		joined = append(joined, r.ChallengeID)
	}

	q := db.Where("end_date >= ?", today)
	if len(joined) > 0 {
		q = db.Where("end_date >= ? OR id IN ?", today, joined)
	}
	var challenges []models.Challenge
	if err := q.Order("created_at DESC").Order("id DESC").Find(&challenges).Error; err != nil {
		return nil, mapStoreError("load challenges", err)
	}

	out := make([]UserChallenge, 0, len(challenges))
	for _, ch := range challenges {
		row, ok := byChallenge[ch.ID]
		if !ok {
			out = append(out, UserChallenge{Challenge: ch, State: ChallengeNotStarted.String()})
			continue
		}
		if ClassifyChallenge(&row, now, loc) == ChallengeCompletedStale {
			fresh, _, err := c.prog.normalizeUnderLock(ctx, row.ChallengeID, row.UserID)
			if err != nil {
				return nil, err
			}
			row = fresh
		}
		joinedAt := row.JoinedAt
		out = append(out, UserChallenge{
			Challenge:   ch,
			Joined:      true,
			Progress:    row.Progress,
			Completed:   row.Completed,
			CompletedAt: row.CompletedAt,
			XPEarned:    row.XPEarned,
			JoinedAt:    &joinedAt,
			State:       ClassifyChallenge(&row, now, loc).String(),
		})
	}
	return out, nil
}
