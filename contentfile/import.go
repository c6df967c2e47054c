package contentfile

import (
	"context"
	"fmt"

	"campusquest/models"
	"campusquest/services"
)

// Creator is the subset of the content service an import needs.
type Creator interface {
	CreateQuiz(ctx context.Context, in services.QuizInput) (*models.Quiz, error)
	CreateFlashcardSet(ctx context.Context, in services.FlashcardSetInput) (*models.FlashcardSet, error)
	CreateChallenge(ctx context.Context, in services.ChallengeInput) (*models.Challenge, error)
}

type Summary struct {
	Quizzes       int
	FlashcardSets int
	Challenges    int
}

// Import creates everything in b, stopping at the first failure. createdBy,
// when non-nil, is used for items that name no creator.
func Import(ctx context.Context, c Creator, b Bundle, createdBy *uint) (Summary, error) {
	var s Summary
	for i, q := range b.Quizzes {
		if q.CreatedBy == nil {
			q.CreatedBy = createdBy
		}
		if _, err := c.CreateQuiz(ctx, q); err != nil {
			return s, fmt.Errorf("quizzes[%d] %q: %s", i, q.Title, services.Message(err))
		}
		s.Quizzes++
	}
	for i, set := range b.FlashcardSets {
		if set.CreatedBy == nil {
			set.CreatedBy = createdBy
		}
		if _, err := c.CreateFlashcardSet(ctx, set); err != nil {
			return s, fmt.Errorf("flashcardSets[%d] %q: %s", i, set.Title, services.Message(err))
		}
		s.FlashcardSets++
	}
	for i, ch := range b.Challenges {
		if ch.CreatedBy == nil {
			ch.CreatedBy = createdBy
		}
		if _, err := c.CreateChallenge(ctx, ch); err != nil {
			return s, fmt.Errorf("challenges[%d] %q: %s", i, ch.Title, services.Message(err))
		}
		s.Challenges++
	}
	return s, nil
}
