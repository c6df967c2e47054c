// Package contentfile reads and checks seed content for quizzes,
// flashcard sets and challenges.
package contentfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"campusquest/services"
)

// Bundle is the JSON seed file layout.
type Bundle struct {
	Quizzes       []services.QuizInput         `json:"quizzes"`
	FlashcardSets []services.FlashcardSetInput `json:"flashcardSets"`
	Challenges    []services.ChallengeInput    `json:"challenges"`
}

// Problem is one lint finding. Line is zero for JSON findings.
type Problem struct {
	Where   string
	Line    int
	Message string
}

func (p Problem) String() string {
	if p.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", p.Where, p.Line, p.Message)
	}
	return fmt.Sprintf("%s: %s", p.Where, p.Message)
}

// Load reads a JSON bundle from path.
func Load(path string) (Bundle, error) {
	var b Bundle
	data, err := os.ReadFile(path)
	if err != nil {
		return b, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("parse %s: %w", path, err)
	}
	return b, nil
}

// Lint checks a bundle against the rules the content service enforces on
// create, so a bad file is rejected before anything is written.
func Lint(b Bundle) []Problem {
	var out []Problem
	add := func(where, format string, args ...interface{}) {
		out = append(out, Problem{Where: where, Message: fmt.Sprintf(format, args...)})
	}

	for i, q := range b.Quizzes {
		where := fmt.Sprintf("quizzes[%d]", i)
		if strings.TrimSpace(q.Title) == "" {
			add(where, "title is required")
		}
		if len(q.Questions) == 0 {
			add(where, "needs at least one question")
		}
		for j, question := range q.Questions {
			qwhere := fmt.Sprintf("%s.questions[%d]", where, j)
			if strings.TrimSpace(question.Text) == "" {
				add(qwhere, "text is required")
			}
			if len(question.Choices) < 2 {
				add(qwhere, "needs at least two choices")
			}
			correct := 0
			for _, ch := range question.Choices {
				if ch.IsCorrect {
					correct++
				}
			}
			if correct == 0 {
				add(qwhere, "has no correct choice")
			}
		}
	}

	for i, s := range b.FlashcardSets {
		where := fmt.Sprintf("flashcardSets[%d]", i)
		if strings.TrimSpace(s.Title) == "" {
			add(where, "title is required")
		}
		if len(s.Cards) == 0 {
			add(where, "needs at least one card")
		}
		for j, card := range s.Cards {
			if strings.TrimSpace(card.Term) == "" || strings.TrimSpace(card.Definition) == "" {
				add(fmt.Sprintf("%s.cards[%d]", where, j), "term and definition are required")
			}
		}
	}

	for i, c := range b.Challenges {
		where := fmt.Sprintf("challenges[%d]", i)
		if strings.TrimSpace(c.Title) == "" {
			add(where, "title is required")
		}
		if c.MaxProgress != nil && *c.MaxProgress < 1 {
			add(where, "maxProgress must be at least 1")
		}
		if c.XPReward != nil && *c.XPReward < 0 {
			add(where, "xpReward cannot be negative")
		}
	}
	return out
}

// Card text files hold one card per line: "N. term - definition". The
// number is optional and the separator may be a hyphen, an en or em dash,
// or an arrow.
var (
	numPrefix = regexp.MustCompile(`^\d+\.\s*`)
	cardLine  = regexp.MustCompile(`^(.+?)\s+(?:-|\x{2013}|\x{2014}|=>|->)\s+(.+)$`)
)

func normalize(line string) string {
	line = strings.TrimSpace(line)
	line = strings.ReplaceAll(line, "\u202F", " ")
	line = strings.ReplaceAll(line, "\u00A0", " ")
	return numPrefix.ReplaceAllString(line, "")
}

// ParseCardLine splits one card line. ok is false for lines that do not
// match the format.
func ParseCardLine(line string) (services.CardInput, bool) {
	m := cardLine.FindStringSubmatch(normalize(line))
	if m == nil {
		return services.CardInput{}, false
	}
	term, def := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	if term == "" || def == "" {
		return services.CardInput{}, false
	}
	return services.CardInput{Term: term, Definition: def}, true
}

// ParseCards reads a card text file. Blank lines are skipped; malformed
// lines are reported and left out.
func ParseCards(name string, r io.Reader) ([]services.CardInput, []Problem, error) {
	var (
		cards    []services.CardInput
		problems []Problem
	)
	sc := bufio.NewScanner(r)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		card, ok := ParseCardLine(line)
		if !ok {
			problems = append(problems, Problem{Where: name, Line: lineNum, Message: "does not match 'N. <term> - <definition>'"})
			continue
		}
		cards = append(cards, card)
	}
	return cards, problems, sc.Err()
}

// LoadCardDir turns every *.txt file in dir into a flashcard set titled
// after the file name.
func LoadCardDir(dir, category string) ([]services.FlashcardSetInput, []Problem, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, nil, err
	}
	var (
		sets     []services.FlashcardSetInput
		problems []Problem
	)
	for _, f := range files {
		file, err := os.Open(f)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", f, err)
		}
		cards, probs, err := ParseCards(f, file)
		file.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", f, err)
		}
		problems = append(problems, probs...)
		if len(cards) == 0 {
			continue
		}
		title := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		title = strings.ReplaceAll(title, "_", " ")
		sets = append(sets, services.FlashcardSetInput{Title: title, Category: category, Cards: cards})
	}
	return sets, problems, nil
}
