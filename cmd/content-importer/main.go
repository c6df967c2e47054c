package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"campusquest/config"
	"campusquest/contentfile"
	"campusquest/database"
	"campusquest/logger"
	"campusquest/services"
)

func main() {
	var (
		cardsDir  string
		category  string
		createdBy uint
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:          "content-importer [bundle.json]",
		Short:        "Seed quizzes, flashcard sets and challenges",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var bundle contentfile.Bundle
			if len(args) == 1 {
				b, err := contentfile.Load(args[0])
				if err != nil {
					return err
				}
				bundle = b
			}
			if cardsDir != "" {
				sets, problems, err := contentfile.LoadCardDir(cardsDir, category)
				if err != nil {
					return err
				}
				for _, p := range problems {
					fmt.Fprintln(os.Stderr, "skipped", p)
				}
				bundle.FlashcardSets = append(bundle.FlashcardSets, sets...)
			}

			if problems := contentfile.Lint(bundle); len(problems) > 0 {
				for _, p := range problems {
					fmt.Fprintln(os.Stderr, p)
				}
				return fmt.Errorf("%d problem(s) found, nothing imported", len(problems))
			}
			fmt.Printf("Found %d quizzes, %d flashcard sets, %d challenges\n",
				len(bundle.Quizzes), len(bundle.FlashcardSets), len(bundle.Challenges))
			if dryRun {
				return nil
			}
			return run(cmd.Context(), bundle, createdBy)
		},
	}
	cmd.Flags().StringVar(&cardsDir, "cards", "", "directory of *.txt flashcard files")
	cmd.Flags().StringVar(&category, "category", "", "category for sets loaded from --cards")
	cmd.Flags().UintVar(&createdBy, "created-by", 0, "user ID credited for items without a creator")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, bundle contentfile.Bundle, createdBy uint) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.RunMigrations(db); err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	content := services.NewContent(db, services.NewSystemClock(loc), nil)

	var creator *uint
	if createdBy != 0 {
		creator = &createdBy
	}
	sum, err := contentfile.Import(ctx, content, bundle, creator)
	log.Info("import finished",
		"quizzes", sum.Quizzes,
		"flashcard_sets", sum.FlashcardSets,
		"challenges", sum.Challenges)
	return err
}
