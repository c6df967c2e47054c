package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"campusquest/database"
	"campusquest/logger"
	"campusquest/models"
)

const minPasswordLength = 8

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Major     string `json:"major"`
	College   string `json:"college"`
	ClassYear string `json:"classYear"`
}

// ProfileUpdate carries optional profile edits. Nil fields are left alone.
// Level is accepted for wire compatibility and always ignored.
type ProfileUpdate struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Nickname  *string `json:"nickname"`
	Major     *string `json:"major"`
	College   *string `json:"college"`
	ClassYear *string `json:"classYear"`
	AvatarURL *string `json:"avatarUrl"`
	XP        *int    `json:"xp"`
	Level     *int    `json:"level"`
}

func (u ProfileUpdate) empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Nickname == nil &&
		u.Major == nil && u.College == nil && u.ClassYear == nil &&
		u.AvatarURL == nil && u.XP == nil
}

// Account is a user with its profile, as returned to clients.
type Account struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	DisplayName string     `json:"displayName"`
	Nickname    string     `json:"nickname"`
	Major       string     `json:"major"`
	College     string     `json:"college"`
	ClassYear   string     `json:"classYear"`
	AvatarURL   string     `json:"avatarUrl"`
	XP          int        `json:"xp"`
	Level       int        `json:"level"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func accountOf(u models.User, p models.UserProfile) Account {
	snap := snapshotOf(u.ID, p.XP)
	return Account{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DisplayName: p.DisplayName,
		Nickname:    p.Nickname,
		Major:       p.Major,
		College:     p.College,
		ClassYear:   p.ClassYear,
		AvatarURL:   p.AvatarURL,
		XP:          snap.XP,
		Level:       snap.Level,
		LastLogin:   u.LastLogin,
		CreatedAt:   u.CreatedAt,
	}
}

// Accounts is the credential store plus profile reads and edits.
type Accounts struct {
	db          *gorm.DB
	tx          *database.TxRunner
	log         *logger.Logger
	board       Invalidator
	emailDomain string
	cost        int
}

func NewAccounts(db *gorm.DB, emailDomain string, log *logger.Logger, board Invalidator) *Accounts {
	if log == nil {
		log = logger.Nop()
	}
	return &Accounts{
		db:          db,
		tx:          database.NewTxRunner(db),
		log:         log.With("component", "accounts"),
		board:       board,
		emailDomain: strings.ToLower(strings.TrimPrefix(strings.TrimSpace(emailDomain), "@")),
		cost:        bcrypt.DefaultCost,
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (a *Accounts) WithHashCost(cost int) *Accounts {
	a.cost = cost
	return a
}

func (a *Accounts) validateRegistration(in *RegisterInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	switch {
	case in.Email == "" || in.Password == "":
		return ValidationError("email and password are required")
	case !strings.Contains(in.Email, "@"):
		return ValidationError("invalid email address")
	case a.emailDomain != "" && !strings.HasSuffix(in.Email, "@"+a.emailDomain):
		return ValidationError("email must be a @" + a.emailDomain + " address")
	case len(in.Password) < minPasswordLength:
		return ValidationError("password must be at least 8 characters")
	case in.FirstName == "" || in.LastName == "":
		return ValidationError("first and last name are required")
	case strings.TrimSpace(in.Major) == "" || strings.TrimSpace(in.College) == "" || strings.TrimSpace(in.ClassYear) == "":
		return ValidationError("major, college and class year are required")
	}
	return nil
}

// Register creates a user and a zero-XP profile together.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (Account, error) {
	if err := a.validateRegistration(&in); err != nil {
		return Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.cost)
	if err != nil {
		return Account{}, PersistenceError("hash password", err)
	}

	displayName := in.FirstName + " " + in.LastName
	user := models.User{Email: in.Email, PasswordHash: string(hash)}
	profile := models.UserProfile{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		DisplayName: displayName,
		Nickname:    displayName,
		Major:       strings.TrimSpace(in.Major),
		College:     strings.TrimSpace(in.College),
		ClassYear:   strings.TrimSpace(in.ClassYear),
		XP:          0,
		Level:       1,
	}

	err = a.tx.InTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if isUniqueViolation(err) {
				return ConflictError("an account with this email already exists")
			}
			return mapStoreError("create user", err)
		}
		profile.UserID = user.ID
		if err := tx.Create(&profile).Error; err != nil {
			return mapStoreError("create profile", err)
		}
		return seedDailyTasks(tx, user.ID)
	})
	if err != nil {
		return Account{}, err
	}

	a.log.Info("account registered", "user_id", user.ID, "email", user.Email)
	a.invalidate(ctx)
	return accountOf(user, profile), nil
}

// VerifyCredentials returns the account for a matching email and password
// and stamps its last login. Any mismatch is ErrInvalidCredentials.
func (a *Accounts) VerifyCredentials(ctx context.Context, email, password string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Account{}, ValidationError("email and password are required")
	}

	var user models.User
	if err := a.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, mapStoreError("load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.log.Debug("password mismatch", "user_id", user.ID)
		return Account{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := a.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		return Account{}, mapStoreError("update last login", err)
	}
	user.LastLogin = &now

	return a.Profile(ctx, user.ID)
}

func (a *Accounts) Profile(ctx context.Context, userID uint) (Account, error) {
	if userID == 0 {
		return Account{}, ValidationError("userId is required")
	}
	var user models.User
	if err := a.db.WithContext(ctx).Preload("Profile").Take(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, NotFoundError("user")
		}
		return Account{}, mapStoreError("load user", err)
	}
	if user.Profile == nil {
		return Account{}, NotFoundError("profile")
	}
	return accountOf(user, *user.Profile), nil
}

// UpdateProfile applies the non-nil fields of u. An XP change goes through
// the same experience writer as awards, so the level is re-derived.
func (a *Accounts) UpdateProfile(ctx context.Context, userID uint, u ProfileUpdate) (Account, error) {
	if userID == 0 {
		return Account{}, ValidationError("userId is required")
	}
	if u.empty() {
		return Account{}, ValidationError("no valid fields to update")
	}
	if u.XP != nil && *u.XP < 0 {
		return Account{}, ValidationError("xp must not be negative")
	}

	updates := map[string]interface{}{}
	setIf := func(col string, v *string) {
		if v != nil {
			updates[col] = strings.TrimSpace(*v)
		}
	}
	setIf("first_name", u.FirstName)
	setIf("last_name", u.LastName)
	setIf("nickname", u.Nickname)
	setIf("major", u.Major)
	setIf("college", u.College)
	setIf("class_year", u.ClassYear)
	setIf("avatar_url", u.AvatarURL)

	err := a.tx.InTx(ctx, func(tx *gorm.DB) error {
		var profile models.UserProfile
		if err := tx.Where("user_id = ?", userID).Take(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundError("user")
			}
			return mapStoreError("load profile", err)
		}

		if u.FirstName != nil || u.LastName != nil {
			first, last := profile.FirstName, profile.LastName
			if u.FirstName != nil {
				first = strings.TrimSpace(*u.FirstName)
			}
			if u.LastName != nil {
				last = strings.TrimSpace(*u.LastName)
			}
			updates["display_name"] = strings.TrimSpace(first + " " + last)
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.UserProfile{}).Where("user_id = ?", userID).Updates(updates).Error; err != nil {
				return mapStoreError("update profile", err)
			}
		}
		if u.XP != nil {
			if _, err := applyExperience(tx, userID, models.XPSourceAdmin, 0, setXP(*u.XP)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}

	if u.XP != nil || updates["display_name"] != nil || updates["college"] != nil || updates["major"] != nil || updates["class_year"] != nil {
		a.invalidate(ctx)
	}
	return a.Profile(ctx, userID)
}

func (a *Accounts) invalidate(ctx context.Context) {
	if a.board == nil {
		return
	}
	if err := a.board.Invalidate(ctx); err != nil {
		a.log.Warn("leaderboard invalidation failed", "error", err)
	}
}
