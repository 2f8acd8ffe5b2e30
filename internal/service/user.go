package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"socialnet/internal/model"
	"socialnet/internal/queue"
	"socialnet/internal/repository"
)

// UserService handles business logic for user operations
type UserService struct {
	repo       repository.UserRepository
	followRepo repository.FollowRepository
	events     eventSink
	log        zerolog.Logger
}

func NewUserService(
	repo repository.UserRepository,
	followRepo repository.FollowRepository,
	publisher queue.Publisher,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		repo:       repo,
		followRepo: followRepo,
		events:     eventSink{publisher: publisher, log: log},
		log:        log,
	}
}

// Register creates a new account. Emails are matched case-insensitively.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if len(req.Password) < model.MinPasswordLength {
		return nil, model.ErrPasswordTooShort
	}

	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, model.ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          email,
		PasswordHashed: string(hashedPassword),
	}

	// the unique index still catches a concurrent registration
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrEmailExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// SignIn authenticates a user with email and password.
func (s *UserService) SignIn(ctx context.Context, req *model.SignInRequest) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		// Don't reveal whether the email exists or not
		return nil, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetProfile returns the user with both sides of the follow graph resolved
// to summaries.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*model.ProfileResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	followers, err := s.followRepo.GetFollowers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get followers: %w", err)
	}
	following, err := s.followRepo.GetFollowing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get following: %w", err)
	}

	return &model.ProfileResponse{
		User:      user,
		Followers: followers,
		Following: following,
	}, nil
}

func (s *UserService) List(ctx context.Context) ([]model.UserSummary, error) {
	return s.repo.List(ctx)
}

// UpdateProfile replaces the caller's name and bio. An empty bio clears it.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.User, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}

	var bio *string
	if req.Bio != nil {
		trimmed := strings.TrimSpace(*req.Bio)
		if utf8.RuneCountInString(trimmed) > model.MaxBioLength {
			return nil, model.ErrBioTooLong
		}
		if trimmed != "" {
			bio = &trimmed
		}
	}

	return s.repo.UpdateProfile(ctx, userID, name, bio)
}

// Delete removes the caller's account and every follow edge touching it.
// Posts, comments and likes stay; threads show their owner as deleted.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	if err := s.events.settle(ctx, s.repo.Delete(ctx, userID)); err != nil {
		return err
	}

	s.log.Info().Str("user_id", userID).Msg("user deleted")
	return nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", model.ErrNameRequired
	}
	if utf8.RuneCountInString(name) > model.MaxNameLength {
		return "", model.ErrNameTooLong
	}
	return name, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", model.ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", model.ErrEmailInvalid
	}
	return email, nil
}
