package registration

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/pkg/log"
)

// phonePattern is the international format: a plus sign and exactly 11 digits.
var phonePattern = regexp.MustCompile(`^\+\d{11}$`)

type Gate struct {
	repo core.IdentityRepository
	now  func() time.Time
}

func NewGate(repo core.IdentityRepository) *Gate {
	return &Gate{
		repo: repo,
		now:  time.Now,
	}
}

func (g *Gate) IsRegistered(ctx context.Context, userID int64) (bool, error) {
	_, err := g.repo.GetIdentity(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return true, nil
}

// Identity returns the stored record, or nil when the user never registered.
func (g *Gate) Identity(ctx context.Context, userID int64) (*core.Identity, error) {
	id, err := g.repo.GetIdentity(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	return id, err
}

// SubmitIdentityClaim validates the phone and stores the claim, replacing
// any previous record of the same user as a whole.
func (g *Gate) SubmitIdentityClaim(ctx context.Context, userID int64, phone, username, fullName string) (*core.Identity, error) {
	phone = strings.TrimSpace(phone)
	if err := ValidatePhone(phone); err != nil {
		return nil, err
	}

	identity := core.Identity{
		UserID:    userID,
		Phone:     phone,
		Username:  username,
		FullName:  fullName,
		UpdatedAt: g.now().UTC(),
	}
	if err := g.repo.UpsertIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}

	log.FromCtx(ctx).Info().Int64("user_id", userID).Msg("user registered")
	return &identity, nil
}

func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return &core.ValidationError{Field: "phone", Reason: "expected + followed by 11 digits, e.g. +71234567890"}
	}
	return nil
}
