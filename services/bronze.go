package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"realestate_ai/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// BronzeRepo is the slice of the Postgres store the bronze layer writes to.
type BronzeRepo interface {
	UpsertBronze(ctx context.Context, b *models.BronzeListing) error
	BronzeExists(ctx context.Context, source string, adID int64) (bool, error)
}

// BronzeService turns parsed listings into validated bronze rows.
type BronzeService struct {
	store BronzeRepo
}

func NewBronzeService(store BronzeRepo) *BronzeService {
	return &BronzeService{store: store}
}

var (
	// ErrNoAdID marks a degraded parse that cannot be keyed in bronze.
	ErrNoAdID = errors.New("listing has no ad_id")
	// ErrInvalid wraps envelope and validation failures. Retrying the same
	// payload will not help.
	ErrInvalid = errors.New("invalid listing")
)

// Ingest validates the listing envelope and upserts it. The returned row
// carries the database id and ingestion time.
func (s *BronzeService) Ingest(ctx context.Context, p *models.ParsedListing) (*models.BronzeListing, error) {
	if p == nil || p.AdID == nil {
		return nil, ErrNoAdID
	}

	b, err := models.NewBronzeListing(p)
	if err != nil {
		return nil, fmt.Errorf("%w: envelope: %w", ErrInvalid, err)
	}
	if err := Validate(b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if err := s.store.UpsertBronze(ctx, b); err != nil {
		return nil, fmt.Errorf("upsert bronze %s/%d: %w", b.Source, b.AdID, err)
	}
	return b, nil
}

func (s *BronzeService) Exists(ctx context.Context, source string, adID int64) (bool, error) {
	return s.store.BronzeExists(ctx, source, adID)
}

// Validate checks struct tags and folds every failing field into one error.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %q", fe.StructField(), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid %T: %s", v, strings.Join(msgs, "; "))
}
