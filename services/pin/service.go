package pin

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"creator-ledger/pkg/config"
	"creator-ledger/pkg/db/option"
	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/logger"
	"creator-ledger/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var pinPattern = regexp.MustCompile(`^\d{4,6}$`)

var (
	ErrCreatorRequired  = errutil.Sentinel(errutil.StatusValidationFailed, "CREATOR_REQUIRED", "creator id is required")
	ErrInvalidPinFormat = errutil.Sentinel(errutil.StatusValidationFailed, "INVALID_PIN_FORMAT", "pin must be 4 to 6 digits")
	ErrOldPinRequired   = errutil.Sentinel(errutil.StatusValidationFailed, "OLD_PIN_REQUIRED", "current pin is required to change it")
	ErrPinNotSet        = errutil.Sentinel(errutil.StatusNotFound, "PIN_NOT_SET", "withdrawal pin is not set")
	ErrInvalidPin       = errutil.Sentinel(errutil.StatusForbidden, "INVALID_PIN", "withdrawal pin is incorrect")
	ErrPinLocked        = errutil.Sentinel(errutil.StatusTooManyRequests, "PIN_LOCKED", "too many incorrect pin attempts, try again later")
)

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	limiter Limiter
	max     int64
	cost    int
	now     func() time.Time

	pins repository.Repository[WithdrawalPin]
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Config  *config.Config   `optional:"true"`
	Limiter Limiter          `optional:"true"`
	Cost    int              `name:"pin.bcrypt_cost" optional:"true"`
	Clock   func() time.Time `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:      p.DB,
		node:    p.Node,
		limiter: p.Limiter,
		max:     defaultMaxAttempts,
		cost:    p.Cost,
		now:     p.Clock,

		pins: repository.ProvideStore[WithdrawalPin](p.DB),
	}
	if p.Config != nil && p.Config.Ledger.PinMaxAttempts > 0 {
		s.max = p.Config.Ledger.PinMaxAttempts
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateOrChange sets the creator's PIN. Changing an existing PIN requires
// the current one; on mismatch the stored hash is left untouched.
func (s *Service) CreateOrChange(ctx context.Context, creatorID, newPin, oldPin string) (*Status, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, ErrCreatorRequired
	}
	if !pinPattern.MatchString(newPin) {
		return nil, ErrInvalidPinFormat
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPin), s.cost)
	if err != nil {
		return nil, errutil.Internal("failed to hash pin", err)
	}

	now := s.now().UTC()
	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "creator_id"}},
			DoNothing: true,
		}).Create(&WithdrawalPin{
			ID:            s.node.Generate().String(),
			CreatorID:     creatorID,
			PinHash:       string(hash),
			LastChangedAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			created = true
			return nil
		}

		if oldPin == "" {
			return ErrOldPinRequired
		}
		current, err := s.verify(ctx, tx, creatorID, oldPin, true)
		if err != nil {
			return err
		}

		return s.pins.WithTrx(tx).Update(ctx, current.ID, map[string]any{
			"pin_hash":        string(hash),
			"last_changed_at": now,
			"updated_at":      now,
		})
	})
	if err != nil {
		return nil, errutil.Store("failed to save pin", err)
	}

	logger.Ctx(ctx).Info("withdrawal pin saved", zap.String("creator_id", creatorID), zap.Bool("created", created))
	return &Status{HasPin: true, LastChangedAt: &now}, nil
}

// Exists reports whether the creator has a PIN, reading inside tx.
func (s *Service) Exists(ctx context.Context, tx *gorm.DB, creatorID string) (bool, error) {
	n, err := s.pins.WithTrx(tx).Count(ctx, &WithdrawalPin{CreatorID: creatorID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// VerifyTx checks pin inside tx. It fails ErrPinLocked once the creator has
// used up their attempts, ErrInvalidPin on mismatch and ErrPinNotSet when
// no PIN exists.
func (s *Service) VerifyTx(ctx context.Context, tx *gorm.DB, creatorID, pin string) error {
	_, err := s.verify(ctx, tx, creatorID, pin, false)
	return err
}

// Verify is the advisory form of VerifyTx: a wrong PIN is (false, nil).
func (s *Service) Verify(ctx context.Context, creatorID, pin string) (bool, error) {
	err := s.VerifyTx(ctx, s.db, creatorID, pin)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrInvalidPin):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) verify(ctx context.Context, tx *gorm.DB, creatorID, pin string, lock bool) (*WithdrawalPin, error) {
	if s.locked(ctx, creatorID) {
		return nil, ErrPinLocked
	}

	var opts []option.QueryOption
	if lock {
		opts = append(opts, option.WithLockingUpdate())
	}
	current, err := s.pins.WithTrx(tx).FindOne(ctx, &WithdrawalPin{CreatorID: creatorID}, opts...)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrPinNotSet
	}

	if err := bcrypt.CompareHashAndPassword([]byte(current.PinHash), []byte(pin)); err != nil {
		return nil, s.fail(ctx, creatorID)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, creatorID); err != nil {
			logger.Ctx(ctx).Warn("failed to reset pin attempts", zap.String("creator_id", creatorID), zap.Error(err))
		}
	}
	return current, nil
}

// locked fails open: a limiter outage must not block withdrawals.
func (s *Service) locked(ctx context.Context, creatorID string) bool {
	if s.limiter == nil {
		return false
	}
	locked, err := s.limiter.Locked(ctx, creatorID)
	if err != nil {
		logger.Ctx(ctx).Warn("pin limiter unavailable", zap.String("creator_id", creatorID), zap.Error(err))
		return false
	}
	return locked
}

func (s *Service) fail(ctx context.Context, creatorID string) error {
	if s.limiter == nil {
		return ErrInvalidPin
	}
	n, err := s.limiter.Fail(ctx, creatorID)
	if err != nil {
		logger.Ctx(ctx).Warn("failed to count pin attempt", zap.String("creator_id", creatorID), zap.Error(err))
		return ErrInvalidPin
	}

	left := s.max - n
	if left < 0 {
		left = 0
	}
	logger.Ctx(ctx).Warn("invalid withdrawal pin", zap.String("creator_id", creatorID), zap.Int64("attempts", n))
	return ErrInvalidPin.With(errutil.WithDetails(errutil.Detail{Field: "attempts_remaining", Message: strconv.FormatInt(left, 10)}))
}

func (s *Service) Status(ctx context.Context, creatorID string) (*Status, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, ErrCreatorRequired
	}
	current, err := s.pins.FindOne(ctx, &WithdrawalPin{CreatorID: creatorID})
	if err != nil {
		return nil, errutil.Store("failed to load pin", err)
	}
	if current == nil {
		return &Status{}, nil
	}
	return &Status{
		HasPin:        true,
		Locked:        s.locked(ctx, creatorID),
		LastChangedAt: &current.LastChangedAt,
	}, nil
}
