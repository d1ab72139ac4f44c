package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"

	"creator-ledger/pkg/db/option"
	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/logger"
	"creator-ledger/pkg/storage"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var flagTransitions = map[FlagStatus][]FlagStatus{
	FlagPending:   {FlagConfirmed, FlagResolved},
	FlagConfirmed: {FlagResolved},
}

type CreateFlagParams struct {
	AdminID     string
	CreatorID   string
	FlagType    string
	Severity    Severity
	Description string
	Evidence    []Evidence
}

func (s *Service) CreateFraudFlag(ctx context.Context, p CreateFlagParams) (*FraudFlag, error) {
	if strings.TrimSpace(p.AdminID) == "" {
		return nil, ErrAdminRequired
	}
	if strings.TrimSpace(p.CreatorID) == "" {
		return nil, ErrCreatorRequired
	}
	if strings.TrimSpace(p.FlagType) == "" {
		return nil, ErrFlagTypeRequired
	}
	if p.Severity == "" {
		p.Severity = SeverityMedium
	}
	if !p.Severity.Valid() {
		return nil, ErrInvalidSeverity
	}

	now := s.now().UTC()
	for i := range p.Evidence {
		if p.Evidence[i].AddedAt.IsZero() {
			p.Evidence[i].AddedAt = now
		}
		if p.Evidence[i].AddedBy == "" {
			p.Evidence[i].AddedBy = p.AdminID
		}
	}
	evidence, err := encodeEvidence(p.Evidence)
	if err != nil {
		return nil, err
	}

	flag := &FraudFlag{
		ID:          s.node.Generate().String(),
		CreatorID:   strings.TrimSpace(p.CreatorID),
		FlagType:    strings.TrimSpace(p.FlagType),
		Severity:    p.Severity,
		Description: p.Description,
		Evidence:    evidence,
		Status:      FlagPending,
		CreatedBy:   p.AdminID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.flags.Create(ctx, flag); err != nil {
		return nil, errutil.Store("failed to create fraud flag", err)
	}

	logger.Ctx(ctx).Info("fraud flag created",
		zap.String("flag_id", flag.ID),
		zap.String("creator_id", flag.CreatorID),
		zap.String("flag_type", flag.FlagType),
		zap.String("severity", string(flag.Severity)),
	)
	return flag, nil
}

type UpdateFlagParams struct {
	AdminID     string
	FlagID      string
	Status      FlagStatus
	ActionTaken string
}

// UpdateFraudFlag moves a flag forward. Resolved flags are closed.
func (s *Service) UpdateFraudFlag(ctx context.Context, p UpdateFlagParams) (*FraudFlag, error) {
	if strings.TrimSpace(p.AdminID) == "" {
		return nil, ErrAdminRequired
	}

	var out *FraudFlag
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flag, err := s.lockFlag(ctx, tx, p.FlagID)
		if err != nil {
			return err
		}
		if flag.Status == FlagResolved {
			return ErrFlagResolved
		}

		now := s.now().UTC()
		updates := map[string]any{"updated_at": now}
		if p.ActionTaken != "" {
			updates["action_taken"] = p.ActionTaken
		}
		switch p.Status {
		case "", FlagPending, FlagConfirmed, FlagResolved:
		default:
			return ErrInvalidFlagStatus
		}
		if p.Status != "" && p.Status != flag.Status {
			if !allowed(flag.Status, p.Status) {
				return ErrFlagTransition.With(errutil.WithMessage("cannot move fraud flag from " + string(flag.Status) + " to " + string(p.Status)))
			}
			updates["status"] = p.Status
			if p.Status == FlagResolved {
				updates["resolved_at"] = now
			}
		}

		if err := s.flags.WithTrx(tx).Update(ctx, flag.ID, updates); err != nil {
			return err
		}
		out, err = s.flags.WithTrx(tx).FindOne(ctx, &FraudFlag{ID: flag.ID})
		return err
	})
	if err != nil {
		return nil, errutil.Store("failed to update fraud flag", err)
	}
	return out, nil
}

func allowed(from, to FlagStatus) bool {
	for _, s := range flagTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s *Service) lockFlag(ctx context.Context, tx *gorm.DB, id string) (*FraudFlag, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrFlagNotFound
	}
	flag, err := s.flags.WithTrx(tx).FindOne(ctx, &FraudFlag{ID: id}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}
	if flag == nil {
		return nil, ErrFlagNotFound
	}
	return flag, nil
}

type ListFlagsParams struct {
	CreatorID string
	Status    FlagStatus
	Limit     int
}

func (s *Service) ListFraudFlags(ctx context.Context, p ListFlagsParams) ([]*FraudFlag, error) {
	switch p.Status {
	case "", FlagPending, FlagConfirmed, FlagResolved:
	default:
		return nil, ErrInvalidFlagStatus
	}
	flags, err := s.flags.Find(ctx, &FraudFlag{CreatorID: p.CreatorID, Status: p.Status},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.WithLimit(p.Limit),
	)
	if err != nil {
		return nil, errutil.Store("failed to list fraud flags", err)
	}
	return flags, nil
}

func (s *Service) GetFraudFlag(ctx context.Context, id string) (*FraudFlag, error) {
	flag, err := s.flags.FindOne(ctx, &FraudFlag{ID: id})
	if err != nil {
		return nil, errutil.Store("failed to read fraud flag", err)
	}
	if flag == nil {
		return nil, ErrFlagNotFound
	}
	return flag, nil
}

type EvidenceUpload struct {
	AdminID     string
	FlagID      string
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachEvidence uploads the file before recording its key, so a failed
// upload leaves the flag untouched. An upload whose row update then fails
// leaves an orphaned object behind.
func (s *Service) AttachEvidence(ctx context.Context, u EvidenceUpload) (*FraudFlag, error) {
	if strings.TrimSpace(u.AdminID) == "" {
		return nil, ErrAdminRequired
	}
	if u.Body == nil || u.Size <= 0 {
		return nil, ErrEvidenceRequired
	}
	flag, err := s.GetFraudFlag(ctx, u.FlagID)
	if err != nil {
		return nil, err
	}
	if flag.Status == FlagResolved {
		return nil, ErrFlagResolved
	}
	if s.store == nil {
		return nil, ErrEvidenceDisabled
	}

	name := path.Base(strings.TrimSpace(u.Name))
	if name == "." || name == "/" || name == "" {
		name = "evidence"
	}
	key := path.Join(s.prefix, flag.CreatorID, flag.ID, s.node.Generate().String()+"-"+name)
	if err := s.store.Put(ctx, key, u.Body, u.Size, u.ContentType); err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			return nil, ErrEvidenceDisabled
		}
		return nil, ErrEvidenceStore.With(errutil.WithErr(err))
	}

	var out *FraudFlag
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flag, err := s.lockFlag(ctx, tx, u.FlagID)
		if err != nil {
			return err
		}
		list, err := decodeEvidence(flag.Evidence)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		list = append(list, Evidence{ObjectKey: key, Name: name, Size: u.Size, AddedBy: u.AdminID, AddedAt: now})
		raw, err := encodeEvidence(list)
		if err != nil {
			return err
		}
		if err := s.flags.WithTrx(tx).Update(ctx, flag.ID, map[string]any{"evidence": raw, "updated_at": now}); err != nil {
			return err
		}
		flag.Evidence = raw
		flag.UpdatedAt = now
		out = flag
		return nil
	})
	if err != nil {
		logger.Ctx(ctx).Warn("evidence uploaded but not recorded", zap.String("flag_id", u.FlagID), zap.String("object_key", key), zap.Error(err))
		return nil, errutil.Store("failed to record evidence", err)
	}
	return out, nil
}

func encodeEvidence(list []Evidence) (datatypes.JSON, error) {
	if list == nil {
		list = []Evidence{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil, ErrInvalidEvidence.With(errutil.WithErr(err))
	}
	return datatypes.JSON(b), nil
}

func decodeEvidence(raw datatypes.JSON) ([]Evidence, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []Evidence
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, ErrInvalidEvidence.With(errutil.WithErr(err))
	}
	return list, nil
}

// EvidenceOf decodes a flag's evidence list.
func EvidenceOf(flag *FraudFlag) ([]Evidence, error) {
	return decodeEvidence(flag.Evidence)
}
