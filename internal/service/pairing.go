package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synk/synk-server-go/internal/audit"
	apperrors "github.com/synk/synk-server-go/internal/errors"
	"github.com/synk/synk-server-go/internal/model"
	"github.com/synk/synk-server-go/internal/repository"
	"github.com/synk/synk-server-go/internal/util"
)

const (
	pairingCodeLength  = 8
	maxCodeGenAttempts = 10
)

// PairStatus is the caller's view of their pairing.
type PairStatus struct {
	IsPaired bool                  `json:"is_paired"`
	Partner  *model.AccountSummary `json:"partner,omitempty"`
	PairedAt *time.Time            `json:"paired_at,omitempty"`
}

type PairingService struct {
	codeRepo    repository.PairingCodeRepository
	pairRepo    repository.PairRepository
	accountRepo repository.AccountRepository
	publisher   Publisher
	cache       *PartnerCache
	codeTTL     time.Duration
	now         func() time.Time
}

// NewPairingService wires the registry. cache may be nil to always read storage.
func NewPairingService(
	codeRepo repository.PairingCodeRepository,
	pairRepo repository.PairRepository,
	accountRepo repository.AccountRepository,
	publisher Publisher,
	cache *PartnerCache,
	codeTTL time.Duration,
) *PairingService {
	return &PairingService{
		codeRepo:    codeRepo,
		pairRepo:    pairRepo,
		accountRepo: accountRepo,
		publisher:   publisher,
		cache:       cache,
		codeTTL:     codeTTL,
		now:         time.Now,
	}
}

func (s *PairingService) IssueCode(ctx context.Context, issuerID string) (*model.PairingCode, error) {
	pair, err := s.pairRepo.FindByAccountID(ctx, issuerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if pair != nil {
		return nil, apperrors.AlreadyPaired()
	}

	for attempt := 1; attempt <= maxCodeGenAttempts; attempt++ {
		code, err := util.RandomString(pairingCodeLength, util.CodeAlphabet)
		if err != nil {
			return nil, apperrors.Internal("failed to generate pairing code").WithCause(err)
		}

		now := s.now()
		existing, err := s.codeRepo.FindValidByCode(ctx, code, now)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if existing != nil {
			continue
		}

		pc, err := s.codeRepo.Create(ctx, model.CreatePairingCodeParams{
			Code:      code,
			IssuerID:  issuerID,
			ExpiresAt: now.Add(s.codeTTL),
		})
		if errors.Is(err, repository.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, apperrors.Database(err)
		}

		log.Info().
			Str("code", util.MaskCode(code)).
			Str("accountId", issuerID).
			Time("expiresAt", pc.ExpiresAt).
			Int("attempts", attempt).
			Msg("pairing code issued")

		audit.Log(ctx, audit.Event{
			Type:      audit.EventCodeIssue,
			AccountID: issuerID,
			Details:   map[string]interface{}{"code": util.MaskCode(code)},
		})

		return pc, nil
	}

	log.Error().Str("accountId", issuerID).Msg("pairing code space exhausted")
	return nil, apperrors.Internal("failed to generate a unique pairing code")
}

func (s *PairingService) Redeem(ctx context.Context, rawCode, redeemerID string) (*model.Pair, error) {
	code := normalizeCode(rawCode)
	if code == "" {
		return nil, apperrors.MissingRequired("code")
	}

	latest, err := s.codeRepo.FindLatestByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if latest != nil && latest.IssuerID == redeemerID {
		return nil, apperrors.SelfRedemption()
	}

	existing, err := s.pairRepo.FindByAccountID(ctx, redeemerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if existing != nil {
		return nil, apperrors.AlreadyPaired()
	}

	now := s.now()
	if latest == nil || !latest.IsValid(now) {
		return nil, apperrors.InvalidOrExpiredCode()
	}

	pair, err := s.pairRepo.CreateFromCode(ctx, model.RedeemCodeParams{
		Code:       code,
		RedeemerID: redeemerID,
		Now:        now,
	})
	switch {
	case errors.Is(err, repository.ErrCodeNotRedeemable), errors.Is(err, repository.ErrIssuerPaired):
		return nil, apperrors.InvalidOrExpiredCode()
	case errors.Is(err, repository.ErrAlreadyPaired):
		return nil, apperrors.AlreadyPaired()
	case err != nil:
		log.Error().Err(err).Str("accountId", redeemerID).Msg("pair creation failed")
		return nil, apperrors.Database(err)
	}

	if s.cache != nil {
		s.cache.Invalidate(pair.Members()...)
	}

	log.Info().
		Str("pairId", pair.ID).
		Str("issuerId", pair.AccountAID).
		Str("redeemerId", pair.AccountBID).
		Str("code", util.MaskCode(code)).
		Msg("accounts paired")

	audit.Log(ctx, audit.Event{
		Type:      audit.EventPairCreate,
		AccountID: redeemerID,
		Details:   map[string]interface{}{"pairId": pair.ID, "partnerId": pair.AccountAID},
	})

	s.publisher.Publish(EventCoupleCoupled, map[string]any{
		"pair_id":     pair.ID,
		"account_ids": pair.Members(),
		"paired_at":   pair.CreatedAt,
	}, pair.Members()...)

	return pair, nil
}

func (s *PairingService) GetPartner(ctx context.Context, accountID string) (string, bool, error) {
	var epoch uint64
	if s.cache != nil {
		if partnerID, paired, found := s.cache.Get(accountID); found {
			return partnerID, paired, nil
		}
		epoch = s.cache.Epoch()
	}

	pair, err := s.pairRepo.FindByAccountID(ctx, accountID)
	if err != nil {
		return "", false, apperrors.Database(err)
	}

	var (
		partnerID string
		paired    bool
	)
	if pair != nil {
		partnerID, paired = pair.PartnerOf(accountID)
	}

	if s.cache != nil {
		s.cache.Fill(accountID, partnerID, paired, epoch)
	}
	return partnerID, paired, nil
}

func (s *PairingService) Unpair(ctx context.Context, accountID string) error {
	pair, err := s.pairRepo.DeleteByAccountID(ctx, accountID)
	if err != nil {
		return apperrors.Database(err)
	}
	if pair == nil {
		return apperrors.NotPaired()
	}

	s.afterDissolve(ctx, accountID, pair)
	return nil
}

// RevokeCodes withdraws the issuer's open codes so nobody can pair with them.
func (s *PairingService) RevokeCodes(ctx context.Context, issuerID string) error {
	revoked, err := s.codeRepo.RevokeByIssuer(ctx, issuerID)
	if err != nil {
		return apperrors.Database(err)
	}
	if revoked > 0 {
		log.Info().Str("accountId", issuerID).Int64("revoked", revoked).Msg("pairing codes revoked")
	}
	return nil
}

// Dissolve is Unpair without the NotPaired failure.
func (s *PairingService) Dissolve(ctx context.Context, accountID string) error {
	pair, err := s.pairRepo.DeleteByAccountID(ctx, accountID)
	if err != nil {
		return apperrors.Database(err)
	}
	if pair != nil {
		s.afterDissolve(ctx, accountID, pair)
	}
	return nil
}

func (s *PairingService) afterDissolve(ctx context.Context, actingID string, pair *model.Pair) {
	if s.cache != nil {
		s.cache.Invalidate(pair.Members()...)
	}

	log.Info().
		Str("pairId", pair.ID).
		Str("accountId", actingID).
		Msg("pair dissolved")

	audit.Log(ctx, audit.Event{
		Type:      audit.EventPairDelete,
		AccountID: actingID,
		Details:   map[string]interface{}{"pairId": pair.ID},
	})

	s.publisher.Publish(EventCoupleUncoupled, map[string]any{
		"pair_id":     pair.ID,
		"unpaired_by": actingID,
	}, pair.Members()...)
}

func (s *PairingService) Status(ctx context.Context, accountID string) (*PairStatus, error) {
	pair, err := s.pairRepo.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if pair == nil {
		return &PairStatus{IsPaired: false}, nil
	}

	status := &PairStatus{IsPaired: true, PairedAt: &pair.CreatedAt}

	partnerID, _ := pair.PartnerOf(accountID)
	partner, err := s.accountRepo.FindByID(ctx, partnerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if partner != nil {
		summary := partner.Summary()
		status.Partner = &summary
	}
	return status, nil
}

func (s *PairingService) ListActiveCodes(ctx context.Context, issuerID string) ([]model.PairingCode, error) {
	codes, err := s.codeRepo.FindValidByIssuer(ctx, issuerID, s.now())
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return codes, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
