package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator"
	"github.com/rs/zerolog/log"

	"github.com/synk/synk-server-go/internal/audit"
	apperrors "github.com/synk/synk-server-go/internal/errors"
	"github.com/synk/synk-server-go/internal/model"
	"github.com/synk/synk-server-go/internal/repository"
	"github.com/synk/synk-server-go/internal/util"
)

type RegisterInput struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	Username     string `json:"username" validate:"required,min=3,max=150"`
	Password     string `json:"password" validate:"required,min=8,max=128"`
	FirstName    string `json:"first_name" validate:"max=150"`
	LastName     string `json:"last_name" validate:"max=150"`
	CouplingCode string `json:"coupling_code" validate:"omitempty,max=16"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileInput struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

// Profile is the caller's own account together with their pairing.
type Profile struct {
	*model.Account
	Pair *PairStatus `json:"pair"`
}

type RegisterResult struct {
	Account *model.Account `json:"account"`
	Paired  bool           `json:"paired"`
}

type AccountService struct {
	accountRepo repository.AccountRepository
	pairing     *PairingService
	broadcaster *Broadcaster
	tokens      *TokenService
	validate    *validator.Validate
}

func NewAccountService(
	accountRepo repository.AccountRepository,
	pairing *PairingService,
	broadcaster *Broadcaster,
	tokens *TokenService,
) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		pairing:     pairing,
		broadcaster: broadcaster,
		tokens:      tokens,
		validate:    validator.New(),
	}
}

// Register creates the account. A coupling code is redeemed best effort: a
// failed redemption is logged and the account is still created.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	input.Email = util.NormalizeEmail(input.Email)
	if err := s.check(input); err != nil {
		return nil, err
	}

	hash, err := util.HashPassword(input.Password)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password").WithCause(err)
	}

	account, err := s.accountRepo.Create(ctx, model.CreateAccountParams{
		Email:        input.Email,
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: hash,
	})
	if errors.Is(err, repository.ErrDuplicateAccount) {
		return nil, apperrors.AlreadyExists("account")
	}
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().Str("accountId", account.ID).Msg("account registered")
	audit.Log(ctx, audit.Event{Type: audit.EventAccountCreate, AccountID: account.ID})

	result := &RegisterResult{Account: account}
	if input.CouplingCode != "" {
		if _, err := s.pairing.Redeem(ctx, input.CouplingCode, account.ID); err != nil {
			log.Warn().
				Err(err).
				Str("accountId", account.ID).
				Str("code", util.MaskCode(normalizeCode(input.CouplingCode))).
				Msg("coupling code at registration not redeemed")
		} else {
			result.Paired = true
		}
	}

	return result, nil
}

func (s *AccountService) Authenticate(ctx context.Context, input LoginInput) (*model.Account, *AccessToken, error) {
	if err := s.check(input); err != nil {
		return nil, nil, err
	}

	account, err := s.accountRepo.FindByEmail(ctx, util.NormalizeEmail(input.Email))
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	if account == nil || !util.CheckPasswordHash(input.Password, account.PasswordHash) {
		return nil, nil, apperrors.InvalidCredentials()
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, nil, err
	}
	return account, token, nil
}

func (s *AccountService) Profile(ctx context.Context, accountID string) (*Profile, error) {
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if account == nil {
		return nil, apperrors.NotFound("account")
	}

	status, err := s.pairing.Status(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &Profile{Account: account, Pair: status}, nil
}

// UpdateProfile applies the change and notifies the owner's and partner's connections.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, input UpdateProfileInput) (*model.Account, error) {
	if err := s.check(input); err != nil {
		return nil, err
	}

	account, err := s.accountRepo.UpdateProfile(ctx, accountID, model.UpdateProfileParams{
		FirstName: input.FirstName,
		LastName:  input.LastName,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if account == nil {
		return nil, apperrors.NotFound("account")
	}

	s.broadcaster.BroadcastToOwnerAndPartner(ctx, accountID, EventProfileUpdated, account.Summary())
	return account, nil
}

// DeleteAccount verifies the password, revokes open codes, dissolves any pair
// (the partner is notified) and removes the account. Codes go first so no pair
// can form between the dissolve and the delete.
func (s *AccountService) DeleteAccount(ctx context.Context, accountID, password string) error {
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return apperrors.Database(err)
	}
	if account == nil {
		return apperrors.NotFound("account")
	}
	if password == "" {
		return apperrors.MissingRequired("password")
	}
	if !util.CheckPasswordHash(password, account.PasswordHash) {
		return apperrors.ValidationError("Password validation failed")
	}

	if err := s.pairing.RevokeCodes(ctx, accountID); err != nil {
		return err
	}
	if err := s.pairing.Dissolve(ctx, accountID); err != nil {
		return err
	}
	if err := s.accountRepo.Delete(ctx, accountID); err != nil {
		return apperrors.Database(err)
	}

	log.Info().Str("accountId", accountID).Msg("account deleted")
	audit.Log(ctx, audit.Event{Type: audit.EventAccountDelete, AccountID: accountID})
	return nil
}

func (s *AccountService) check(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		if first.Tag() == "required" {
			return apperrors.MissingRequired(jsonFieldName(first.Field()))
		}
		return apperrors.InvalidInput(jsonFieldName(first.Field()), fmt.Sprintf("failed %q check", first.Tag()))
	}
	return apperrors.ValidationError(err.Error())
}

var jsonFieldNames = map[string]string{
	"Email":        "email",
	"Username":     "username",
	"Password":     "password",
	"FirstName":    "first_name",
	"LastName":     "last_name",
	"CouplingCode": "coupling_code",
}

func jsonFieldName(field string) string {
	if name, ok := jsonFieldNames[field]; ok {
		return name
	}
	return field
}
