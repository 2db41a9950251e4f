package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synk/synk-server-go/internal/model"
)

// MemoryStore keeps accounts, codes and pairs in process memory behind a single
// lock, so every operation, CreateFromCode included, is linearizable.
type MemoryStore struct {
	mu         sync.RWMutex
	accounts   map[string]model.Account
	emails     map[string]string
	usernames  map[string]string
	codes      []model.PairingCode
	nextCodeID int64
	pairs      map[string]model.Pair
	members    map[string]string
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]model.Account),
		emails:    make(map[string]string),
		usernames: make(map[string]string),
		pairs:     make(map[string]model.Pair),
		members:   make(map[string]string),
		now:       time.Now,
	}
}

func (s *MemoryStore) Accounts() AccountRepository { return memoryAccounts{s} }

func (s *MemoryStore) PairingCodes() PairingCodeRepository { return memoryCodes{s} }

func (s *MemoryStore) Pairs() PairRepository { return memoryPairs{s} }

type memoryAccounts struct{ s *MemoryStore }

func (r memoryAccounts) FindByID(ctx context.Context, id string) (*model.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	account, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (r memoryAccounts) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.emails[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	account := r.s.accounts[id]
	return &account, nil
}

func (r memoryAccounts) Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email := strings.ToLower(params.Email)
	if _, taken := r.s.emails[email]; taken {
		return nil, ErrDuplicateAccount
	}
	if _, taken := r.s.usernames[params.Username]; taken {
		return nil, ErrDuplicateAccount
	}

	now := r.s.now()
	account := model.Account{
		ID:           uuid.NewString(),
		Email:        params.Email,
		Username:     params.Username,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		PasswordHash: params.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.s.accounts[account.ID] = account
	r.s.emails[email] = account.ID
	r.s.usernames[account.Username] = account.ID
	return &account, nil
}

func (r memoryAccounts) UpdateProfile(ctx context.Context, id string, params model.UpdateProfileParams) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	if params.FirstName != nil {
		account.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		account.LastName = *params.LastName
	}
	account.UpdatedAt = r.s.now()
	r.s.accounts[id] = account
	return &account, nil
}

func (r memoryAccounts) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account, ok := r.s.accounts[id]
	if !ok {
		return nil
	}
	delete(r.s.accounts, id)
	delete(r.s.emails, strings.ToLower(account.Email))
	delete(r.s.usernames, account.Username)

	if pairID, paired := r.s.members[id]; paired {
		r.s.removePairLocked(pairID)
	}

	kept := r.s.codes[:0]
	for _, pc := range r.s.codes {
		if pc.IssuerID == id || (pc.RedeemedBy != nil && *pc.RedeemedBy == id) {
			continue
		}
		kept = append(kept, pc)
	}
	r.s.codes = kept
	return nil
}

type memoryCodes struct{ s *MemoryStore }

func (r memoryCodes) FindValidByCode(ctx context.Context, code string, now time.Time) (*model.PairingCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for i := range r.s.codes {
		if r.s.codes[i].Code == code && r.s.codes[i].IsValid(now) {
			pc := r.s.codes[i]
			return &pc, nil
		}
	}
	return nil, nil
}

func (r memoryCodes) FindLatestByCode(ctx context.Context, code string) (*model.PairingCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for i := len(r.s.codes) - 1; i >= 0; i-- {
		if r.s.codes[i].Code == code {
			pc := r.s.codes[i]
			return &pc, nil
		}
	}
	return nil, nil
}

func (r memoryCodes) FindValidByIssuer(ctx context.Context, issuerID string, now time.Time) ([]model.PairingCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	codes := []model.PairingCode{}
	for _, pc := range r.s.codes {
		if pc.IssuerID == issuerID && pc.IsValid(now) {
			codes = append(codes, pc)
		}
	}
	sort.SliceStable(codes, func(i, j int) bool {
		return codes[i].CreatedAt.After(codes[j].CreatedAt)
	})
	return codes, nil
}

func (r memoryCodes) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, pc := range r.s.codes {
		if pc.Code == params.Code && pc.RedeemedBy == nil {
			return nil, ErrCodeTaken
		}
	}

	r.s.nextCodeID++
	pc := model.PairingCode{
		ID:        r.s.nextCodeID,
		Code:      params.Code,
		IssuerID:  params.IssuerID,
		ExpiresAt: params.ExpiresAt,
		CreatedAt: r.s.now(),
	}
	r.s.codes = append(r.s.codes, pc)
	return &pc, nil
}

func (r memoryCodes) RevokeByIssuer(ctx context.Context, issuerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var revoked int64
	kept := r.s.codes[:0]
	for _, pc := range r.s.codes {
		if pc.IssuerID == issuerID && pc.RedeemedBy == nil {
			revoked++
			continue
		}
		kept = append(kept, pc)
	}
	r.s.codes = kept
	return revoked, nil
}

func (r memoryCodes) DeleteExpired(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	var deleted int64
	kept := r.s.codes[:0]
	for _, pc := range r.s.codes {
		if !pc.ExpiresAt.After(now) {
			deleted++
			continue
		}
		kept = append(kept, pc)
	}
	r.s.codes = kept
	return deleted, nil
}

type memoryPairs struct{ s *MemoryStore }

func (r memoryPairs) FindByAccountID(ctx context.Context, accountID string) (*model.Pair, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	pairID, ok := r.s.members[accountID]
	if !ok {
		return nil, nil
	}
	pair := r.s.pairs[pairID]
	return &pair, nil
}

func (r memoryPairs) CreateFromCode(ctx context.Context, params model.RedeemCodeParams) (*model.Pair, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	idx := -1
	for i := range r.s.codes {
		pc := &r.s.codes[i]
		if pc.Code == params.Code && pc.IsValid(params.Now) && pc.IssuerID != params.RedeemerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrCodeNotRedeemable
	}

	issuerID := r.s.codes[idx].IssuerID
	if _, paired := r.s.members[params.RedeemerID]; paired {
		return nil, ErrAlreadyPaired
	}
	if _, paired := r.s.members[issuerID]; paired {
		return nil, ErrIssuerPaired
	}

	redeemer := params.RedeemerID
	redeemedAt := params.Now
	r.s.codes[idx].RedeemedBy = &redeemer
	r.s.codes[idx].RedeemedAt = &redeemedAt

	pair := model.Pair{
		ID:         uuid.NewString(),
		AccountAID: issuerID,
		AccountBID: params.RedeemerID,
		CreatedAt:  params.Now,
	}
	r.s.pairs[pair.ID] = pair
	r.s.members[pair.AccountAID] = pair.ID
	r.s.members[pair.AccountBID] = pair.ID
	return &pair, nil
}

func (r memoryPairs) DeleteByAccountID(ctx context.Context, accountID string) (*model.Pair, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	pairID, ok := r.s.members[accountID]
	if !ok {
		return nil, nil
	}
	pair := r.s.pairs[pairID]
	r.s.removePairLocked(pairID)
	return &pair, nil
}

func (s *MemoryStore) removePairLocked(pairID string) {
	pair, ok := s.pairs[pairID]
	if !ok {
		return
	}
	delete(s.pairs, pairID)
	delete(s.members, pair.AccountAID)
	delete(s.members, pair.AccountBID)
}
