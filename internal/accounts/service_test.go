package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryAccounts struct {
	byCode map[string]Account
	nextID int64
}

func newMemoryAccounts(accs ...Account) *memoryAccounts {
	repo := &memoryAccounts{byCode: make(map[string]Account)}
	for _, acc := range accs {
		repo.byCode[acc.Code] = acc
		if acc.ID > repo.nextID {
			repo.nextID = acc.ID
		}
	}
	return repo
}

func (r *memoryAccounts) Get(ctx context.Context, id int64) (Account, error) {
	for _, acc := range r.byCode {
		if acc.ID == id {
			return acc, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *memoryAccounts) GetByCode(ctx context.Context, code string) (Account, error) {
	acc, ok := r.byCode[code]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

func (r *memoryAccounts) List(ctx context.Context, activeOnly bool) ([]Account, error) {
	var out []Account
	for _, acc := range r.byCode {
		if activeOnly && !acc.IsActive {
			continue
		}
		out = append(out, acc)
	}
	return out, nil
}

func (r *memoryAccounts) Insert(ctx context.Context, in CreateInput, parentID *int64, isSystem bool) (Account, error) {
	if _, ok := r.byCode[in.Code]; ok {
		return Account{}, ErrCodeTaken
	}
	r.nextID++
	acc := Account{
		ID: r.nextID, Code: in.Code, Name: in.Name, Type: in.Type,
		ParentID: parentID, IsActive: true, IsSystem: isSystem,
		CurrencyCode: in.CurrencyCode,
	}
	r.byCode[in.Code] = acc
	return acc, nil
}

func (r *memoryAccounts) SetActive(ctx context.Context, id int64, active bool) error {
	for code, acc := range r.byCode {
		if acc.ID == id {
			acc.IsActive = active
			r.byCode[code] = acc
			return nil
		}
	}
	return ErrNotFound
}

func rootAsset() Account {
	return Account{ID: 1, Code: "1", Name: "Assets", Type: AccountTypeAsset, IsActive: true, IsSystem: true}
}

func TestCreateRootBecomesSystemAccount(t *testing.T) {
	repo := newMemoryAccounts()
	svc := NewService(repo, nil)

	acc, err := svc.Create(context.Background(), CreateInput{Code: "1", Name: "Assets", Type: AccountTypeAsset}, 1)
	require.NoError(t, err)
	require.True(t, acc.IsSystem)
	require.Nil(t, acc.ParentID)
}

func TestCreateChildResolvesParentFromCode(t *testing.T) {
	repo := newMemoryAccounts(rootAsset())
	svc := NewService(repo, nil)

	acc, err := svc.Create(context.Background(), CreateInput{Code: "1.1", Name: "Cash", Type: AccountTypeAsset}, 1)
	require.NoError(t, err)
	require.False(t, acc.IsSystem)
	require.NotNil(t, acc.ParentID)
	require.Equal(t, int64(1), *acc.ParentID)
}

func TestCreateMissingParentRejected(t *testing.T) {
	repo := newMemoryAccounts()
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{Code: "1.1", Name: "Cash", Type: AccountTypeAsset}, 1)
	require.ErrorIs(t, err, ErrParentNotFound)
}

func TestCreateDuplicateCodeRejected(t *testing.T) {
	repo := newMemoryAccounts(rootAsset())
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{Code: "1", Name: "Assets again", Type: AccountTypeAsset}, 1)
	require.ErrorIs(t, err, ErrCodeTaken)
}

func TestDeactivateSystemAccountRejected(t *testing.T) {
	repo := newMemoryAccounts(rootAsset())
	svc := NewService(repo, nil)

	err := svc.Deactivate(context.Background(), 1, 1)
	require.ErrorIs(t, err, ErrSystemAccount)
	require.True(t, repo.byCode["1"].IsActive)
}

func TestDeactivateLeafAccount(t *testing.T) {
	leaf := Account{ID: 2, Code: "1.1", Name: "Cash", Type: AccountTypeAsset, IsActive: true}
	repo := newMemoryAccounts(rootAsset(), leaf)
	svc := NewService(repo, nil)

	require.NoError(t, svc.Deactivate(context.Background(), 2, 1))
	require.False(t, repo.byCode["1.1"].IsActive)
}

func TestEnsureAccountCreatesOnce(t *testing.T) {
	repo := newMemoryAccounts(Account{ID: 1, Code: "3", Name: "Equity", Type: AccountTypeEquity, IsActive: true, IsSystem: true})
	svc := NewService(repo, nil)
	ctx := context.Background()

	first, err := svc.EnsureAccount(ctx, "3.99", "Opening balance offset", AccountTypeEquity, 1)
	require.NoError(t, err)

	second, err := svc.EnsureAccount(ctx, "3.99", "Opening balance offset", AccountTypeEquity, 1)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestCodeHelpers(t *testing.T) {
	require.True(t, IsRootCode("1"))
	require.False(t, IsRootCode("1.2.3"))
	require.Equal(t, "", ParentCode("4"))
	require.Equal(t, "1.2", ParentCode("1.2.3"))
}
