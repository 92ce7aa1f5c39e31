package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	customers map[string]*Customer
	addresses map[string]*Address
	err       error
}

func (m *mockRepo) FindByTokenHash(_ context.Context, hash string) (*Customer, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.customers[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockRepo) FindAddress(_ context.Context, customerID, addressID string) (*Address, error) {
	a, ok := m.addresses[addressID]
	if !ok || a.CustomerID != customerID {
		return nil, ErrNotFound
	}
	return a, nil
}

var pepper = []byte("test-pepper")

func newRepo() *mockRepo {
	hash := HashToken(pepper, "secret-token")
	return &mockRepo{
		customers: map[string]*Customer{
			hash: {ID: "c1", Name: "Ada", TokenHash: hash},
		},
		addresses: map[string]*Address{
			"a1": {ID: "a1", CustomerID: "c1", Street: "1 Dairy Lane"},
			"a2": {ID: "a2", CustomerID: "c2", Street: "2 Curd Road"},
		},
	}
}

func TestHashToken(t *testing.T) {
	h := HashToken(pepper, "x")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken(pepper, "x"))
	assert.NotEqual(t, h, HashToken([]byte("other"), "x"))
}

func TestAuthenticator_Authenticate(t *testing.T) {
	tests := []struct {
		name    string
		repo    *mockRepo
		token   string
		wantID  string
		wantErr error
	}{
		{name: "valid token", repo: newRepo(), token: "secret-token", wantID: "c1"},
		{name: "empty token", repo: newRepo(), token: "", wantErr: ErrUnauthorized},
		{name: "unknown token", repo: newRepo(), token: "nope", wantErr: ErrUnauthorized},
		{
			name: "stored hash mismatch",
			repo: func() *mockRepo {
				r := newRepo()
				for _, c := range r.customers {
					c.TokenHash = HashToken(pepper, "other")
				}
				return r
			}(),
			token:   "secret-token",
			wantErr: ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewAuthenticator(tt.repo, pepper).Authenticate(context.Background(), tt.token)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, c.ID)
		})
	}
}

func TestAuthenticator_RepositoryError(t *testing.T) {
	repo := &mockRepo{err: errors.New("db down")}

	_, err := NewAuthenticator(repo, pepper).Authenticate(context.Background(), "secret-token")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticator_Address(t *testing.T) {
	a := NewAuthenticator(newRepo(), pepper)
	c := &Customer{ID: "c1"}

	addr, err := a.Address(context.Background(), c, "a1")
	require.NoError(t, err)
	assert.Equal(t, "1 Dairy Lane", addr.Street)

	_, err = a.Address(context.Background(), c, "a2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCustomerContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, CustomerFrom(ctx))

	c := &Customer{ID: "c1"}
	assert.Same(t, c, CustomerFrom(WithCustomer(ctx, c)))
}
