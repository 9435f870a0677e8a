package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"grimm.is/aliasync/internal/alias"
	"grimm.is/aliasync/internal/errors"
	"grimm.is/aliasync/internal/logging"
)

// MockStore for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Search(ctx context.Context) ([]alias.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]alias.Record), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, name string) (*alias.Record, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alias.Record), args.Error(1)
}

func (m *MockStore) Create(ctx context.Context, spec alias.Spec) (*alias.Result, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alias.Result), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, name string, spec alias.Spec) (*alias.Result, error) {
	args := m.Called(ctx, name, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alias.Result), args.Error(1)
}

func (m *MockStore) Reload(ctx context.Context) (*alias.Result, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alias.Result), args.Error(1)
}

var web = alias.Spec{Name: "web", Ports: []string{"80", "443"}, Description: "Web", Enabled: true}

func TestReconcile_CreatesAbsentAlias(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, "web").Return(nil, alias.ErrNotFound)
	store.On("Create", mock.Anything, web).Return(&alias.Result{Result: "saved", UUID: "u-1"}, nil)

	out := NewReconciler(store, logging.Discard()).Reconcile(context.Background(), web)

	assert.Equal(t, Created, out.Action)
	assert.Equal(t, "create", out.Attempted)
	assert.True(t, out.OK())
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_UpdatesPresentAlias(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, "web").Return(&alias.Record{UUID: "u-1", Name: "web", Color: "ff0000"}, nil)
	store.On("Update", mock.Anything, "web", web).Return(&alias.Result{Result: "saved"}, nil)

	out := NewReconciler(store, logging.Discard()).Reconcile(context.Background(), web)

	assert.Equal(t, Updated, out.Action)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReconcile_LookupFailureNeverCreates(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, "web").Return(nil, errors.New("API error (GET /api/firewall/alias/getAliasUUID/web, status 502)"))

	out := NewReconciler(store, logging.Discard()).Reconcile(context.Background(), web)

	assert.Equal(t, Failed, out.Action)
	assert.Empty(t, out.Attempted)
	assert.Contains(t, out.Reason, "lookup failed")
	assert.Error(t, out.Err)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_WrappedNotFoundCreates(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, "web").Return(nil, errors.Wrap(alias.ErrNotFound, "lookup alias \"web\""))
	store.On("Create", mock.Anything, web).Return(&alias.Result{Result: "saved"}, nil)

	out := NewReconciler(store, logging.Discard()).Reconcile(context.Background(), web)
	assert.Equal(t, Created, out.Action)
}

func TestReconcile_RejectedMutations(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*MockStore)
		reason string
	}{
		{
			name: "create rejected",
			setup: func(s *MockStore) {
				s.On("Get", mock.Anything, "web").Return(nil, alias.ErrNotFound)
				s.On("Create", mock.Anything, web).Return(&alias.Result{Result: "failed", Validations: map[string]any{"alias.content": "invalid port"}}, nil)
			},
			reason: "invalid port",
		},
		{
			name: "create transport error",
			setup: func(s *MockStore) {
				s.On("Get", mock.Anything, "web").Return(nil, alias.ErrNotFound)
				s.On("Create", mock.Anything, web).Return(nil, errors.New("connection reset"))
			},
			reason: "connection reset",
		},
		{
			name: "update without success token",
			setup: func(s *MockStore) {
				s.On("Get", mock.Anything, "web").Return(&alias.Record{Name: "web"}, nil)
				s.On("Update", mock.Anything, "web", web).Return(&alias.Result{}, nil)
			},
			reason: `result "empty"`,
		},
		{
			name: "update transport error",
			setup: func(s *MockStore) {
				s.On("Get", mock.Anything, "web").Return(&alias.Record{Name: "web"}, nil)
				s.On("Update", mock.Anything, "web", web).Return(nil, errors.New("timeout"))
			},
			reason: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			tt.setup(store)

			out := NewReconciler(store, logging.Discard()).Reconcile(context.Background(), web)

			assert.Equal(t, Failed, out.Action)
			assert.NotEmpty(t, out.Attempted)
			assert.Contains(t, out.Reason, tt.reason)
			store.AssertExpectations(t)
		})
	}
}
