package salesforce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Query(ctx context.Context, soql string, out any) error {
	args := m.Called(ctx, soql, out)
	return args.Error(0)
}

func (m *MockClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	args := m.Called(ctx, sObjectName, record)
	return args.String(0), args.Error(1)
}

func (m *MockClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	args := m.Called(ctx, sObjectName, id, fields)
	return args.Error(0)
}

func TestFindAccountByName(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("Query", ctx, mock.MatchedBy(func(soql string) bool {
		return assert.Contains(t, soql, "WHERE Name = 'Acme Inc'")
	}), mock.Anything).Run(func(args mock.Arguments) {
		out := args.Get(2).(*[]Account)
		*out = []Account{{ID: "001ABC", Name: "Acme Inc"}}
	}).Return(nil)

	acct, err := FindAccountByName(ctx, mc, "Acme Inc")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "001ABC", acct.ID)
	mc.AssertExpectations(t)
}

func TestFindAccountByNameEscapesQuotes(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("Query", ctx, mock.MatchedBy(func(soql string) bool {
		return assert.Contains(t, soql, `O\'Brien Partners`)
	}), mock.Anything).Return(nil)

	acct, err := FindAccountByName(ctx, mc, "O'Brien Partners")
	require.NoError(t, err)
	assert.Nil(t, acct)
	mc.AssertExpectations(t)
}

func TestAttachNote(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("InsertOne", ctx, "Note", map[string]any{
		"ParentId": "001ABC",
		"Title":    "Account brief: Acme Inc",
		"Body":     "# brief",
	}).Return("002XYZ", nil)

	id, err := AttachNote(ctx, mc, "001ABC", "Account brief: Acme Inc", "# brief")
	require.NoError(t, err)
	assert.Equal(t, "002XYZ", id)
	mc.AssertExpectations(t)
}

func TestAttachNoteRequiresAccount(t *testing.T) {
	mc := new(MockClient)

	_, err := AttachNote(context.Background(), mc, "", "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account id is required")
}
