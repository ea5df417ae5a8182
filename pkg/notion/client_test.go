package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *MockClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*MockClient)(nil)
}

func TestNewClient_RateLimitOption(t *testing.T) {
	t.Parallel()

	c := NewClient("secret", WithRateLimit(0)).(*notionClient)
	assert.Nil(t, c.limiter)
	require.NoError(t, c.wait(context.Background()))

	c = NewClient("secret", WithRateLimit(10)).(*notionClient)
	require.NotNil(t, c.limiter)
	assert.Equal(t, 10, c.limiter.Burst())
}

func TestWait_CanceledContext(t *testing.T) {
	t.Parallel()

	c := NewClient("secret", WithRateLimit(0.001)).(*notionClient)
	require.NoError(t, c.wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: rate limit")
}

func TestPropertyBuilders(t *testing.T) {
	t.Parallel()

	title := Title("Porto Knit")
	require.Len(t, title.Title, 1)
	assert.Equal(t, "Porto Knit", title.Title[0].Text.Content)

	assert.Empty(t, Text("").RichText)

	long := make([]rune, 2500)
	for i := range long {
		long[i] = 'é'
	}
	assert.Len(t, []rune(Text(string(long)).RichText[0].Text.Content), maxRichText)

	ms := MultiSelect([]string{"GOTS", " ", "OEKO-TEX, Standard 100"})
	require.Len(t, ms.MultiSelect, 2)
	assert.Equal(t, "OEKO-TEX  Standard 100", ms.MultiSelect[1].Name)

	assert.Equal(t, "Vietnam", Select("Vietnam").Select.Name)
	assert.InDelta(t, 82.5, Number(82.5).Number, 0.001)
	assert.Equal(t, "https://acme.vn", URL("https://acme.vn").URL)
	assert.Equal(t, "sales@acme.vn", Email("sales@acme.vn").Email)
	assert.Equal(t, "+84 28 1234", Phone("+84 28 1234").PhoneNumber)
}
