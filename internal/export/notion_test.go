package export

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/internal/model"
)

type mockNotion struct {
	mock.Mock
}

func (m *mockNotion) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *mockNotion) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func manufacturer(name, source string, total float64) model.ScoredManufacturer {
	moq := 800
	return model.ScoredManufacturer{
		Record: model.ManufacturerRecord{
			Name:              name,
			Website:           "https://" + name + ".vn",
			Location:          "Ho Chi Minh City, Vietnam",
			Contact:           model.Contact{Email: "sales@" + name + ".vn"},
			Materials:         []string{"recycled polyester"},
			Certifications:    []string{"OEKO-TEX", "GRS"},
			ProductionMethods: []string{"cut and sew"},
			MOQ:               &moq,
			Confidence:        model.ConfidenceHigh,
			SourceURL:         source,
		},
		Breakdown: model.ScoringBreakdown{Total: total},
	}
}

func existingPages(urls ...string) *notionapi.DatabaseQueryResponse {
	resp := &notionapi.DatabaseQueryResponse{}
	for _, u := range urls {
		resp.Results = append(resp.Results, notionapi.Page{
			Properties: notionapi.Properties{PropSourceURL: &notionapi.URLProperty{URL: u}},
		})
	}
	return resp
}

func completed(ms ...model.ScoredManufacturer) model.RunResult {
	return model.RunResult{RunID: "run-1", Status: model.ResultCompleted, Manufacturers: ms}
}

func createdFor(name string) any {
	return mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		title, ok := req.Properties[PropName].(notionapi.TitleProperty)
		return ok && len(title.Title) == 1 && title.Title[0].Text.Content == name
	})
}

func TestNotionSink_SkipsExistingSourceURLs(t *testing.T) {
	mc := new(mockNotion)
	mc.On("QueryDatabase", mock.Anything, "db-1", mock.Anything).
		Return(existingPages("https://beta.vn/about"), nil)
	mc.On("CreatePage", mock.Anything, createdFor("alpha")).Return(&notionapi.Page{ID: "p1"}, nil).Once()

	sink := NewNotionSink(mc, "db-1")
	err := sink.Deliver(context.Background(), model.PipelineRun{ID: "run-1"}, completed(
		manufacturer("alpha", "https://alpha.vn/factory", 88),
		manufacturer("beta", "https://beta.vn/about", 75),
	))

	require.NoError(t, err)
	mc.AssertExpectations(t)
	mc.AssertNumberOfCalls(t, "CreatePage", 1)
}

func TestNotionSink_PageProperties(t *testing.T) {
	mc := new(mockNotion)
	mc.On("QueryDatabase", mock.Anything, "db-1", mock.Anything).Return(existingPages(), nil)
	var got *notionapi.PageCreateRequest
	mc.On("CreatePage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(*notionapi.PageCreateRequest) }).
		Return(&notionapi.Page{ID: "p1"}, nil)

	err := NewNotionSink(mc, "db-1").Deliver(context.Background(), model.PipelineRun{ID: "run-1"},
		completed(manufacturer("alpha", "https://alpha.vn/factory", 88)))
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, notionapi.DatabaseID("db-1"), got.Parent.DatabaseID)
	p := got.Properties
	assert.Equal(t, 88.0, p[PropScore].(notionapi.NumberProperty).Number)
	assert.Equal(t, 800.0, p[PropMOQ].(notionapi.NumberProperty).Number)
	assert.Equal(t, "High", p[PropConfidence].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, "https://alpha.vn", p[PropWebsite].(notionapi.URLProperty).URL)
	assert.Equal(t, "https://alpha.vn/factory", p[PropSourceURL].(notionapi.URLProperty).URL)
	assert.Equal(t, "sales@alpha.vn", p[PropEmail].(notionapi.EmailProperty).Email)
	assert.Len(t, p[PropCertifications].(notionapi.MultiSelectProperty).MultiSelect, 2)
	assert.NotContains(t, p, PropPhone)
	assert.NotContains(t, p, PropAddress)
}

func TestNotionSink_MOQDescriptionGoesToNotes(t *testing.T) {
	m := manufacturer("gamma", "https://gamma.vn", 60)
	m.Record.MOQ = nil
	m.Record.MOQDescription = "flexible for new brands"
	m.Record.Notes = "Family owned"

	props := pageProperties(m)

	assert.NotContains(t, props, PropMOQ)
	notes := props[PropNotes].(notionapi.RichTextProperty)
	require.Len(t, notes.RichText, 1)
	assert.Equal(t, "MOQ: flexible for new brands\nFamily owned", notes.RichText[0].Text.Content)
}

func TestNotionSink_IgnoresUnfinishedRuns(t *testing.T) {
	mc := new(mockNotion)
	sink := NewNotionSink(mc, "db-1")

	for _, status := range []model.ResultStatus{model.ResultEmpty, model.ResultFailed, model.ResultPending} {
		err := sink.Deliver(context.Background(), model.PipelineRun{}, model.RunResult{Status: status})
		assert.NoError(t, err)
	}
	mc.AssertNotCalled(t, "QueryDatabase", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotionSink_PageFailuresAreCounted(t *testing.T) {
	mc := new(mockNotion)
	mc.On("QueryDatabase", mock.Anything, "db-1", mock.Anything).Return(existingPages(), nil)
	mc.On("CreatePage", mock.Anything, createdFor("alpha")).Return(nil, assert.AnError)
	mc.On("CreatePage", mock.Anything, createdFor("beta")).Return(&notionapi.Page{ID: "p2"}, nil)

	err := NewNotionSink(mc, "db-1").Deliver(context.Background(), model.PipelineRun{ID: "run-1"}, completed(
		manufacturer("alpha", "https://alpha.vn", 88),
		manufacturer("beta", "https://beta.vn", 75),
	))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 notion pages failed")
	mc.AssertNumberOfCalls(t, "CreatePage", 2)
}

func TestNotionSink_QueryError(t *testing.T) {
	mc := new(mockNotion)
	mc.On("QueryDatabase", mock.Anything, "db-1", mock.Anything).Return(nil, assert.AnError)

	err := NewNotionSink(mc, "db-1").Deliver(context.Background(), model.PipelineRun{},
		completed(manufacturer("alpha", "https://alpha.vn", 88)))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "export: load existing pages")
	mc.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything)
}
