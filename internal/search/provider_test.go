package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/pkg/brave"
	"github.com/sells-group/sourcing-cli/pkg/jina"
)

type fakeBrave struct {
	resp  *brave.SearchResponse
	err   error
	count int
}

func (f *fakeBrave) Search(_ context.Context, _ string, count int) (*brave.SearchResponse, error) {
	f.count = count
	return f.resp, f.err
}

type fakeJina struct {
	jina.Client
	resp *jina.SearchResponse
	err  error
}

func (f *fakeJina) Search(context.Context, string, ...jina.SearchOption) (*jina.SearchResponse, error) {
	return f.resp, f.err
}

func TestBraveProvider(t *testing.T) {
	resp := &brave.SearchResponse{}
	resp.Web.Results = []brave.Result{
		{Title: "Acme Knit", URL: "https://acme-knit.com", Description: "OEM activewear"},
	}
	fb := &fakeBrave{resp: resp}

	p := NewBraveProvider(fb, 10)
	hits, err := p.Search(context.Background(), "activewear")

	require.NoError(t, err)
	assert.Equal(t, "brave", p.Name())
	assert.Equal(t, 10, fb.count)
	assert.Equal(t, []Hit{{URL: "https://acme-knit.com", Title: "Acme Knit", Snippet: "OEM activewear"}}, hits)
}

func TestBraveProvider_Error(t *testing.T) {
	_, err := NewBraveProvider(&fakeBrave{err: errors.New("boom")}, 10).Search(context.Background(), "q")
	assert.ErrorContains(t, err, "search: brave")
}

func TestJinaProvider(t *testing.T) {
	fj := &fakeJina{resp: &jina.SearchResponse{Data: []jina.SearchResult{
		{Title: "VN Factory", URL: "https://vnfactory.vn", Description: "cut and sew"},
	}}}

	p := NewJinaProvider(fj, 10)
	hits, err := p.Search(context.Background(), "activewear")

	require.NoError(t, err)
	assert.Equal(t, "jina", p.Name())
	assert.Equal(t, []Hit{{URL: "https://vnfactory.vn", Title: "VN Factory", Snippet: "cut and sew"}}, hits)
}

func TestJinaProvider_NoResults(t *testing.T) {
	hits, err := NewJinaProvider(&fakeJina{resp: &jina.SearchResponse{Code: 422}}, 0).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, hits)
}
