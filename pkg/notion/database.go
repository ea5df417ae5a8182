package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches every page of a database query, following cursors.
func QueryAll(ctx context.Context, c Client, dbID string, base *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if base != nil {
			req.Filter = base.Filter
			req.Sorts = base.Sorts
			req.PageSize = base.PageSize
		}
		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}
		all = append(all, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// URLValues returns the set of non-empty values of a URL property across
// every page in the database.
func URLValues(ctx context.Context, c Client, dbID, property string) (map[string]bool, error) {
	pages, err := QueryAll(ctx, c, dbID, &notionapi.DatabaseQueryRequest{PageSize: 100})
	if err != nil {
		return nil, eris.Wrapf(err, "notion: collect %s values", property)
	}
	out := make(map[string]bool, len(pages))
	for _, p := range pages {
		switch v := p.Properties[property].(type) {
		case *notionapi.URLProperty:
			if v.URL != "" {
				out[v.URL] = true
			}
		case notionapi.URLProperty:
			if v.URL != "" {
				out[v.URL] = true
			}
		}
	}
	return out, nil
}
