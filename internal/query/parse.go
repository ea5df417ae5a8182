package query

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/pkg/anthropic"
)

// maxQueryLen drops runaway model output that is not a usable query.
const maxQueryLen = 256

type queryItem struct {
	Query    string `json:"query"`
	Strategy string `json:"strategy"`
}

// parseQueries decodes a model reply. Both {"queries":[{query,strategy}]}
// and a bare JSON array of strings are accepted.
func parseQueries(text string) ([]model.Query, error) {
	raw := anthropic.CleanJSON(text)
	if raw == "" {
		return nil, eris.New("query: empty response")
	}

	var items []queryItem
	if strings.HasPrefix(raw, "[") {
		var strs []string
		if err := json.Unmarshal([]byte(raw), &strs); err != nil {
			// Tolerate an array of objects too.
			if err2 := json.Unmarshal([]byte(raw), &items); err2 != nil {
				return nil, eris.Wrap(err, "query: unmarshal query array")
			}
		}
		for _, s := range strs {
			items = append(items, queryItem{Query: s})
		}
	} else {
		var obj struct {
			Queries []queryItem `json:"queries"`
		}
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, eris.Wrap(err, "query: unmarshal query object")
		}
		items = obj.Queries
	}

	out := make([]model.Query, 0, len(items))
	for _, it := range items {
		text := squash(it.Query)
		if text == "" || len(text) > maxQueryLen {
			continue
		}
		strategy := model.ParseStrategy(it.Strategy)
		if strategy == model.StrategyCustom {
			// Only operator-supplied queries carry the custom tag.
			strategy = model.StrategyDirectManufacturer
		}
		out = append(out, model.Query{Text: text, Strategy: strategy})
	}
	if len(out) == 0 {
		return nil, eris.New("query: response contained no usable queries")
	}
	return out, nil
}
