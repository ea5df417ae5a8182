// Package export delivers finished runs to external destinations.
package export

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/pkg/notion"
)

// Property names of the manufacturers database.
const (
	PropName              = "Name"
	PropScore             = "Match Score"
	PropLocation          = "Location"
	PropWebsite           = "Website"
	PropMOQ               = "MOQ"
	PropConfidence        = "Confidence"
	PropMaterials         = "Materials"
	PropCertifications    = "Certifications"
	PropProductionMethods = "Production Methods"
	PropEmail             = "Email"
	PropPhone             = "Phone"
	PropAddress           = "Address"
	PropNotes             = "Notes"
	PropSourceURL         = "Source URL"
)

// NotionSink writes one database page per scored manufacturer. Records
// whose source URL is already in the database are skipped.
type NotionSink struct {
	client notion.Client
	dbID   string
}

// NewNotionSink creates a sink targeting the database dbID.
func NewNotionSink(client notion.Client, dbID string) *NotionSink {
	return &NotionSink{client: client, dbID: dbID}
}

// Name implements pipeline.Sink.
func (s *NotionSink) Name() string { return "notion" }

// Deliver implements pipeline.Sink. Only completed runs are exported. A
// failed page does not stop the rest; the error reports how many failed.
func (s *NotionSink) Deliver(ctx context.Context, run model.PipelineRun, result model.RunResult) error {
	if result.Status != model.ResultCompleted || len(result.Manufacturers) == 0 {
		return nil
	}

	existing, err := notion.URLValues(ctx, s.client, s.dbID, PropSourceURL)
	if err != nil {
		return eris.Wrap(err, "export: load existing pages")
	}

	var created, skipped, failed int
	for _, m := range result.Manufacturers {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "export: notion delivery canceled")
		}
		if m.Record.SourceURL != "" && existing[m.Record.SourceURL] {
			skipped++
			continue
		}
		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(s.dbID),
			},
			Properties: pageProperties(m),
		}
		if _, err := s.client.CreatePage(ctx, req); err != nil {
			failed++
			zap.L().Warn("export: notion page failed",
				zap.String("run_id", run.ID),
				zap.String("manufacturer", m.Record.Name),
				zap.Error(err),
			)
			continue
		}
		created++
		existing[m.Record.SourceURL] = true
	}

	zap.L().Info("export: notion delivery complete",
		zap.String("run_id", run.ID),
		zap.Int("created", created),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	if failed > 0 {
		return eris.Errorf("export: %d of %d notion pages failed", failed, len(result.Manufacturers)-skipped)
	}
	return nil
}

// pageProperties maps a scored record to database properties. Empty
// values are left out; Notion rejects blank URLs, emails and selects.
func pageProperties(m model.ScoredManufacturer) notionapi.Properties {
	r := m.Record
	props := notionapi.Properties{
		PropName:  notion.Title(r.Name),
		PropScore: notion.Number(m.Score()),
	}
	if r.Confidence != "" {
		props[PropConfidence] = notion.Select(cases.Title(language.English).String(string(r.Confidence)))
	}
	if r.Location != "" {
		props[PropLocation] = notion.Text(r.Location)
	}
	if r.Website != "" {
		props[PropWebsite] = notion.URL(r.Website)
	}
	switch {
	case r.MOQ != nil:
		props[PropMOQ] = notion.Number(float64(*r.MOQ))
	case r.MOQDescription != "":
		props[PropNotes] = notion.Text("MOQ: " + r.MOQDescription)
	}
	if len(r.Materials) > 0 {
		props[PropMaterials] = notion.MultiSelect(r.Materials)
	}
	if len(r.Certifications) > 0 {
		props[PropCertifications] = notion.MultiSelect(r.Certifications)
	}
	if len(r.ProductionMethods) > 0 {
		props[PropProductionMethods] = notion.MultiSelect(r.ProductionMethods)
	}
	if r.Contact.Email != "" {
		props[PropEmail] = notion.Email(r.Contact.Email)
	}
	if r.Contact.Phone != "" {
		props[PropPhone] = notion.Phone(r.Contact.Phone)
	}
	if r.Contact.Address != "" {
		props[PropAddress] = notion.Text(r.Contact.Address)
	}
	if r.Notes != "" {
		notes := r.Notes
		if r.MOQ == nil && r.MOQDescription != "" {
			notes = "MOQ: " + r.MOQDescription + "\n" + notes
		}
		props[PropNotes] = notion.Text(notes)
	}
	if r.SourceURL != "" {
		props[PropSourceURL] = notion.URL(r.SourceURL)
	}
	return props
}
