// Package forecast implements SPEC_FULL.md §4.0's Tour/Instance Store: it
// turns already-structured template rows into a persisted Forecast plus its
// expanded Tour Instances. The out-of-scope text/CSV parser is a caller
// concern (spec.md §1); this package only operates on []TemplateInput, the
// structured shape any parser is expected to produce.
package forecast

import (
	"fmt"

	"github.com/DRNaser/solvereign/internal/errs"
	"github.com/DRNaser/solvereign/internal/fingerprint"
	"github.com/DRNaser/solvereign/internal/model"
)

// TemplateInput is one caller-supplied tour template row, prior to
// fingerprinting and instance expansion.
type TemplateInput struct {
	TemplateID      string
	Day             int
	StartMin        int
	EndMin          int
	CrossesMidnight bool
	Depot           string
	Skill           string
	Count           int
}

// IngestForecast validates rows, computes each template's fingerprint, and
// expands every template into its Tour Instances, returning the assembled
// Forecast and the flattened instance list (the Store layer persists both
// independently, per spec.md's "persisted state layout": tour templates,
// tour instances).
func IngestForecast(tenant, site, forecastVersion string, rows []TemplateInput) (model.Forecast, []model.TourInstance, error) {
	if tenant == "" || site == "" || forecastVersion == "" {
		return model.Forecast{}, nil, errs.New(errs.Validation, errs.CodeInvalidInput, "tenant, site and forecast_version are required")
	}
	seenIDs := make(map[string]TemplateInput, len(rows))
	templates := make([]model.TourTemplate, 0, len(rows))
	var instances []model.TourInstance

	for _, row := range rows {
		if row.TemplateID == "" {
			return model.Forecast{}, nil, errs.New(errs.Validation, errs.CodeInvalidInput, "template_id is required").WithField("template_id")
		}
		if row.Day < 1 || row.Day > 7 {
			return model.Forecast{}, nil, errs.New(errs.Validation, errs.CodeInvalidInput, fmt.Sprintf("day must be in 1..7, got %d", row.Day)).WithField("day")
		}
		if row.Count < 1 {
			return model.Forecast{}, nil, errs.New(errs.Validation, errs.CodeInvalidInput, fmt.Sprintf("count must be >= 1, got %d", row.Count)).WithField("count")
		}
		if prior, dup := seenIDs[row.TemplateID]; dup {
			if prior != row {
				return model.Forecast{}, nil, errs.New(errs.Validation, errs.CodeInvalidInput, "template_id reused with different attributes: "+row.TemplateID).WithField("template_id")
			}
			continue // exact duplicate row, idempotent re-ingest
		}
		seenIDs[row.TemplateID] = row

		fp := fingerprint.TourTemplateFingerprint(row.Day, row.StartMin, row.EndMin, row.Depot, row.Skill)
		tmpl := model.TourTemplate{
			TemplateID:      row.TemplateID,
			Tenant:          tenant,
			Site:            site,
			Day:             row.Day,
			StartMin:        row.StartMin,
			EndMin:          row.EndMin,
			CrossesMidnight: row.CrossesMidnight,
			Depot:           row.Depot,
			Skill:           row.Skill,
			Count:           row.Count,
			Fingerprint:     fp,
		}
		templates = append(templates, tmpl)
		instances = append(instances, Expand(tmpl)...)
	}

	fc := model.Forecast{
		Tenant:          tenant,
		Site:            site,
		ForecastVersion: forecastVersion,
		Templates:       templates,
	}
	return fc, instances, nil
}

// Expand is the pure function turning one template into its Tour Instances,
// instance_no ranging over [1..count].
func Expand(t model.TourTemplate) []model.TourInstance {
	out := make([]model.TourInstance, 0, t.Count)
	for i := 1; i <= t.Count; i++ {
		out = append(out, model.TourInstance{
			TemplateID:      t.TemplateID,
			InstanceNo:      i,
			Tenant:          t.Tenant,
			Site:            t.Site,
			Day:             t.Day,
			StartMin:        t.StartMin,
			EndMin:          t.EndMin,
			CrossesMidnight: t.CrossesMidnight,
			Depot:           t.Depot,
			Skill:           t.Skill,
		})
	}
	return out
}
