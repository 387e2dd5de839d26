package legal

import (
	"context"
	"fmt"

	"github.com/acrylic/rights/events"
	"github.com/acrylic/rights/models"
)

type ReconcileReport struct {
	Checked int
	Signed  int
	Expired int
	Errors  int
}

// Reconcile polls the provider for every pending split sheet and applies
// completions and expirations whose webhooks never arrived.
func (o *Orchestrator) Reconcile(ctx context.Context, limit int) (ReconcileReport, error) {
	var report ReconcileReport
	sheets, err := o.store.PendingSplitSheets(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("load pending split sheets: %w", err)
	}

	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		l := o.log.With("split_sheet", sheet.ID, "request_id", sheet.SignatureRequestID)

		doc, err := o.provider.GetDocument(ctx, sheet.SignatureRequestID)
		if err != nil {
			report.Errors++
			l.Warn("failed to fetch document status", "err", err)
			continue
		}

		switch {
		case doc.Completed():
			at := o.now()
			ok, err := o.store.MarkSplitSheetSigned(ctx, sheet.ID, at)
			if err != nil {
				report.Errors++
				l.Error("failed to mark split sheet signed", "err", err)
				continue
			}
			if ok {
				report.Signed++
				l.Info("split sheet signed")
				o.publisher.Publish(ctx, events.SplitSheetSigned, sheet.UUID, events.SplitSheetData{
					UUID:               sheet.UUID,
					ISRC:               sheet.EffectiveISRC(),
					Status:             string(models.StatusSigned),
					SignatureRequestID: sheet.SignatureRequestID,
					Signed:             &at,
				})
			}
		case doc.Expired():
			ok, err := o.store.MarkSplitSheetExpired(ctx, sheet.ID, sheet.SignatureRequestID)
			if err != nil {
				report.Errors++
				l.Error("failed to mark split sheet expired", "err", err)
				continue
			}
			if ok {
				report.Expired++
				l.Info("split sheet expired")
				o.publisher.Publish(ctx, events.SplitSheetExpired, sheet.UUID, events.SplitSheetData{
					UUID:               sheet.UUID,
					ISRC:               sheet.EffectiveISRC(),
					Status:             string(models.StatusExpired),
					SignatureRequestID: sheet.SignatureRequestID,
				})
			}
		}
	}
	return report, nil
}
