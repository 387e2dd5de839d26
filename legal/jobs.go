package legal

import (
	"context"
	"errors"
	"fmt"

	"github.com/acrylic/rights/jobs"
	"github.com/acrylic/rights/models"
	"github.com/acrylic/rights/store"
)

type Registrar interface {
	Register(kind string, h jobs.Handler)
}

// Register wires the signature request jobs into r.
func (o *Orchestrator) Register(r Registrar) {
	r.Register(store.KindRequestSignatures, o.handleRequestSignatures)
	r.Register(store.KindRequestContract, o.handleRequestContract)
}

func (o *Orchestrator) handleRequestSignatures(ctx context.Context, payload []byte) error {
	var p store.SplitSheetJob
	if err := jobs.Bind(payload, &p); err != nil {
		return err
	}
	res := o.RequestSplitSheetSignatures(ctx, p.SplitSheetID)
	if res.Outcome == NotFound {
		o.log.Warn("split sheet no longer exists", "split_sheet", p.SplitSheetID)
	}
	return jobError(res)
}

func (o *Orchestrator) handleRequestContract(ctx context.Context, payload []byte) error {
	var p store.ArtistJob
	if err := jobs.Bind(payload, &p); err != nil {
		return err
	}
	res := o.RequestContractSignature(ctx, p.ArtistID)
	if res.Outcome == NotFound {
		o.log.Warn("artist no longer exists", "artist", p.ArtistID)
	}
	return jobError(res)
}

// jobError maps a result onto the runner's retry policy. Failures before
// submission are retried unless the document itself is invalid. Rejections
// and anything after the provider accepted the request are not.
func jobError(r Result) error {
	switch r.Outcome {
	case Requested, Skipped, NotFound:
		return nil
	case ProviderRejected, Unrecorded:
		return jobs.Permanent(fmt.Errorf("%s: %w", r.Outcome, r.Err))
	}
	var verr *models.ValidationError
	if errors.As(r.Err, &verr) {
		return jobs.Permanent(fmt.Errorf("%s: %w", r.Outcome, r.Err))
	}
	return fmt.Errorf("%s: %w", r.Outcome, r.Err)
}
