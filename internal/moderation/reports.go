// internal/moderation/reports.go
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

// FileVariantReport records that reporter flagged a variant: one entry in
// the variant's moderation document plus the reporter's own record. A
// repeat report from the same user replaces their entry instead of
// stacking.
func FileVariantReport(ctx context.Context, st store.Store, variantID, reporterID, reason string) error {
	now := time.Now().UnixMilli()
	rec := models.ReportRecord{Reason: reason, Time: now}
	if err := st.Set(ctx, models.ReportedVariantRef(reporterID, variantID), rec); err != nil {
		return fmt.Errorf("failed to record report by %s: %w", reporterID, err)
	}
	return appendReport(ctx, st, models.VariantModerationRef(variantID), models.ModerationReport{
		ReporterID: reporterID,
		Reason:     reason,
		Time:       now,
	})
}

// FileUserReport records that reporter flagged another user.
func FileUserReport(ctx context.Context, st store.Store, reportedID, reporterID, reason string) error {
	now := time.Now().UnixMilli()
	rec := models.ReportRecord{Reason: reason, Time: now}
	if err := st.Set(ctx, models.ReportedUserRef(reporterID, reportedID), rec); err != nil {
		return fmt.Errorf("failed to record report by %s: %w", reporterID, err)
	}
	return appendReport(ctx, st, models.UserModerationRef(reportedID), models.ModerationReport{
		ReporterID: reporterID,
		Reason:     reason,
		Time:       now,
	})
}

// DiscardVariantReports drops the given reporters' entries from a
// variant's moderation record, leaving everyone else's untouched. Missing
// records and absent entries are fine: the desired end state already
// holds.
func DiscardVariantReports(ctx context.Context, st store.Store, variantID string, reporters []string) error {
	return discardReports(ctx, st, models.VariantModerationRef(variantID), reporters)
}

// DiscardUserReports is DiscardVariantReports for reports against a user.
func DiscardUserReports(ctx context.Context, st store.Store, userID string, reporters []string) error {
	return discardReports(ctx, st, models.UserModerationRef(userID), reporters)
}

func appendReport(ctx context.Context, st store.Store, ref store.Ref, report models.ModerationReport) error {
	doc := models.ModerationDoc{}
	if snap, err := st.Get(ctx, ref); err == nil {
		decoded, err := models.DecodeModeration(snap)
		if err != nil {
			return err
		}
		doc = *decoded
	} else if err != store.ErrNotFound {
		return fmt.Errorf("failed to fetch moderation record %s: %w", ref.Path(), err)
	}

	kept := doc.Reports[:0]
	for _, r := range doc.Reports {
		if r.ReporterID != report.ReporterID {
			kept = append(kept, r)
		}
	}
	doc.Reports = append(kept, report)

	if err := st.Set(ctx, ref, doc); err != nil {
		return fmt.Errorf("failed to write moderation record %s: %w", ref.Path(), err)
	}
	return nil
}

func discardReports(ctx context.Context, st store.Store, ref store.Ref, reporters []string) error {
	snap, err := st.Get(ctx, ref)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch moderation record %s: %w", ref.Path(), err)
	}
	doc, err := models.DecodeModeration(snap)
	if err != nil {
		return err
	}

	drop := make(map[string]bool, len(reporters))
	for _, r := range reporters {
		drop[r] = true
	}

	kept := make([]models.ModerationReport, 0, len(doc.Reports))
	for _, r := range doc.Reports {
		if !drop[r.ReporterID] {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(doc.Reports) {
		return nil
	}

	if err := st.Update(ctx, ref, map[string]any{"reports": kept}); err != nil {
		return fmt.Errorf("failed to rewrite moderation record %s: %w", ref.Path(), err)
	}
	return nil
}
