package availability

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	domainavailability "rentfleet/internal/domain/availability"
)

type BulkInput struct {
	ListingIDs  []string
	ListingType domainavailability.ListingType
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
	CreatedBy   string
}

// BulkFailure describes one listing the bulk request could not block.
type BulkFailure struct {
	ListingID string                        `json:"listing_id"`
	Reason    domainavailability.Kind       `json:"reason"`
	Message   string                        `json:"message"`
	Conflicts []domainavailability.Conflict `json:"conflicts,omitempty"`
}

// BulkResult keeps input order in both slices.
type BulkResult struct {
	Successful []*domainavailability.AvailabilityBlock
	Failed     []BulkFailure
}

type bulkSlot struct {
	block *domainavailability.AvailabilityBlock
	err   error
}

// CreateBulkBlocks runs CreateBlock once per listing with identical
// parameters. Each listing gets its own unit of work; a failure on one never
// affects another, so the call itself only fails on malformed input.
func (s *Service) CreateBulkBlocks(ctx context.Context, in BulkInput) (*BulkResult, error) {
	if len(in.ListingIDs) == 0 {
		return nil, &domainavailability.Error{Kind: domainavailability.ErrInvalidRequest, Message: "at least one listing id is required"}
	}

	ids := make([]string, len(in.ListingIDs))
	for i, id := range in.ListingIDs {
		ids[i] = strings.TrimSpace(id)
	}

	slots := make([]bulkSlot, len(ids))
	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency())
	for i, listingID := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				slots[i].err = err
				return nil
			}
			block, err := s.CreateBlock(ctx, CreateBlockInput{
				ListingID:   listingID,
				ListingType: in.ListingType,
				StartDate:   in.StartDate,
				EndDate:     in.EndDate,
				Reason:      in.Reason,
				CreatedBy:   in.CreatedBy,
			})
			slots[i] = bulkSlot{block: block, err: err}
			return nil
		})
	}
	_ = g.Wait()

	res := &BulkResult{
		Successful: make([]*domainavailability.AvailabilityBlock, 0, len(slots)),
		Failed:     make([]BulkFailure, 0),
	}
	for i, slot := range slots {
		if slot.err == nil {
			res.Successful = append(res.Successful, slot.block)
			continue
		}
		res.Failed = append(res.Failed, BulkFailure{
			ListingID: ids[i],
			Reason:    domainavailability.KindOf(slot.err),
			Message:   slot.err.Error(),
			Conflicts: domainavailability.ConflictsOf(slot.err),
		})
	}

	s.metrics().BulkCompleted(len(res.Successful), len(res.Failed))
	s.logger().InfoContext(ctx, "bulk blocks processed",
		slog.Int("requested", len(in.ListingIDs)),
		slog.Int("successful", len(res.Successful)),
		slog.Int("failed", len(res.Failed)))
	return res, nil
}
