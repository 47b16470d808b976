package availability

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"rentfleet/internal/app/handlers/support"
	"rentfleet/internal/app/uow"
	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
)

// BookingValidator answers whether a listing can take a booking for a range.
// It consults blocks, pattern occurrences and committed bookings.
type BookingValidator struct {
	UoW uow.UoWFactory
	// Bookings receives bookings recorded through RecordBooking. It must
	// write through the unit carried by the context.
	Bookings domainbooking.Writer
	Logger   *slog.Logger
	Metrics  Metrics
}

var ErrBookingWriterMissing = errors.New("availability: booking writer not configured")

// Validate fails with ErrNotAvailable carrying every conflict and a rendered
// summary when the range is taken.
func (v *BookingValidator) Validate(ctx context.Context, listingID string, r daterange.DateRange) error {
	r, err := normalizeRange(r)
	if err != nil {
		return err
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, v.UoW)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return v.check(ctx, unit, listingID, r, CheckOptions{})
}

// ValidateAndCommit runs the check and commit under the listing lock in one
// unit of work. commit sees the unit through uow.FromContext and should write
// the booking with it; the unit is committed only if commit succeeds.
func (v *BookingValidator) ValidateAndCommit(ctx context.Context, listingID string, r daterange.DateRange, commit func(ctx context.Context) error) error {
	return v.validateAndCommit(ctx, listingID, r, CheckOptions{}, true, commit)
}

// RecordBooking upserts b into the bookings projection under the listing
// lock, so it serializes with block creation on the same listing. A booking
// that holds the listing must find its range free; it never conflicts with
// its own earlier version. Released bookings are written without a check.
func (v *BookingValidator) RecordBooking(ctx context.Context, b *domainbooking.Booking) error {
	if v.Bookings == nil {
		return ErrBookingWriterMissing
	}
	if b == nil || strings.TrimSpace(string(b.ID)) == "" || strings.TrimSpace(b.ListingID) == "" {
		return domainavailability.InvalidRequest("booking id and listing id are required")
	}
	r, err := normalizeRange(b.Range)
	if err != nil {
		return err
	}
	stored := *b
	stored.Range = r
	opts := CheckOptions{ExcludeBookingID: string(b.ID)}
	err = v.validateAndCommit(ctx, b.ListingID, r, opts, stored.HoldsListing(), func(ctx context.Context) error {
		return v.Bookings.Put(ctx, &stored)
	})
	if err != nil {
		return err
	}
	v.logger().InfoContext(ctx, "booking recorded",
		slog.String("booking_id", string(b.ID)),
		slog.String("listing_id", b.ListingID),
		slog.String("status", string(b.Status)),
		slog.String("range", r.String()))
	return nil
}

func (v *BookingValidator) validateAndCommit(ctx context.Context, listingID string, r daterange.DateRange, opts CheckOptions, check bool, commit func(ctx context.Context) error) error {
	r, err := normalizeRange(r)
	if err != nil {
		return err
	}
	return support.RunInUnit(ctx, v.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.LockListing(ctx, listingID); err != nil {
			return err
		}
		if check {
			if err := v.check(ctx, unit, listingID, r, opts); err != nil {
				return err
			}
		}
		if commit == nil {
			return nil
		}
		return commit(ctx)
	})
}

func (v *BookingValidator) check(ctx context.Context, unit uow.UnitOfWork, listingID string, r daterange.DateRange, opts CheckOptions) error {
	opts.Sources = SourceAll
	conflicts, err := DetectConflicts(ctx, unit, listingID, r, opts)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	metricsOrNop(v.Metrics).ConflictDetected(domainavailability.KindNotAvailable)
	notAvailable := domainavailability.NotAvailable(conflicts)
	v.logger().InfoContext(ctx, "booking range not available",
		slog.String("listing_id", listingID),
		slog.String("range", r.String()),
		slog.String("details", notAvailable.Details))
	return notAvailable
}

func (v *BookingValidator) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}
