package availability

import (
	"context"
	"time"

	appavailability "rentfleet/internal/app/availability"
	"rentfleet/internal/app/commands"
	"rentfleet/internal/app/dto"
	"rentfleet/internal/app/middleware"
	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
)

const (
	createBlockKey          = "availability.block.create"
	createRecurringBlockKey = "availability.recurring.create"
	updateRecurringBlockKey = "availability.recurring.update"
	deleteRecurringBlockKey = "availability.recurring.delete"
	createBulkBlocksKey     = "availability.bulk.create"
	recordBookingKey        = "availability.booking.record"
)

type CreateBlockCommand struct {
	ListingID       string    `validate:"required,max=128"`
	ListingType     string    `validate:"required,oneof=vehicle driver"`
	StartDate       time.Time `validate:"required"`
	EndDate         time.Time `validate:"required"`
	Reason          string    `validate:"max=500"`
	CreatedBy       string    `validate:"required"`
	IdempotencyKeyV string
}

func (c CreateBlockCommand) Key() string { return createBlockKey }

func (c CreateBlockCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBlockCommand) ResultPrototype() any { return &dto.Block{} }

type CreateBlockHandler struct {
	Engine *appavailability.Service
}

func (h *CreateBlockHandler) Handle(ctx context.Context, cmd CreateBlockCommand) (*dto.Block, error) {
	block, err := h.Engine.CreateBlock(ctx, appavailability.CreateBlockInput{
		ListingID:   cmd.ListingID,
		ListingType: domainavailability.ListingType(cmd.ListingType),
		StartDate:   cmd.StartDate,
		EndDate:     cmd.EndDate,
		Reason:      cmd.Reason,
		CreatedBy:   cmd.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	out := dto.MapBlock(block)
	return &out, nil
}

type CreateRecurringBlockCommand struct {
	ListingID   string     `validate:"required,max=128"`
	ListingType string     `validate:"required,oneof=vehicle driver"`
	DaysOfWeek  []int      `validate:"required,min=1,max=7,dive,min=0,max=6"`
	StartDate   time.Time  `validate:"required"`
	EndDate     *time.Time `validate:"omitempty"`
	Reason      string     `validate:"max=500"`
	CreatedBy   string     `validate:"required"`
}

func (c CreateRecurringBlockCommand) Key() string { return createRecurringBlockKey }

type CreateRecurringBlockHandler struct {
	Engine *appavailability.Service
}

func (h *CreateRecurringBlockHandler) Handle(ctx context.Context, cmd CreateRecurringBlockCommand) (*dto.RecurringBlock, error) {
	pattern, err := h.Engine.CreateRecurringBlock(ctx, appavailability.CreateRecurringInput{
		ListingID:   cmd.ListingID,
		ListingType: domainavailability.ListingType(cmd.ListingType),
		DaysOfWeek:  cmd.DaysOfWeek,
		StartDate:   cmd.StartDate,
		EndDate:     cmd.EndDate,
		Reason:      cmd.Reason,
		CreatedBy:   cmd.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	out := dto.MapRecurringBlock(pattern)
	return &out, nil
}

type UpdateRecurringBlockCommand struct {
	ID           string `validate:"required"`
	Scope        string
	UpdateDate   time.Time
	DaysOfWeek   []int `validate:"omitempty,min=1,max=7,dive,min=0,max=6"`
	StartDate    *time.Time
	EndDate      *time.Time
	ClearEndDate bool
	Reason       *string `validate:"omitempty,max=500"`
}

func (c UpdateRecurringBlockCommand) Key() string { return updateRecurringBlockKey }

type UpdateRecurringBlockHandler struct {
	Engine *appavailability.Service
}

func (h *UpdateRecurringBlockHandler) Handle(ctx context.Context, cmd UpdateRecurringBlockCommand) (*dto.RecurringBlock, error) {
	scope, err := domainavailability.ParseScope(cmd.Scope)
	if err != nil {
		return nil, err
	}
	patch := domainavailability.Patch{
		StartDate:    cmd.StartDate,
		EndDate:      cmd.EndDate,
		ClearEndDate: cmd.ClearEndDate,
		Reason:       cmd.Reason,
	}
	if cmd.DaysOfWeek != nil {
		days, err := domainavailability.NewWeekdays(cmd.DaysOfWeek...)
		if err != nil {
			return nil, err
		}
		patch.DaysOfWeek = &days
	}
	pattern, err := h.Engine.UpdateRecurringBlock(ctx, appavailability.UpdateRecurringInput{
		ID:         domainavailability.RecurringBlockID(cmd.ID),
		Scope:      scope,
		UpdateDate: cmd.UpdateDate,
		Patch:      patch,
	})
	if err != nil {
		return nil, err
	}
	out := dto.MapRecurringBlock(pattern)
	return &out, nil
}

type DeleteRecurringBlockCommand struct {
	ID         string `validate:"required"`
	Scope      string
	DeleteDate time.Time
}

func (c DeleteRecurringBlockCommand) Key() string { return deleteRecurringBlockKey }

type DeleteRecurringBlockHandler struct {
	Engine *appavailability.Service
}

func (h *DeleteRecurringBlockHandler) Handle(ctx context.Context, cmd DeleteRecurringBlockCommand) (*dto.RecurringDeleted, error) {
	scope, err := domainavailability.ParseScope(cmd.Scope)
	if err != nil {
		return nil, err
	}
	if err := h.Engine.DeleteRecurringBlock(ctx, domainavailability.RecurringBlockID(cmd.ID), scope, cmd.DeleteDate); err != nil {
		return nil, err
	}
	return &dto.RecurringDeleted{ID: cmd.ID, Scope: string(scope)}, nil
}

type CreateBulkBlocksCommand struct {
	ListingIDs      []string  `validate:"required,min=1,max=500,dive,required"`
	ListingType     string    `validate:"required,oneof=vehicle driver"`
	StartDate       time.Time `validate:"required"`
	EndDate         time.Time `validate:"required"`
	Reason          string    `validate:"max=500"`
	CreatedBy       string    `validate:"required"`
	IdempotencyKeyV string
}

func (c CreateBulkBlocksCommand) Key() string { return createBulkBlocksKey }

func (c CreateBulkBlocksCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBulkBlocksCommand) ResultPrototype() any { return &dto.BulkResult{} }

type CreateBulkBlocksHandler struct {
	Engine *appavailability.Service
}

func (h *CreateBulkBlocksHandler) Handle(ctx context.Context, cmd CreateBulkBlocksCommand) (*dto.BulkResult, error) {
	res, err := h.Engine.CreateBulkBlocks(ctx, appavailability.BulkInput{
		ListingIDs:  cmd.ListingIDs,
		ListingType: domainavailability.ListingType(cmd.ListingType),
		StartDate:   cmd.StartDate,
		EndDate:     cmd.EndDate,
		Reason:      cmd.Reason,
		CreatedBy:   cmd.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	out := dto.MapBulkResult(res)
	return &out, nil
}

// RecordBookingCommand is sent by the booking service when a booking is
// requested or changes status.
type RecordBookingCommand struct {
	ListingID     string    `validate:"required,max=128"`
	BookingID     string    `validate:"required,max=128"`
	BookingNumber string    `validate:"max=64"`
	RenterID      string    `validate:"max=128"`
	StartDate     time.Time `validate:"required"`
	EndDate       time.Time `validate:"required"`
	Status        string    `validate:"required"`
}

func (c RecordBookingCommand) Key() string { return recordBookingKey }

type RecordBookingHandler struct {
	Validator *appavailability.BookingValidator
}

func (h *RecordBookingHandler) Handle(ctx context.Context, cmd RecordBookingCommand) (*dto.Booking, error) {
	status, ok := domainbooking.ParseStatus(cmd.Status)
	if !ok {
		return nil, domainavailability.InvalidRequest("unknown booking status %q", cmd.Status)
	}
	b := &domainbooking.Booking{
		ID:            domainbooking.BookingID(cmd.BookingID),
		BookingNumber: cmd.BookingNumber,
		ListingID:     cmd.ListingID,
		RenterID:      cmd.RenterID,
		Range:         daterange.DateRange{Start: cmd.StartDate, End: cmd.EndDate},
		Status:        status,
	}
	if err := h.Validator.RecordBooking(ctx, b); err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

// RegisterCommands wires every availability command handler onto bus.
func RegisterCommands(bus *commands.InMemoryBus, engine *appavailability.Service, validator *appavailability.BookingValidator) {
	commands.RegisterHandler[CreateBlockCommand, *dto.Block](bus, createBlockKey, &CreateBlockHandler{Engine: engine})
	commands.RegisterHandler[CreateRecurringBlockCommand, *dto.RecurringBlock](bus, createRecurringBlockKey, &CreateRecurringBlockHandler{Engine: engine})
	commands.RegisterHandler[UpdateRecurringBlockCommand, *dto.RecurringBlock](bus, updateRecurringBlockKey, &UpdateRecurringBlockHandler{Engine: engine})
	commands.RegisterHandler[DeleteRecurringBlockCommand, *dto.RecurringDeleted](bus, deleteRecurringBlockKey, &DeleteRecurringBlockHandler{Engine: engine})
	commands.RegisterHandler[CreateBulkBlocksCommand, *dto.BulkResult](bus, createBulkBlocksKey, &CreateBulkBlocksHandler{Engine: engine})
	commands.RegisterHandler[RecordBookingCommand, *dto.Booking](bus, recordBookingKey, &RecordBookingHandler{Validator: validator})
}

var (
	_ commands.Handler[CreateBlockCommand, *dto.Block]                     = (*CreateBlockHandler)(nil)
	_ commands.Handler[CreateRecurringBlockCommand, *dto.RecurringBlock]   = (*CreateRecurringBlockHandler)(nil)
	_ commands.Handler[UpdateRecurringBlockCommand, *dto.RecurringBlock]   = (*UpdateRecurringBlockHandler)(nil)
	_ commands.Handler[DeleteRecurringBlockCommand, *dto.RecurringDeleted] = (*DeleteRecurringBlockHandler)(nil)
	_ commands.Handler[CreateBulkBlocksCommand, *dto.BulkResult]           = (*CreateBulkBlocksHandler)(nil)
	_ commands.Handler[RecordBookingCommand, *dto.Booking]                 = (*RecordBookingHandler)(nil)
	_ middleware.IdempotentCommand                                         = (*CreateBlockCommand)(nil)
	_ middleware.IdempotentCommand                                         = (*CreateBulkBlocksCommand)(nil)
)
