package booking

import "errors"

// Failure taxonomy of the reservation protocol.  Every operation returns
// one of these (possibly wrapped) or an infrastructure error, and none of
// them leaves a partial write behind.
var (
    // ErrUnauthenticated means the caller carries no identity.
    ErrUnauthenticated = errors.New("user not authenticated")

    // ErrNotFound means the target reservation does not exist.
    ErrNotFound = errors.New("reservation not found")

    // ErrPermissionDenied means the caller is neither the owner nor an admin.
    ErrPermissionDenied = errors.New("you can only modify your own reservations")

    // ErrSlotFull means the target slot has reached its capacity.
    ErrSlotFull = errors.New("this slot is full, please choose another")

    // ErrSlotNotFound means no counter is provisioned for the target date and slot.
    ErrSlotNotFound = errors.New("slot not found")

    // ErrTransactionConflict means the storage engine aborted the transaction
    // because of a concurrent write.  It is retryable.
    ErrTransactionConflict = errors.New("concurrent update detected, please retry")

    // ErrInvalidArgument means the request payload failed validation.
    ErrInvalidArgument = errors.New("invalid argument")

    // ErrIdempotencyMismatch means the idempotency key was already used for a
    // reservation with a different date, slot or notes.
    ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")

    // ErrReservationCancelled means the reservation was cancelled and can no
    // longer be moved.
    ErrReservationCancelled = errors.New("reservation is cancelled")
)

// Retryable reports whether err is worth repeating unchanged.
func Retryable(err error) bool { return errors.Is(err, ErrTransactionConflict) }
