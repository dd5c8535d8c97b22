package booking

import "rivelya/utils"

const (
	CodeNothingToDo       = "nothing_to_do"
	CodeInvalidTransition = "invalid_transition"
	CodeNotParticipant    = "not_participant"
	CodeStartPassed       = "start_passed"
	CodeTooEarly          = "too_early"
	CodeDurationChanged   = "duration_changed"
	CodeNoPendingRequest  = "no_pending_request"
	CodeOwnRequest        = "own_request"
	CodeInvalidChannel    = "invalid_channel"
	CodeInvalidDate       = "invalid_date"
	CodeBookingNotFound   = "booking_not_found"
	CodeExpertNotFound    = "expert_not_found"
	CodePaymentFailed     = "payment_failed"
)

// CancelReasonNoResponse marks requests the expert never answered before the start.
const CancelReasonNoResponse = "expert_no_response"

// CancelReasonRescheduleUnanswered marks bookings stranded by a proposal nobody answered.
const CancelReasonRescheduleUnanswered = "reschedule_unanswered"

func errNothingToDo(msg string) error {
	return utils.Noop(CodeNothingToDo, msg)
}

func errInvalidTransition(msg string) error {
	return utils.Conflict(CodeInvalidTransition, msg)
}

func errNotParticipant() error {
	return utils.Forbidden(CodeNotParticipant, "you are not a participant of this booking")
}
