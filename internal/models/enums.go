package models

// PackageType is the lesson cadence bought with a registration.
type PackageType string

const (
	PackageOneTime PackageType = "tek-seferlik"
	PackageWeekly1 PackageType = "hafta-1"
	PackageWeekly2 PackageType = "hafta-2"
	PackageWeekly3 PackageType = "hafta-3"
	PackageWeekly4 PackageType = "hafta-4"
)

var PackageTypes = []PackageType{PackageOneTime, PackageWeekly1, PackageWeekly2, PackageWeekly3, PackageWeekly4}

func (p PackageType) Valid() bool {
	for _, x := range PackageTypes {
		if p == x {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
)

type PaymentMethod string

const (
	MethodBank  PaymentMethod = "bank"
	MethodCash  PaymentMethod = "cash"
	MethodCard  PaymentMethod = "card"
	MethodUnset PaymentMethod = "unset"
)

// TransactionType labels a FinancialRecord.
type TransactionType string

const (
	TxInitialPayment   TransactionType = "initial_payment"
	TxExtensionPayment TransactionType = "extension_payment"
)

type EventType string

const (
	EventLanguage EventType = "language"
	EventSensory  EventType = "sensory"
	EventSpecial  EventType = "special"
)

// ParticipantStatus: scheduled | attended | no_show | postponed | makeup | canceled
type ParticipantStatus string

const (
	StatusScheduled ParticipantStatus = "scheduled"
	StatusAttended  ParticipantStatus = "attended"
	StatusNoShow    ParticipantStatus = "no_show"
	StatusPostponed ParticipantStatus = "postponed"
	StatusMakeup    ParticipantStatus = "makeup"
	StatusCanceled  ParticipantStatus = "canceled"
)

var ParticipantStatuses = []ParticipantStatus{
	StatusScheduled, StatusAttended, StatusNoShow, StatusPostponed, StatusMakeup, StatusCanceled,
}

// SeatedStatuses occupy a physical seat in the event.
var SeatedStatuses = []ParticipantStatus{StatusScheduled, StatusMakeup, StatusAttended}

func (s ParticipantStatus) Valid() bool {
	for _, x := range ParticipantStatuses {
		if s == x {
			return true
		}
	}
	return false
}

// Seated reports whether the status counts against event capacity.
func (s ParticipantStatus) Seated() bool {
	for _, x := range SeatedStatuses {
		if s == x {
			return true
		}
	}
	return false
}

// Consumes reports whether the status uses up a lesson from the package.
func (s ParticipantStatus) Consumes() bool {
	return s == StatusAttended || s == StatusNoShow
}
