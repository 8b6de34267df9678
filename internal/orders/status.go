package orders

import "strings"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var AllStatuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// TryTransition cuma maju ke depan. Status sama -> no-op, terminal tidak pernah berubah,
// dan notifikasi basi (mis. PAID telat untuk order yang sudah shipped) diabaikan.
func TryTransition(current, target Status) (Status, bool) {
	if current == target || !CanTransition(current, target) {
		return current, false
	}
	return target, true
}

// MapProviderStatus menerjemahkan status mentah provider ke status order.
// definitive=false artinya status interim (PENDING dkk): cukup update metadata pembayaran.
func MapProviderStatus(raw string) (target Status, definitive bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PAID", "SETTLED", "SUCCESS":
		return StatusProcessing, true
	case "EXPIRED", "FAILED":
		return StatusCancelled, true
	default:
		return "", false
	}
}
