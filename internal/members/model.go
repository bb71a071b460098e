package members

import "time"

// Member is one row of the members table. Every descriptive field is
// optional; nil means the value was never recorded.
type Member struct {
	ID             string  `json:"id"`
	MemberNumber   string  `json:"member_number"`
	FullName       *string `json:"full_name"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	Address        *string `json:"address"`
	Town           *string `json:"town"`
	Postcode       *string `json:"postcode"`
	Status         *string `json:"status"`
	MembershipType *string `json:"membership_type"`
	Collector      *string `json:"collector"`
	CollectorID    *string `json:"collector_id"`
	AuthUserID     *string `json:"auth_user_id"`

	PaymentAmount *float64   `json:"payment_amount"`
	PaymentType   *string    `json:"payment_type"`
	PaymentDate   *time.Time `json:"payment_date"`
	PaymentNotes  *string    `json:"payment_notes"`

	YearlyPaymentAmount  *float64   `json:"yearly_payment_amount"`
	YearlyPaymentDueDate *time.Time `json:"yearly_payment_due_date"`
	YearlyPaymentStatus  *string    `json:"yearly_payment_status"`

	EmergencyCollectionAmount    *float64   `json:"emergency_collection_amount"`
	EmergencyCollectionDueDate   *time.Time `json:"emergency_collection_due_date"`
	EmergencyCollectionStatus    *string    `json:"emergency_collection_status"`
	EmergencyCollectionCreatedAt *time.Time `json:"emergency_collection_created_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Order string

const (
	OrderNewest       Order = "newest"
	OrderMemberNumber Order = "member_number"
)

type Filter struct {
	// Search matches full name, member number or collector, ignoring case.
	Search string
	// Collectors restricts the result to members of any of the named collectors.
	Collectors []string
	Order      Order
	Limit      int
}

type Payment struct {
	Amount float64   `json:"amount"`
	Type   string    `json:"type"`
	Date   time.Time `json:"date"`
	Notes  string    `json:"notes"`
}

type YearlyPayment struct {
	Amount  float64   `json:"amount"`
	DueDate time.Time `json:"due_date"`
	Status  string    `json:"status"`
}

type EmergencyCollection struct {
	Amount  float64   `json:"amount"`
	DueDate time.Time `json:"due_date"`
	Status  string    `json:"status"`
}

// Str returns the value of an optional string, or "".
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
