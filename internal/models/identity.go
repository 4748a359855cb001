package models

// UserIdentity is the client-side user identity record. It is owned by the
// token validator and the verification flows: those components replace it
// wholesale, nothing else mutates individual fields.
//
// AuthToken is the bearer session token issued by the identity backend.
// RadiusUserToken is the credential submitted to the captive-portal gateway.
type UserIdentity struct {
	Username        string `json:"username"`
	Email           string `json:"email,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	Method          string `json:"method"`
	AuthToken       string `json:"auth_token,omitempty"`
	RadiusUserToken string `json:"radius_user_token,omitempty"`
	PaymentURL      string `json:"payment_url,omitempty"`
	IsActive        bool   `json:"is_active"`
	IsVerified      bool   `json:"is_verified"`

	// Transient flow flags. They are never persisted: each one is set by a
	// verification outcome and consumed by the orchestrator on the next run.
	MustLogin        bool `json:"-"`
	MustLogout       bool `json:"-"`
	RepeatLogin      bool `json:"-"`
	ProceedToPayment bool `json:"-"`
}

// IsEmpty reports whether the record carries no backend-confirmed state.
func (u UserIdentity) IsEmpty() bool {
	return u.Username == "" &&
		u.AuthToken == "" &&
		u.RadiusUserToken == "" &&
		u.PaymentURL == "" &&
		!u.IsActive && !u.IsVerified
}

// PendingCardPayment reports that a bank card verification is in flight and
// its payment flow has not resolved yet.
func (u UserIdentity) PendingCardPayment() bool {
	return u.Method == "bank_card" && !u.IsVerified && u.PaymentURL != ""
}
