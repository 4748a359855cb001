package api

// Payment statuses returned by GET /payment/status/{paymentId}.
const (
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
	PaymentStatusWaiting = "waiting"
)

// CreatePhoneTokenRequest запрашивает отправку одноразового SMS кода.
// PhoneNumber опционален: без него код уходит на номер из профиля.
type CreatePhoneTokenRequest struct {
	PhoneNumber string `json:"phone_number,omitempty"`
}

// CreatePhoneTokenResponse reports the resend cooldown in seconds. A zero
// cooldown means the backend did not impose one.
type CreatePhoneTokenResponse struct {
	Cooldown int `json:"cooldown,omitempty"`
}

// PhoneTokenStatusResponse reports whether an SMS code is already active for
// the user.
type PhoneTokenStatusResponse struct {
	Active   bool `json:"active"`
	Cooldown int  `json:"cooldown,omitempty"`
}

// VerifyPhoneTokenRequest представляет отправку кода подтверждения.
// Token/Session работают как в ValidateTokenRequest; без Token сервер
// берет токен из auth cookie.
type VerifyPhoneTokenRequest struct {
	Token   string `json:"token,omitempty"`
	Session bool   `json:"session,omitempty"`
	Code    string `json:"code"`
}

// PhoneChangeRequest предствляет запрос на смену номера телефона
type PhoneChangeRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// PaymentStatusResponse is the terminal state of a hosted payment flow.
type PaymentStatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
