package api

// Application-level response codes the identity backend places in response
// bodies. They are independent from the HTTP status code: the backend can
// answer HTTP 200 with a failure sentinel in the body.
const (
	// ResponseCodeValidationSuccessful is the only response_code that means
	// a token validation succeeded.
	ResponseCodeValidationSuccessful = "AUTH_TOKEN_VALIDATION_SUCCESSFUL"

	// ResponseCodeInvalidOrganization marks a 404 that is a real
	// configuration error rather than a missing resource.
	ResponseCodeInvalidOrganization = "INVALID_ORGANIZATION"

	// ResponseCodeInternalServerError is returned by the proxy when the
	// identity backend is unreachable or times out.
	ResponseCodeInternalServerError = "INTERNAL_SERVER_ERROR"
)

// Verification methods carried in the user identity record.
const (
	MethodNone        = ""
	MethodMobilePhone = "mobile_phone"
	MethodBankCard    = "bank_card"
	MethodSAML        = "saml"
	MethodSocialLogin = "social_login"
)

// ObtainTokenRequest представляет запрос на получение auth токена
type ObtainTokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the identity backend's reply to a successful login or
// registration. Key is the opaque bearer session token; RadiusUserToken is
// the credential handed to the captive-portal gateway.
type TokenResponse struct {
	Key             string `json:"key"`
	RadiusUserToken string `json:"radius_user_token"`
	Username        string `json:"username"`
	Email           string `json:"email,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	Method          string `json:"method"`
	PaymentURL      string `json:"payment_url,omitempty"`
	IsActive        bool   `json:"is_active"`
	IsVerified      bool   `json:"is_verified"`
}

// RegistrationRequest creates a new account. Method is derived by the
// proxy from the organization settings; the client never sets it.
type RegistrationRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password1       string `json:"password1"`
	Password2       string `json:"password2"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Location        string `json:"location,omitempty"`
	BirthDate       string `json:"birth_date,omitempty"`
	Method          string `json:"method,omitempty"`
	RequiresPayment bool   `json:"requires_payment,omitempty"`
}

// PasswordChangeRequest меняет пароль. Token и Session работают как у
// ValidateTokenRequest.
type PasswordChangeRequest struct {
	Token           string `json:"token"`
	Session         bool   `json:"session"`
	CurrentPassword string `json:"current_password"`
	NewPassword1    string `json:"new_password1"`
	NewPassword2    string `json:"new_password2"`
}

// PasswordResetRequest просит выслать ссылку для сброса пароля
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// ValidateTokenRequest представляет запрос на валидацию auth токена.
// Session сообщает серверу, из какого slot пришел токен: true - ephemeral
// (подпись не снимается), false - durable cookie (сервер снимает подпись).
type ValidateTokenRequest struct {
	Token   string `json:"token"`
	Session bool   `json:"session"`
}

// ValidateTokenResponse carries the refreshed user identity. ResponseCode
// must equal ResponseCodeValidationSuccessful, otherwise the validation is
// treated as failed regardless of the HTTP status.
type ValidateTokenResponse struct {
	ResponseCode    string `json:"response_code"`
	AuthToken       string `json:"auth_token,omitempty"`
	RadiusUserToken string `json:"radius_user_token"`
	Username        string `json:"username"`
	Email           string `json:"email,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	Method          string `json:"method"`
	PaymentURL      string `json:"payment_url,omitempty"`
	IsActive        bool   `json:"is_active"`
	IsVerified      bool   `json:"is_verified"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Detail       string `json:"detail,omitempty"`
	ResponseCode string `json:"response_code,omitempty"`
}
