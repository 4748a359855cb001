package upstream

import "fmt"

// The identity backend exposes its RADIUS account API under a per-organization
// prefix; subscription endpoints (payments) live under a parallel prefix.
const (
	radiusPrefix        = "/api/v1/radius/organization/%s"
	subscriptionsPrefix = "/api/v1/subscriptions/organization/%s"
)

// UserAuthToken returns the path for obtaining a bearer session token.
func UserAuthToken(slug string) string {
	return fmt.Sprintf(radiusPrefix+"/account/token/", slug)
}

// Registration returns the path for creating a new account.
func Registration(slug string) string {
	return fmt.Sprintf(radiusPrefix+"/account/", slug)
}

// PasswordChange returns the path for changing the account password.
func PasswordChange(slug string) string {
	return fmt.Sprintf(radiusPrefix+"/account/password/change/", slug)
}

// PasswordReset returns the path that mails a password reset link.
func PasswordReset(slug string) string {
	return fmt.Sprintf(radiusPrefix+"/account/password/reset/", slug)
}

// ValidateAuthToken returns the path for validating a bearer session token.
func ValidateAuthToken(slug string) string {
	return fmt.Sprintf(radiusPrefix+"/account/token/validate/", slug)
}

// UserRadiusSessions returns the path of the accounting session list.
func UserRadiusSessions(slug string) string {
	return fmt.Sprintf(radiusPrefix+"/account/session/", slug)
}

// CreatePhoneToken returns the path that sends an SMS verification code.
func CreatePhoneToken(slug string) string {
	return fmt.Sprintf(radiusPrefix+"/account/phone/token/", slug)
}

// PhoneTokenStatus returns the path of the active SMS code check.
func PhoneTokenStatus(slug string) string {
	return fmt.Sprintf(radiusPrefix+"/account/phone/token/active/", slug)
}

// VerifyPhoneToken returns the path that verifies an SMS code.
func VerifyPhoneToken(slug string) string {
	return fmt.Sprintf(radiusPrefix+"/account/phone/verify/", slug)
}

// ChangePhoneNumber returns the path that changes the user's phone number.
func ChangePhoneNumber(slug string) string {
	return fmt.Sprintf(radiusPrefix+"/account/phone/change/", slug)
}

// PaymentStatus returns the path of the payment status lookup.
func PaymentStatus(slug, paymentID string) string {
	return fmt.Sprintf(subscriptionsPrefix+"/payment/%s/status/", slug, paymentID)
}
