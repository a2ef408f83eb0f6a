package queue

const (
	TypePasswordResetEmail = "email:password_reset"
	TypeVerificationEmail  = "email:verification"
)

type PasswordResetPayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
	URL   string `json:"url"`
}

type VerificationPayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
