package models

// API profile names referenced by api_endpoint and ai_decision configs.
const (
	ProfileMain      = "main"
	ProfileSecondary = "secondary"
)

// EmailProfileDefault is the profile email_action uses when its config names
// none.
const EmailProfileDefault = "default"

// APIProfile is a named backend API target resolved at execution time, so step
// configs can say "main" or "secondary" instead of carrying URLs and secrets.
type APIProfile struct {
	Name       string            `json:"name"     validate:"required"`
	BaseURL    string            `json:"base_url" validate:"required,url"`
	AuthHeader string            `json:"auth_header,omitempty"`
	AuthToken  string            `json:"auth_token,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// EmailProfile is a named SMTP sender configuration for email_action steps.
type EmailProfile struct {
	Name     string `json:"name"     validate:"required"`
	Host     string `json:"host"     validate:"required"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"     validate:"required,email"`
}
