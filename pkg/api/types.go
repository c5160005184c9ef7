package api

// LoginRequest is the body of POST /api/auth/login. Password is optional;
// an empty password selects the passwordless dev path.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// SignupStep1 carries the credentials page of the signup wizard
type SignupStep1 struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// SignupStep2 carries the company page of the signup wizard
type SignupStep2 struct {
	FullName      string `json:"fullName"`
	CompanyName   string `json:"companyName"`
	AcceptedTerms bool   `json:"acceptedTerms"`
}

// SignupRequest is the body of POST /api/auth/signup
type SignupRequest struct {
	Step1Data SignupStep1 `json:"step1Data"`
	Step2Data SignupStep2 `json:"step2Data"`
}

// ForgotPasswordRequest is the body of POST /api/auth/forgot-password
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body of POST /api/auth/reset-password
type ResetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Profile is the authenticated principal's view returned by
// GET /api/auth/user.
type Profile struct {
	ID              string `json:"id"`
	Email           string `json:"email,omitempty"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// QuoteInputRequest is the body of POST /api/quotes
type QuoteInputRequest struct {
	ProductName        string  `json:"productName"`
	HSCode             string  `json:"hsCode,omitempty"`
	DeclaredValue      float64 `json:"declaredValue"`
	Quantity           int     `json:"quantity"`
	OriginCountry      string  `json:"originCountry"`
	DestinationCountry string  `json:"destinationCountry"`
	Incoterm           string  `json:"incoterm,omitempty"`
}
