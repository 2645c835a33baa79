package identity

// User is the customer or staff identity record cached alongside the session.
// The backend owns the canonical copy; every successful login, profile fetch
// or profile update replaces this snapshot wholesale.
type User struct {
	Phone        string `json:"mobile_number"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Pincode      string `json:"pincode,omitempty"`
	Landmark     string `json:"landmark,omitempty"`
	IsVerified   bool   `json:"is_verified"`
	IsStaff      bool   `json:"is_staff"`
}

// SignupData carries the fields submitted on account registration.
type SignupData struct {
	Phone        string `json:"mobile_number" validate:"required,len=10,numeric"`
	Name         string `json:"name" validate:"required,min=2,max=100"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Password     string `json:"password,omitempty" validate:"omitempty,min=8"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Pincode      string `json:"pincode,omitempty" validate:"omitempty,len=6,numeric"`
	Landmark     string `json:"landmark,omitempty"`
}

// ProfileUpdate is a partial User. Nil fields are left untouched by the
// backend; the response body carries the merged record.
type ProfileUpdate struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	AddressLine1 *string `json:"address_line1,omitempty"`
	AddressLine2 *string `json:"address_line2,omitempty"`
	City         *string `json:"city,omitempty"`
	State        *string `json:"state,omitempty"`
	Pincode      *string `json:"pincode,omitempty" validate:"omitempty,len=6,numeric"`
	Landmark     *string `json:"landmark,omitempty"`
}
