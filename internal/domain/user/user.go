package user

import "time"

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	Employer  string    `json:"employer"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Payload is the untrusted request body for both create and update.
// A nil field means the key was absent (or null).
type Payload struct {
	Name     *string `json:"name" form:"name"`
	Phone    *string `json:"phone" form:"phone"`
	Email    *string `json:"email" form:"email"`
	Address  *string `json:"address" form:"address"`
	City     *string `json:"city" form:"city"`
	Employer *string `json:"employer" form:"employer"`

	// Unknown lists body keys that match no field, in the order they were sent.
	Unknown []string `json:"-" form:"-"`
}

// CreateInput is a validated, normalized create payload.
type CreateInput struct {
	Name     string
	Phone    string
	Email    string
	Address  string
	City     string
	Employer string
}

// UpdateInput is a validated partial update; only non-nil fields are written.
type UpdateInput struct {
	Name     *string
	Phone    *string
	Email    *string
	Address  *string
	City     *string
	Employer *string
}

func (in UpdateInput) Empty() bool {
	return in.Name == nil && in.Phone == nil && in.Email == nil &&
		in.Address == nil && in.City == nil && in.Employer == nil
}

// NewFromCreateInput builds the record a store persists; id is left for the store.
func NewFromCreateInput(in CreateInput, now time.Time) User {
	return User{
		Name:      in.Name,
		Phone:     in.Phone,
		Email:     in.Email,
		Address:   in.Address,
		City:      in.City,
		Employer:  in.Employer,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Merge returns u with the supplied fields of in applied and UpdatedAt set to now.
func (u User) Merge(in UpdateInput, now time.Time) User {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}

	set(&u.Name, in.Name)
	set(&u.Phone, in.Phone)
	set(&u.Email, in.Email)
	set(&u.Address, in.Address)
	set(&u.City, in.City)
	set(&u.Employer, in.Employer)
	u.UpdatedAt = now

	return u
}
