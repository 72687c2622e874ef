package entities

import "fmt"

// Contact is a single contact record.
// The ID is assigned by the store on create and never changes afterwards.
type Contact struct {
	ID    int    `json:"id" db:"id" goqu:"skipinsert,skipupdate" dynamodbav:"id"`
	Name  string `json:"name" db:"name" dynamodbav:"name" validate:"required,max=100"`
	Email string `json:"email" db:"email" dynamodbav:"email" validate:"required,email,max=254"`
	Phone string `json:"phone" db:"phone" dynamodbav:"phone,omitempty" validate:"omitempty,phone,min=7,max=20"`
}

// Location returns the resource path of the contact.
func (c *Contact) Location() string {
	return fmt.Sprintf("/contact/%d", c.ID)
}

// Clone returns a copy the caller may mutate freely.
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
