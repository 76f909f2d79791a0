package ticket

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	vo "ticketd/internal/domain/ticket/valueobjects"
)

// CreateTicketRequest accepts both JSON bodies and multipart form fields;
// attachment files ride alongside in the multipart case.
type CreateTicketRequest struct {
	Title       string `json:"title" form:"title" binding:"required,max=200"`
	Description string `json:"description" form:"description" binding:"required"`
	Assignee    string `json:"assignee" form:"assignee" binding:"required"`
	Status      string `json:"status" form:"status" binding:"required,ticketstatus"`
	Priority    string `json:"priority" form:"priority" binding:"required,ticketpriority"`
}

// UpdateTicketRequest is a partial update; omitted fields leave the current
// values unchanged.
type UpdateTicketRequest struct {
	Title       string `json:"title" form:"title" binding:"omitempty,max=200"`
	Description string `json:"description" form:"description"`
	Assignee    string `json:"assignee" form:"assignee"`
	Status      string `json:"status" form:"status" binding:"omitempty,ticketstatus"`
	Priority    string `json:"priority" form:"priority" binding:"omitempty,ticketpriority"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,ticketstatus"`
}

// RegisterValidators installs the ticket enum validations on gin's binding
// validator. Safe to call once at startup.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("ticketstatus", func(fl validator.FieldLevel) bool {
		for _, s := range vo.AllStatuses() {
			if fl.Field().String() == s.String() {
				return true
			}
		}
		return false
	})
	_ = v.RegisterValidation("ticketpriority", func(fl validator.FieldLevel) bool {
		for _, p := range vo.AllPriorities() {
			if fl.Field().String() == p.String() {
				return true
			}
		}
		return false
	})
}
