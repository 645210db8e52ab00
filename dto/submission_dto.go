package dto

type CreateSubmissionDTO struct {
	FullName string `json:"fullName" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Service  string `json:"service" binding:"required"`
	Message  string `json:"message" binding:"max=8000"`
	Source   string `json:"source"`
}

// TrackSubmissionDTO needs at least one of phone/email; checked in the
// handler so the error message stays generic.
type TrackSubmissionDTO struct {
	Phone string `json:"phone"`
	Email string `json:"email" binding:"omitempty,email"`
}

type ConfirmCallDTO struct {
	CallNotes string `json:"callNotes" binding:"max=5000"`
}

type UpdateSubmissionStatusDTO struct {
	Status string `json:"status" binding:"required"`
}

type AddAdminNoteDTO struct {
	Content string `json:"content" binding:"required,min=1,max=5000"`
}

type AssignSubmissionDTO struct {
	AssignedTo string `json:"assignedTo" binding:"required"`
}
