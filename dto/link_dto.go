package dto

type GenerateDocumentLinkDTO struct {
	SubmissionID          string   `json:"submissionId" binding:"required"`
	ExpiresInDays         int      `json:"expiresInDays" binding:"required"`
	MaxUploads            int      `json:"maxUploads" binding:"required"`
	RequiredDocumentTypes []string `json:"requiredDocumentTypes"`
	Notes                 string   `json:"notes" binding:"max=2000"`
}

type BankDetailsDTO struct {
	BankName      string `json:"bankName" binding:"required"`
	AccountHolder string `json:"accountHolder" binding:"required"`
	IBAN          string `json:"iban" binding:"required"`
	SwiftCode     string `json:"swiftCode"`
}

type GeneratePaymentLinkDTO struct {
	SubmissionID  string          `json:"submissionId" binding:"required"`
	ExpiresInDays int             `json:"expiresInDays" binding:"required"`
	Amount        float64         `json:"amount" binding:"required,gt=0"`
	Currency      string          `json:"currency" binding:"required,len=3"`
	BankDetails   *BankDetailsDTO `json:"bankDetails" binding:"required"`
	Notes         string          `json:"notes" binding:"max=2000"`
}

type VerifyDocumentDTO struct {
	Status          string `json:"status" binding:"required"`
	RejectionReason string `json:"rejectionReason" binding:"max=2000"`
	AdminNotes      string `json:"adminNotes" binding:"max=2000"`
}

type VerifyReceiptDTO struct {
	Status          string `json:"status" binding:"required"`
	RejectionReason string `json:"rejectionReason" binding:"max=2000"`
	AdminNotes      string `json:"adminNotes" binding:"max=2000"`
}
