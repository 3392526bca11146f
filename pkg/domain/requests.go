package domain

// Request payloads shared by the API service and its client.

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Role     UserRole `json:"role,omitempty"`
}

type CreateCohortRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedBy   int64  `json:"created_by"`
}

type JoinRequest struct {
	UserID   int64 `json:"user_id"`
	CohortID int64 `json:"cohort_id"`
}

type CreateNoteRequest struct {
	UserID        int64   `json:"user_id"`
	CohortID      int64   `json:"cohort_id"`
	DocumentID    string  `json:"document_id"`
	Content       string  `json:"content"`
	PageNumber    int     `json:"page_number"`
	HighlightData *string `json:"highlight_data"`
}

type CreateChatMessageRequest struct {
	UserID     int64  `json:"user_id"`
	CohortID   int64  `json:"cohort_id"`
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}
