package models

// ============================================
// Common DTOs
// ============================================

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type PaginatedResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// PageQuery is bound from ?page=&limit=.
type PageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}
