package respond

import (
	model "mini-app-service/models"
)

// AppResponse app listing response structure
type AppResponse struct {
	ID               string          `json:"id" example:"7f1c0d7e-3b8a-4a43-9a43-0d6f5a3b6c11"`
	URL              string          `json:"url" example:"https://x.example"`
	Name             string          `json:"name" example:"My Mini App"`
	Description      string          `json:"description,omitempty"`
	IconURL          string          `json:"icon_url,omitempty" example:"https://x.example/.well-known/icon.png"`
	Category         string          `json:"category,omitempty" example:"games"`
	OgImage          string          `json:"og_image,omitempty"`
	Screenshots      []string        `json:"screenshots,omitempty"`
	Status           model.AppStatus `json:"status" example:"pending"`
	ContractAddress  string          `json:"contract_address,omitempty" example:"0xabc0000000000000000000000000000000000def"`
	ContractVerified bool            `json:"contract_verified"`
	ReviewMessage    string          `json:"review_message,omitempty"`
	OwnerDeveloperID string          `json:"owner_developer_id"`
	ReviewedBy       string          `json:"reviewed_by,omitempty"`
	ReviewedAt       int64           `json:"reviewed_at,omitempty" example:"1699999999"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
	CreatedAt        int64           `json:"created_at" example:"1699999999"`
	UpdatedAt        int64           `json:"updated_at" example:"1699999999"`
}

// ToAppResponse convert app to response structure
func ToAppResponse(app *model.App) AppResponse {
	resp := AppResponse{
		ID:               app.ID,
		URL:              app.URL,
		Name:             app.Name,
		Description:      app.Description,
		IconURL:          app.IconURL,
		Category:         app.Category,
		OgImage:          app.OgImage,
		Screenshots:      app.Screenshots,
		Status:           app.Status,
		ContractAddress:  app.ContractAddress,
		ContractVerified: app.ContractVerified,
		ReviewMessage:    app.ReviewMessage,
		OwnerDeveloperID: app.OwnerDeveloperID,
		ReviewedBy:       app.ReviewedBy,
		RejectionReason:  app.RejectionReason,
		CreatedAt:        app.CreatedAt.Unix(),
		UpdatedAt:        app.UpdatedAt.Unix(),
	}
	if app.ReviewedAt != nil {
		resp.ReviewedAt = app.ReviewedAt.Unix()
	}
	return resp
}

// SubmitResponse submission response structure
type SubmitResponse struct {
	App       AppResponse       `json:"app"`
	Created   bool              `json:"created" example:"true"`
	Developer DeveloperResponse `json:"developer"`
}

// AppListResponse app list response structure
type AppListResponse struct {
	Apps       []AppResponse `json:"apps"`
	NextCursor int64         `json:"next_cursor" example:"20"`
	HasMore    bool          `json:"has_more" example:"true"`
}

// ToAppListResponse convert app list to response structure
func ToAppListResponse(apps []*model.App, nextCursor int64, hasMore bool) AppListResponse {
	result := make([]AppResponse, 0, len(apps))
	for _, app := range apps {
		result = append(result, ToAppResponse(app))
	}
	return AppListResponse{
		Apps:       result,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}
}

// StatsResponse statistics response structure
type StatsResponse struct {
	TotalApps int64 `json:"total_apps" example:"42"`
}
