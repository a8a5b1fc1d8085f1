package v1

import (
	"strings"

	"github.com/shenikar/cityvoice/internal/models"
)

// DTOToIssueModel преобразует DTO создания в доменную модель
func DTOToIssueModel(dto CreateIssueRequest) *models.Issue {
	issue := &models.Issue{
		Title:       dto.Title,
		Description: dto.Description,
		Category:    dto.Category,
		Location:    models.Location{Address: strings.TrimSpace(dto.Address)},
		Images:      []string{},
	}
	if dto.Latitude != nil {
		issue.Location.Latitude = *dto.Latitude
	}
	if dto.Longitude != nil {
		issue.Location.Longitude = *dto.Longitude
	}
	return issue
}

// ModelToIssueResponse преобразует доменную модель в DTO для ответа
func ModelToIssueResponse(model *models.Issue) *IssueResponse {
	images := model.Images
	if images == nil {
		images = []string{}
	}
	return &IssueResponse{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		Category:    model.Category,
		Status:      string(model.Status),
		Location: LocationResponse{
			Latitude:    model.Location.Latitude,
			Longitude:   model.Location.Longitude,
			Address:     model.Location.Address,
			Coordinates: model.Location.Coordinates(),
		},
		ImageURL:   model.ImageURL(),
		Images:     images,
		ReportedBy: model.ReportedBy,
		Votes:      model.Votes,
		Comments:   model.Comments,
		Version:    model.Version,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

// ModelsToIssueResponses преобразует слайс моделей в слайс DTO
func ModelsToIssueResponses(issues []*models.Issue) []*IssueResponse {
	responses := make([]*IssueResponse, len(issues))
	for i, issue := range issues {
		responses[i] = ModelToIssueResponse(issue)
	}
	return responses
}

func ModelsToHotspotResponses(hotspots []models.Hotspot) []HotspotResponse {
	responses := make([]HotspotResponse, len(hotspots))
	for i, h := range hotspots {
		responses[i] = HotspotResponse{
			Latitude:   h.Latitude,
			Longitude:  h.Longitude,
			Count:      h.Count,
			OpenCount:  h.OpenCount,
			Votes:      h.Votes,
			Severity:   h.Severity,
			Categories: h.Categories,
		}
	}
	return responses
}

func ModelToStatsResponse(stats *models.IssueStats) StatsResponse {
	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, n := range stats.ByStatus {
		byStatus[string(status)] = n
	}
	return StatsResponse{
		Total:      stats.Total,
		Open:       stats.Open,
		TotalVotes: stats.TotalVotes,
		ByStatus:   byStatus,
		ByCategory: stats.ByCategory,
	}
}

func ModelToUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
	}
}
