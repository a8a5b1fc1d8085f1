package models

import (
	"fmt"
	"strings"
)

type IssueStatus string

const (
	StatusPending    IssueStatus = "pending"
	StatusInProgress IssueStatus = "in-progress"
	StatusResolved   IssueStatus = "resolved"
	StatusVerified   IssueStatus = "verified"
	StatusRejected   IssueStatus = "rejected"
)

// statusAliases сводит написания из разных клиентов к одному набору.
// Ключи в нижнем регистре.
var statusAliases = map[string]IssueStatus{
	"pending":     StatusPending,
	"open":        StatusPending,
	"in-progress": StatusInProgress,
	"in progress": StatusInProgress,
	"in_progress": StatusInProgress,
	"resolved":    StatusResolved,
	"verified":    StatusVerified,
	"rejected":    StatusRejected,
}

// ParseStatus нормализует строку статуса, включая устаревшие варианты "Open"/"In Progress"
func ParseStatus(s string) (IssueStatus, error) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown issue status %q", s)
	}
	return status, nil
}

// IsOpen - обращение еще ждет решения
func (s IssueStatus) IsOpen() bool {
	return s == StatusPending || s == StatusInProgress
}
