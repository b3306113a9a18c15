package main

import (
	"fmt"
	"time"

	"mercator-hq/keeper/pkg/cli"
	"mercator-hq/keeper/pkg/lifecycle"
)

const timeLayout = time.RFC3339

// recordView is the JSON shape of a lifecycle record.
type recordView struct {
	ID                  string  `json:"id"`
	RawFilePath         string  `json:"raw_file_path"`
	CategorizedFilePath string  `json:"categorized_file_path,omitempty"`
	Status              string  `json:"status"`
	Category            string  `json:"category,omitempty"`
	FailureReason       string  `json:"failure_reason,omitempty"`
	CreatedAt           string  `json:"created_at"`
	ProcessedAt         *string `json:"processed_at,omitempty"`
	LastAccessedAt      *string `json:"last_accessed_at,omitempty"`
	AccessCount         int64   `json:"access_count"`
	FileSize            int64   `json:"file_size"`
	PriorityLevel       int     `json:"priority_level"`
	MD5Hash             string  `json:"md5_hash"`
	SHA256Hash          string  `json:"sha256_hash"`
}

func newRecordView(r *lifecycle.LifecycleRecord) recordView {
	v := recordView{
		ID:                  r.ID,
		RawFilePath:         r.RawFilePath,
		CategorizedFilePath: r.CategorizedPathOrEmpty(),
		Status:              string(r.Status),
		Category:            r.CategoryOrEmpty(),
		CreatedAt:           r.CreationTimestamp.UTC().Format(timeLayout),
		ProcessedAt:         formatOptionalTime(r.ProcessingTimestamp),
		LastAccessedAt:      formatOptionalTime(r.LastAccessTimestamp),
		AccessCount:         r.AccessCount,
		FileSize:            r.FileSize,
		PriorityLevel:       r.PriorityLevel,
		MD5Hash:             r.MD5Hash,
		SHA256Hash:          r.SHA256Hash,
	}
	if r.FailureReason != nil {
		v.FailureReason = *r.FailureReason
	}
	return v
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}

func recordTable() *cli.Table {
	return &cli.Table{Headers: []string{"id", "status", "category", "size", "priority", "created_at", "path"}}
}

func addRecordRow(table *cli.Table, r *lifecycle.LifecycleRecord) {
	category := r.CategoryOrEmpty()
	if category == "" {
		category = "-"
	}
	table.AddRow(r.ID, r.Status, category, r.FileSize, r.PriorityLevel,
		r.CreationTimestamp.UTC().Format(timeLayout), r.RawFilePath)
}

// formatUsage renders "current/max", or "current/unlimited" when max is 0.
func formatUsage(current, max int64) string {
	if max <= 0 {
		return fmt.Sprintf("%d/unlimited", current)
	}
	return fmt.Sprintf("%d/%d", current, max)
}

func formatPercent(fraction float64) string {
	return fmt.Sprintf("%.1f%%", fraction*100)
}
