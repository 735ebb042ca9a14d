package model

import (
	"time"

	"github.com/google/uuid"
)

type StopReason string

const (
	StopQuota    StopReason = "quota"
	StopDeadline StopReason = "deadline"
)

type Rejection struct {
	VideoID YoutubeVideoID `json:"video_id"`
	Stage   string         `json:"stage"`
	Detail  string         `json:"detail,omitempty"`
}

type RunReport struct {
	RunID           uuid.UUID        `json:"run_id"`
	Source          Source           `json:"source"`
	RegionCode      string           `json:"region_code"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	Discovered      int              `json:"discovered"`
	RejectedByStage map[string]int   `json:"rejected_by_stage"`
	Rejections      []Rejection      `json:"rejections,omitempty"`
	Duplicates      int              `json:"duplicates"`
	DuplicateIDs    []YoutubeVideoID `json:"duplicate_ids,omitempty"`
	Inserted        int              `json:"inserted"`
	Errored         int              `json:"errored"`
	InsertedRecords []*Video         `json:"inserted_records"`
	Partial         bool             `json:"partial"`
	StopReason      StopReason       `json:"stop_reason,omitempty"`
	Unattempted     int              `json:"unattempted"`
	QuotaConsumed   int64            `json:"quota_consumed"`
	QuotaRemaining  int64            `json:"quota_remaining"`
	Warnings        []string         `json:"warnings,omitempty"`
}

func NewRunReport(source Source, region string, started time.Time) *RunReport {
	return &RunReport{
		RunID:      uuid.New(),
		Source:     source,
		RegionCode: region,
		StartedAt:  started,
		RejectedByStage: map[string]int{
			"duration":  0,
			"category":  0,
			"freshness": 0,
			"malformed": 0,
			"views":     0,
			"velocity":  0,
		},
		InsertedRecords: []*Video{},
	}
}

func (r *RunReport) Reject(id YoutubeVideoID, stage, detail string) {
	r.RejectedByStage[stage]++
	r.Rejections = append(r.Rejections, Rejection{VideoID: id, Stage: stage, Detail: detail})
}

func (r *RunReport) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
