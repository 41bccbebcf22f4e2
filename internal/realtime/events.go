package realtime

import "encoding/json"

// Event names exchanged with the platform socket.
const (
	EventRegister         = "register"
	EventProgress         = "progress"
	EventVideoUpload      = "video-upload"
	EventVideoUploadDone  = "video-upload-done"
	EventMessageCount     = "messageCount"
	EventCampaign         = "campaign"
	EventShortlisted      = "shortlisted"
	EventCancelProcessing = "cancel-processing"
)

// Frame is the envelope of every socket message.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Register binds the connection to a user.
type Register struct {
	UserID string `json:"userId"`
}

// Progress reports server-side processing of a submission draft.
type Progress struct {
	SubmissionID string  `json:"submissionId"`
	Progress     float64 `json:"progress"`
}

// VideoUpload reports processing of a campaign pitch video.
type VideoUpload struct {
	CampaignID string  `json:"campaignId"`
	Progress   float64 `json:"progress"`
}

// VideoUploadDone carries the processed pitch video.
type VideoUploadDone struct {
	CampaignID string `json:"campaignId"`
	Video      string `json:"video"`
	Size       int64  `json:"size"`
}

// MessageCount is the user's unread message total.
type MessageCount struct {
	Count int `json:"count"`
}

// Shortlisted tells a creator they were shortlisted for a campaign.
type Shortlisted struct {
	CampaignID   string `json:"campaignId"`
	CampaignName string `json:"campaignName"`
}

// CancelProcessing asks the server to abandon work for an upload subject.
type CancelProcessing struct {
	SubjectID string `json:"subjectId"`
}
