package log

// Canonical field names for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldVideoID   = "video_id"
	FieldPartnerID = "partner_id"
	FieldUserID    = "user_id"
	FieldRenderID  = "render_id"
	FieldEvent     = "event"
)
