package validation

// Enum values - these MUST match DB CHECK constraints in the database package.
var (
	ValidJobStatuses      = []string{"not_started", "in_progress", "on_hold", "completed", "cancelled"}
	ValidJobPriorities    = []string{"low", "normal", "high", "critical"}
	ValidNCRStatuses      = []string{"open", "investigating", "resolved", "closed"}
	ValidShipmentStatuses = []string{"pending", "in_transit", "delivered", "delayed"}
	ValidPOStatuses       = []string{"open", "confirmed", "partial", "received", "closed", "cancelled"}
	ValidExportFormats    = []string{"csv", "xlsx"}
)
