package shared

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// EntityType names the aggregate an activity refers to
type EntityType string

const (
	EntityTypeCustomer    EntityType = "CUSTOMER"
	EntityTypeInstallment EntityType = "INSTALLMENT"
	EntityTypeStaff       EntityType = "STAFF"
)
