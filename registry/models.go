package registry

import "time"

// Metadata captures the asset registry fields the dispute platform consumes.
type Metadata struct {
	TokenID     string
	Name        string
	Description string
	Creator     string
	Type        string
	AssetHash   string
	CreatedAt   time.Time
}
