package store

// DynamoDB schema constants for single-table design
const (
	// Table attributes
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrEntityType = "entity_type"
	AttrData       = "data"
	AttrMembers    = "members"
	AttrTTL        = "ttl"
	AttrUpdatedAt  = "updated_at"

	// Entity types
	EntityTypeValue = "Value"
	EntityTypeSet   = "Set"
)

// Sort keys. A store key maps to one partition holding at most one value
// item and one set item: PK={key}, SK=VALUE|SET
func valueSK() string {
	return "VALUE"
}

func setSK() string {
	return "SET"
}

// valueItem is the stored shape of a plain value
type valueItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"entity_type"`
	Data       []byte `dynamodbav:"data"`
	TTL        int64  `dynamodbav:"ttl,omitempty"`
	UpdatedAt  string `dynamodbav:"updated_at"`
}

// setItem is the stored shape of a string set
type setItem struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	EntityType string   `dynamodbav:"entity_type"`
	Members    []string `dynamodbav:"members,stringset,omitempty"`
}
