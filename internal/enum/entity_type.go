package enum

type EntityType string

const (
	ACCOUNT EntityType = "ACCOUNT"
)

func (entityType EntityType) String() string {
	return string(entityType)
}
