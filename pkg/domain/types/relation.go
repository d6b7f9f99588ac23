package types

// Relation is the relationship name evaluated by the policy decision point
type Relation string

const (
	// RelationViewer is the only relation checked by retrieval
	RelationViewer Relation = "viewer"
)

func (r Relation) String() string {
	return string(r)
}

// ResourceKind is the type tag prefixed to a resource identifier in an
// authorization query, e.g. "doc" in "doc:budget-2023".
type ResourceKind string

const (
	ResourceKindDocument ResourceKind = "doc"
)

func (k ResourceKind) String() string {
	return string(k)
}

// SubjectKind is the type tag prefixed to a principal when it carries none.
type SubjectKind string

const (
	SubjectKindUser SubjectKind = "user"
)

func (k SubjectKind) String() string {
	return string(k)
}
